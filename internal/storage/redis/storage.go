package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/lobbyd/internal/model"
	"github.com/mcoot/lobbyd/internal/storage"
)

// Storage is a Redis stream-backed audit event log
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis event log
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return NewWithClient(client, cfg), nil
}

// NewWithClient creates a Redis event log with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	if cfg.MaxEvents <= 0 {
		cfg.MaxEvents = storage.DefaultMaxEvents
	}
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.EventLog = (*Storage)(nil)

func (s *Storage) Append(ctx context.Context, event model.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: eventsKey(),
		MaxLen: s.cfg.MaxEvents,
		Approx: true,
		Values: []string{eventField, string(data)},
	}).Err()
}

func (s *Storage) Recent(ctx context.Context, limit int) ([]model.Event, error) {
	if limit <= 0 {
		limit = int(s.cfg.MaxEvents)
	}

	entries, err := s.client.XRevRangeN(ctx, eventsKey(), "+", "-", int64(limit)).Result()
	if err != nil {
		return nil, err
	}

	events := make([]model.Event, 0, len(entries))
	for _, entry := range entries {
		raw, ok := entry.Values[eventField].(string)
		if !ok {
			return nil, fmt.Errorf("stream entry %s has no %s field", entry.ID, eventField)
		}
		var event model.Event
		if err := json.Unmarshal([]byte(raw), &event); err != nil {
			return nil, fmt.Errorf("decode stream entry %s: %w", entry.ID, err)
		}
		events = append(events, event)
	}
	return events, nil
}
