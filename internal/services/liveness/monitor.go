package liveness

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mcoot/lobbyd/internal/dependencies/clock"
	"github.com/mcoot/lobbyd/internal/model"
)

const (
	DefaultInterval = 10 * time.Second
	DefaultTimeout  = 60 * time.Second
)

// StaleFinder lists rooms whose heartbeat is older than timeout
type StaleFinder interface {
	Stale(now time.Time, timeout time.Duration) []model.Room
}

// Evictor removes the host of a stale room
type Evictor interface {
	Evict(ctx context.Context, stale model.Room) (bool, error)
}

// Config controls how often rooms are checked and when they expire
type Config struct {
	Interval time.Duration
	Timeout  time.Duration
}

// Monitor periodically evicts the hosts of rooms that stopped sending heartbeats
type Monitor struct {
	rooms   StaleFinder
	evictor Evictor
	clock   clock.Clock
	cfg     Config
	logger  *slog.Logger
}

// New creates a liveness monitor
func New(rooms StaleFinder, evictor Evictor, clock clock.Clock, cfg Config, logger *slog.Logger) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Monitor{
		rooms:   rooms,
		evictor: evictor,
		clock:   clock,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "liveness")),
	}
}

// Run sweeps every interval until ctx is cancelled
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	m.logger.Info("liveness monitor started",
		slog.Duration("interval", m.cfg.Interval),
		slog.Duration("timeout", m.cfg.Timeout))

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("liveness monitor stopped")
			return
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}

// Sweep performs one pass and returns the number of hosts evicted
func (m *Monitor) Sweep(ctx context.Context) int {
	evicted := 0
	for _, room := range m.rooms.Stale(m.clock.Now(), m.cfg.Timeout) {
		ok, err := m.evictor.Evict(ctx, room)
		if err != nil {
			// Room left or was deleted between the snapshot and the eviction
			if errors.Is(err, model.ErrRoomNotFound) || errors.Is(err, model.ErrNotInRoom) {
				continue
			}
			m.logger.Warn("failed to evict stale room",
				slog.String("room_id", string(room.ID)),
				slog.String("error", err.Error()))
			continue
		}
		if ok {
			evicted++
			m.logger.Info("evicted stale host",
				slog.String("room_id", string(room.ID)),
				slog.String("host", string(room.HostDeviceID)),
				slog.Time("last_heartbeat", room.LastHeartbeat))
		}
	}
	return evicted
}
