package memory

import (
	"context"
	"sync"

	"github.com/mcoot/lobbyd/internal/model"
	"github.com/mcoot/lobbyd/internal/storage"
)

// Storage is an in-memory ring buffer of audit events
type Storage struct {
	mu     sync.RWMutex
	events []model.Event
	next   int // Slot the next event is written to
	size   int
}

// New creates a ring holding at most maxEvents events
func New(maxEvents int) *Storage {
	if maxEvents <= 0 {
		maxEvents = storage.DefaultMaxEvents
	}
	return &Storage{
		events: make([]model.Event, maxEvents),
	}
}

// Ensure Storage implements the interface
var _ storage.EventLog = (*Storage)(nil)

func (s *Storage) Append(ctx context.Context, event model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[s.next] = event
	s.next = (s.next + 1) % len(s.events)
	if s.size < len(s.events) {
		s.size++
	}
	return nil
}

func (s *Storage) Recent(ctx context.Context, limit int) ([]model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > s.size {
		limit = s.size
	}
	out := make([]model.Event, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (s.next - i + len(s.events)) % len(s.events)
		out = append(out, s.events[idx])
	}
	return out, nil
}

func (s *Storage) Close() error {
	return nil
}
