package audit

import (
	"context"
	"log/slog"
	"sync"

	"github.com/mcoot/lobbyd/internal/dependencies/clock"
	"github.com/mcoot/lobbyd/internal/model"
	"github.com/mcoot/lobbyd/internal/storage"
)

// Observer is notified of every recorded event
type Observer func(model.Event)

// Recorder stamps audit events, logs them and appends them to the event log.
// A failing event log never fails the operation being audited.
type Recorder struct {
	clock  clock.Clock
	log    storage.EventLog
	logger *slog.Logger

	mu        sync.RWMutex
	observers []Observer
}

// New creates a Recorder writing to the given event log
func New(clock clock.Clock, log storage.EventLog, logger *slog.Logger) *Recorder {
	return &Recorder{
		clock:  clock,
		log:    log,
		logger: logger.With(slog.String("component", "audit")),
	}
}

// Observe registers fn to be called after each event is recorded
func (r *Recorder) Observe(fn Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, fn)
}

// Record stamps and stores the event
func (r *Recorder) Record(ctx context.Context, event model.Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = r.clock.Now()
	}

	attrs := []any{slog.String("event", string(event.Type))}
	if event.RoomID != "" {
		attrs = append(attrs, slog.String("room_id", string(event.RoomID)))
	}
	if event.DeviceID != "" {
		attrs = append(attrs, slog.String("device_id", string(event.DeviceID)))
	}
	if event.Addr != "" {
		attrs = append(attrs, slog.String("addr", event.Addr))
	}
	if event.Detail != "" {
		attrs = append(attrs, slog.String("detail", event.Detail))
	}
	r.logger.Info("lobby event", attrs...)

	if err := r.log.Append(ctx, event); err != nil {
		r.logger.Warn("failed to append audit event",
			slog.String("event", string(event.Type)),
			slog.String("error", err.Error()))
	}

	r.mu.RLock()
	observers := r.observers
	r.mu.RUnlock()
	for _, fn := range observers {
		fn(event)
	}
}

// Recent returns up to limit of the newest events
func (r *Recorder) Recent(ctx context.Context, limit int) ([]model.Event, error) {
	return r.log.Recent(ctx, limit)
}

// Close closes the underlying event log
func (r *Recorder) Close() error {
	return r.log.Close()
}
