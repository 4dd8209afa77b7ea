package storage

import (
	"context"

	"github.com/mcoot/lobbyd/internal/model"
)

// DefaultMaxEvents bounds every event log backend unless configured otherwise
const DefaultMaxEvents = 1000

// EventLog is an append-only sink for audit events.
// Implementations must be safe for concurrent use.
type EventLog interface {
	// Append records an event
	Append(ctx context.Context, event model.Event) error

	// Recent returns up to limit events, newest first
	Recent(ctx context.Context, limit int) ([]model.Event, error)

	// Close releases any underlying resources
	Close() error
}
