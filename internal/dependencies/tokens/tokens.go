package tokens

import "github.com/google/uuid"

// Generator issues session tokens; mocked in tests for determinism
type Generator interface {
	// NewToken returns an unguessable token, unique per call
	NewToken() string
}

// UUIDGenerator issues random (version 4) UUIDs
type UUIDGenerator struct{}

// New creates a new UUIDGenerator
func New() *UUIDGenerator {
	return &UUIDGenerator{}
}

// NewToken returns a fresh UUIDv4 string
func (g *UUIDGenerator) NewToken() string {
	return uuid.NewString()
}
