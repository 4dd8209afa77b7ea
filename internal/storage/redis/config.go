package redis

import "github.com/mcoot/lobbyd/internal/storage"

// Config holds Redis connection and stream settings
type Config struct {
	// URL is the Redis connection URL (e.g., redis://localhost:6379)
	URL string

	// Pool settings
	PoolSize     int
	MinIdleConns int

	// MaxEvents caps the stream length (approximate trimming)
	MaxEvents int64
}

// DefaultConfig returns sensible defaults for Redis configuration
func DefaultConfig() Config {
	return Config{
		URL:          "redis://localhost:6379",
		PoolSize:     10,
		MinIdleConns: 2,
		MaxEvents:    storage.DefaultMaxEvents,
	}
}
