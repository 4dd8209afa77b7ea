package factory

import (
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/lobbyd/internal/config"
	"github.com/mcoot/lobbyd/internal/dependencies/mocks"
	"github.com/mcoot/lobbyd/internal/storage/memory"
	"github.com/mcoot/lobbyd/internal/testutil"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock  *mocks.MockClock
	MockTokens *mocks.MockTokens
	EventStore *memory.Storage
}

// TestConfig returns a config bound to loopback ephemeral ports with cheap
// join code hashing
func TestConfig() config.Config {
	return config.Config{
		LobbyHost:         "127.0.0.1",
		LobbyPort:         0,
		HTTPHost:          "127.0.0.1",
		HTTPPort:          0,
		MaxConnections:    100,
		MaxRooms:          100,
		HeartbeatInterval: 10 * time.Second,
		HeartbeatTimeout:  60 * time.Second,
		DefaultGameType:   "mafia",
		JoinCodeCost:      bcrypt.MinCost,
		LogLevel:          "error",
		AuditBackend:      config.AuditMemory,
		AuditMaxEvents:    1000,
	}
}

// NewTestApp creates an App configured for testing with mocked dependencies
func NewTestApp(cfg config.Config) *TestApp {
	store := memory.New(cfg.AuditMaxEvents)
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	mockTokens := mocks.NewMockTokens()

	app := newWithDependencies(cfg, store, mockClock, mockTokens, testutil.NopLogger())

	return &TestApp{
		App:        app,
		MockClock:  mockClock,
		MockTokens: mockTokens,
		EventStore: store,
	}
}
