package cli

import (
	"fmt"
	"time"

	"github.com/Netflix/go-env"
)

// Config holds CLI configuration. Flags override the environment.
type Config struct {
	// ServerURL is the admin HTTP base URL
	ServerURL string `env:"LOBBYCTL_SERVER,default=http://localhost:8080"`
	// AdminToken is sent as a bearer token to the admin API
	AdminToken string `env:"LOBBYCTL_TOKEN"`
	// LobbyAddr is the lobby protocol endpoint: host:port for TCP or a ws:// URL
	LobbyAddr string        `env:"LOBBYCTL_ADDR,default=localhost:9000"`
	Timeout   time.Duration `env:"LOBBYCTL_TIMEOUT,default=10s"`
	Output    string        `env:"LOBBYCTL_OUTPUT,default=text"`
}

// LoadConfig reads the CLI defaults from the environment
func LoadConfig() (*Config, error) {
	var c Config
	if _, err := env.UnmarshalFromEnviron(&c); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	return &c, nil
}

// Validate checks option values that flags cannot constrain
func (c *Config) Validate() error {
	switch c.Output {
	case "text", "json":
	default:
		return fmt.Errorf("unknown output format %q: must be text or json", c.Output)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	return nil
}
