package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Audit backends
const (
	AuditMemory = "memory"
	AuditFile   = "file"
	AuditRedis  = "redis"
)

// Config is the lobbyd server configuration, read from the environment
type Config struct {
	LobbyHost string `env:"LOBBY_HOST,default=0.0.0.0" validate:"required"`
	LobbyPort int    `env:"LOBBY_PORT,default=9000" validate:"gte=0,lte=65535"`
	HTTPHost  string `env:"HTTP_HOST,default=0.0.0.0"`
	HTTPPort  int    `env:"HTTP_PORT,default=8080" validate:"gte=0,lte=65535"`

	// 0 disables the limit
	MaxConnections int `env:"MAX_CONNECTIONS,default=1000" validate:"gte=0"`
	MaxRooms       int `env:"MAX_ROOMS,default=100" validate:"gte=0"`

	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL,default=10s" validate:"gt=0"`
	HeartbeatTimeout  time.Duration `env:"HEARTBEAT_TIMEOUT,default=60s" validate:"gtfield=HeartbeatInterval"`

	// IdleTimeout drops TCP clients that send nothing for this long; 0 disables it
	IdleTimeout time.Duration `env:"IDLE_TIMEOUT,default=120s" validate:"gte=0"`

	DefaultGameType string `env:"DEFAULT_GAME_TYPE,default=mafia" validate:"required"`
	JoinCodeCost    int    `env:"JOIN_CODE_COST,default=10" validate:"gte=4,lte=31"`

	LogLevel string `env:"LOG_LEVEL,default=info" validate:"oneof=debug info warn error"`

	// AdminToken guards the admin inspection endpoints; empty leaves them open
	AdminToken string `env:"ADMIN_TOKEN"`

	AuditBackend   string `env:"AUDIT_BACKEND,default=memory" validate:"oneof=memory file redis"`
	AuditFile      string `env:"AUDIT_FILE,default=server.log" validate:"required_if=AuditBackend file"`
	AuditMaxEvents int    `env:"AUDIT_MAX_EVENTS,default=1000" validate:"gt=0"`
	RedisURL       string `env:"REDIS_URL" validate:"required_if=AuditBackend redis"`
}

var validate = validator.New()

// Load reads configuration from the process environment. When envFile is
// set and exists, its variables are loaded first without overriding ones
// already present in the environment.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	return cfg, cfg.Validate()
}

// FromEnvSet reads configuration from an explicit variable set
func FromEnvSet(es env.EnvSet) (Config, error) {
	var cfg Config
	if err := env.Unmarshal(es, &cfg); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks field constraints
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, ", "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Level returns the slog level named by LogLevel
func (c Config) Level() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}
