package factory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/mcoot/lobbyd/internal/api"
	"github.com/mcoot/lobbyd/internal/api/handler"
	"github.com/mcoot/lobbyd/internal/api/response"
	"github.com/mcoot/lobbyd/internal/audit"
	"github.com/mcoot/lobbyd/internal/config"
	"github.com/mcoot/lobbyd/internal/dependencies/clock"
	"github.com/mcoot/lobbyd/internal/dependencies/tokens"
	"github.com/mcoot/lobbyd/internal/dispatch"
	"github.com/mcoot/lobbyd/internal/metrics"
	"github.com/mcoot/lobbyd/internal/services/liveness"
	"github.com/mcoot/lobbyd/internal/services/lobby"
	"github.com/mcoot/lobbyd/internal/services/room"
	"github.com/mcoot/lobbyd/internal/services/session"
	"github.com/mcoot/lobbyd/internal/storage"
	"github.com/mcoot/lobbyd/internal/storage/file"
	"github.com/mcoot/lobbyd/internal/storage/memory"
	redisstorage "github.com/mcoot/lobbyd/internal/storage/redis"
	"github.com/mcoot/lobbyd/internal/transport"
	"github.com/mcoot/lobbyd/internal/transport/tcp"
	"github.com/mcoot/lobbyd/internal/transport/ws"
)

// ErrClosed is returned by Start once Shutdown has been called
var ErrClosed = errors.New("app is shut down")

// App contains all wired application components
type App struct {
	Config config.Config

	// Storage
	EventLog storage.EventLog

	// External dependencies
	Clock  clock.Clock
	Tokens tokens.Generator

	// Services
	Sessions    *session.Registry
	Rooms       *room.Registry
	Recorder    *audit.Recorder
	Coordinator *lobby.Coordinator
	Monitor     *liveness.Monitor
	Metrics     *metrics.Metrics

	// Transports
	Dispatcher *dispatch.Dispatcher
	Limiter    *transport.Limiter
	TCP        *tcp.Server
	Websocket  *ws.Handler
	Router     http.Handler
	HTTP       *api.Server

	StartedAt time.Time
	logger    *slog.Logger

	mu          sync.Mutex
	closed      bool
	stopMonitor context.CancelFunc
	monitorDone chan struct{}
}

// New creates a new application with all dependencies wired.
// A nil logger discards all output.
func New(cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	eventLog, err := openEventLog(cfg)
	if err != nil {
		return nil, err
	}

	return newWithDependencies(cfg, eventLog, clock.New(), tokens.New(), logger), nil
}

// openEventLog creates the audit backend selected by the config
func openEventLog(cfg config.Config) (storage.EventLog, error) {
	switch cfg.AuditBackend {
	case "", config.AuditMemory:
		return memory.New(cfg.AuditMaxEvents), nil
	case config.AuditFile:
		store, err := file.Open(cfg.AuditFile, cfg.AuditMaxEvents)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.AuditRedis:
		if cfg.RedisURL == "" {
			return nil, errors.New("REDIS_URL required when AUDIT_BACKEND is redis")
		}
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = cfg.RedisURL
		redisCfg.MaxEvents = int64(cfg.AuditMaxEvents)
		store, err := redisstorage.New(redisCfg)
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("invalid AUDIT_BACKEND %q: must be memory, file or redis", cfg.AuditBackend)
	}
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(cfg config.Config, eventLog storage.EventLog, clk clock.Clock, ids tokens.Generator, logger *slog.Logger) *App {
	roomCfg := room.DefaultConfig()
	roomCfg.MaxRooms = cfg.MaxRooms
	if cfg.DefaultGameType != "" {
		roomCfg.DefaultGameType = cfg.DefaultGameType
	}
	if cfg.JoinCodeCost > 0 {
		roomCfg.JoinCodeCost = cfg.JoinCodeCost
	}

	// Create services
	sessions := session.New(clk, ids, logger)
	rooms := room.New(clk, roomCfg, logger)
	recorder := audit.New(clk, eventLog, logger)
	coordinator := lobby.NewCoordinator(sessions, rooms, recorder, logger)
	monitor := liveness.New(rooms, coordinator, clk, liveness.Config{
		Interval: cfg.HeartbeatInterval,
		Timeout:  cfg.HeartbeatTimeout,
	}, logger)

	// Metrics observe requests, connections and audit events
	m := metrics.New()
	m.TrackSessions(sessions.Count)
	m.TrackRooms(rooms.Count)
	recorder.Observe(m.ObserveEvent)

	dispatcher := dispatch.New(coordinator, recorder, clk, ids, logger)
	dispatcher.SetObserver(m)

	// TCP and websocket clients share one connection budget
	limiter := transport.NewLimiter(cfg.MaxConnections)

	tcpCfg := tcp.DefaultConfig()
	tcpCfg.Host = cfg.LobbyHost
	tcpCfg.Port = cfg.LobbyPort
	tcpCfg.IdleTimeout = cfg.IdleTimeout
	tcpServer := tcp.NewServer(tcpCfg, dispatcher, limiter, logger)
	tcpServer.SetMetrics(m)

	wsHandler := ws.NewHandler(ws.DefaultConfig(), dispatcher, limiter, logger)
	wsHandler.SetMetrics(m)

	startedAt := clk.Now()
	router := api.NewRouter(api.RouterConfig{
		Logger:   logger,
		Sessions: sessions,
		Rooms:    rooms,
		Recorder: recorder,
		Status: handler.StatusConfig{
			Sessions:    sessions,
			Rooms:       rooms,
			Connections: limiter,
			Clock:       clk,
			StartedAt:   startedAt,
			Limits: response.Limits{
				MaxConnections:    cfg.MaxConnections,
				MaxRooms:          cfg.MaxRooms,
				HeartbeatInterval: cfg.HeartbeatInterval.String(),
				HeartbeatTimeout:  cfg.HeartbeatTimeout.String(),
			},
		},
		AdminToken: cfg.AdminToken,
		Metrics:    m.Handler(),
		Websocket:  wsHandler,
	})

	httpCfg := api.DefaultServerConfig()
	httpCfg.Host = cfg.HTTPHost
	httpCfg.Port = cfg.HTTPPort
	httpServer := api.NewServer(router, httpCfg, logger)

	return &App{
		Config:      cfg,
		EventLog:    eventLog,
		Clock:       clk,
		Tokens:      ids,
		Sessions:    sessions,
		Rooms:       rooms,
		Recorder:    recorder,
		Coordinator: coordinator,
		Monitor:     monitor,
		Metrics:     m,
		Dispatcher:  dispatcher,
		Limiter:     limiter,
		TCP:         tcpServer,
		Websocket:   wsHandler,
		Router:      router,
		HTTP:        httpServer,
		StartedAt:   startedAt,
		logger:      logger,
	}
}

// Start binds both listeners, starts the liveness monitor and serves until
// Shutdown is called or a listener fails
func (a *App) Start(ctx context.Context) error {
	// Binding happens under the lock so Shutdown either sees the listeners
	// and the monitor or stops Start from creating them.
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return ErrClosed
	}
	if a.stopMonitor != nil {
		a.mu.Unlock()
		return errors.New("app already started")
	}
	if err := a.TCP.Listen(); err != nil {
		a.mu.Unlock()
		return err
	}
	if err := a.HTTP.Listen(); err != nil {
		a.mu.Unlock()
		_ = a.TCP.Shutdown(context.Background())
		return err
	}

	monitorCtx, cancel := context.WithCancel(ctx)
	monitorDone := make(chan struct{})
	a.stopMonitor = cancel
	a.monitorDone = monitorDone
	a.mu.Unlock()

	go func() {
		defer close(monitorDone)
		a.Monitor.Run(monitorCtx)
	}()

	a.logger.Info("lobby server started",
		slog.String("lobby_addr", a.TCP.Addr()),
		slog.String("http_addr", a.HTTP.Addr()),
		slog.Int("max_connections", a.Config.MaxConnections),
		slog.Int("max_rooms", a.Config.MaxRooms),
		slog.String("audit_backend", a.Config.AuditBackend))

	errCh := make(chan error, 2)
	go func() { errCh <- a.TCP.Start() }()
	go func() { errCh <- a.HTTP.Start() }()

	for range 2 {
		if err := <-errCh; err != nil {
			return err
		}
	}
	return nil
}

// Shutdown stops accepting clients, releases every connection and closes
// the event log
func (a *App) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	stopMonitor, monitorDone := a.stopMonitor, a.monitorDone
	a.mu.Unlock()

	var errs []error

	// HTTP first so no new websocket upgrades arrive
	if err := a.HTTP.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := a.Websocket.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := a.TCP.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}

	if stopMonitor != nil {
		stopMonitor()
		<-monitorDone
	}

	if err := a.Recorder.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close event log: %w", err))
	}
	return errors.Join(errs...)
}
