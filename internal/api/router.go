package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/lobbyd/internal/api/handler"
	"github.com/mcoot/lobbyd/internal/api/middleware"
	"github.com/mcoot/lobbyd/internal/audit"
	basemiddleware "github.com/mcoot/lobbyd/internal/middleware"
	"github.com/mcoot/lobbyd/internal/services/room"
	"github.com/mcoot/lobbyd/internal/services/session"
)

const (
	healthPath  = "/api/v1/health"
	metricsPath = "/metrics"
)

// RouterConfig holds configuration for the admin router
type RouterConfig struct {
	Logger   *slog.Logger
	Sessions *session.Registry
	Rooms    *room.Registry
	Recorder *audit.Recorder
	Status   handler.StatusConfig
	// AdminToken guards the inspection endpoints when set
	AdminToken string
	// Metrics serves /metrics when set
	Metrics http.Handler
	// Websocket serves /ws when set
	Websocket http.Handler
}

// NewRouter creates the admin router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(handler.NotFound)

	// Create handlers
	statusHandler := handler.NewStatusHandler(cfg.Status, cfg.Logger)
	roomHandler := handler.NewRoomHandler(cfg.Rooms, cfg.Sessions)
	eventHandler := handler.NewEventHandler(cfg.Recorder)

	// Recovery wraps logging so panics are logged with the request
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(basemiddleware.Logging(cfg.Logger, healthPath, metricsPath))

	api := r.PathPrefix("/api/v1").Subrouter()

	// Health check endpoint (no auth)
	api.HandleFunc("/health", healthHandler).Methods(http.MethodGet)

	admin := api.NewRoute().Subrouter()
	admin.Use(middleware.AdminToken(cfg.AdminToken))
	admin.HandleFunc("/status", statusHandler.Get).Methods(http.MethodGet)
	admin.HandleFunc("/rooms", roomHandler.List).Methods(http.MethodGet)
	admin.HandleFunc("/rooms/{roomId}/members", roomHandler.Members).Methods(http.MethodGet)
	admin.HandleFunc("/events", eventHandler.Recent).Methods(http.MethodGet)

	if cfg.Metrics != nil {
		r.Handle(metricsPath, cfg.Metrics).Methods(http.MethodGet)
	}
	if cfg.Websocket != nil {
		r.Handle("/ws", cfg.Websocket).Methods(http.MethodGet)
	}

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
