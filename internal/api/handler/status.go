package handler

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"

	"github.com/mcoot/lobbyd/internal/api/response"
	"github.com/mcoot/lobbyd/internal/dependencies/clock"
)

// Counter reports a current population, such as sessions or rooms
type Counter interface {
	Count() int
}

// ConnectionCounter reports open client connections
type ConnectionCounter interface {
	Active() int
}

// StatusConfig holds the sources reported by the status endpoint
type StatusConfig struct {
	Sessions    Counter
	Rooms       Counter
	Connections ConnectionCounter
	Clock       clock.Clock
	StartedAt   time.Time
	Limits      response.Limits
}

// StatusHandler serves the server status summary
type StatusHandler struct {
	cfg    StatusConfig
	proc   *process.Process
	logger *slog.Logger
}

// NewStatusHandler creates a status handler. Process stats are omitted when
// the platform does not expose them.
func NewStatusHandler(cfg StatusConfig, logger *slog.Logger) *StatusHandler {
	h := &StatusHandler{cfg: cfg, logger: logger}
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		logger.Warn("process stats unavailable", slog.String("error", err.Error()))
	} else {
		h.proc = proc
	}
	return h
}

// Get handles GET /api/v1/status
func (h *StatusHandler) Get(w http.ResponseWriter, r *http.Request) {
	status := response.Status{
		Sessions:      h.cfg.Sessions.Count(),
		Rooms:         h.cfg.Rooms.Count(),
		Connections:   h.cfg.Connections.Active(),
		StartedAt:     h.cfg.StartedAt.UTC(),
		UptimeSeconds: int64(h.cfg.Clock.Since(h.cfg.StartedAt) / time.Second),
		Limits:        h.cfg.Limits,
		Process:       h.processStats(),
	}
	response.JSON(w, http.StatusOK, status)
}

func (h *StatusHandler) processStats() *response.Process {
	if h.proc == nil {
		return nil
	}

	mem, err := h.proc.MemoryInfo()
	if err != nil {
		h.logger.Debug("failed to read process memory", slog.String("error", err.Error()))
		return nil
	}
	stats := &response.Process{PID: h.proc.Pid, RSSBytes: mem.RSS}

	// The remaining figures are best effort
	if cpu, err := h.proc.CPUPercent(); err == nil {
		stats.CPUPercent = cpu
	}
	if threads, err := h.proc.NumThreads(); err == nil {
		stats.Threads = threads
	}
	if state, err := h.proc.Status(); err == nil {
		stats.State = state
	}
	return stats
}
