package ws

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mcoot/lobbyd/internal/dispatch"
	"github.com/mcoot/lobbyd/internal/protocol"
	"github.com/mcoot/lobbyd/internal/transport"
)

const transportName = "ws"

// Config holds websocket connection settings
type Config struct {
	// ReadLimit caps the size of one request frame in bytes
	ReadLimit    int64
	WriteTimeout time.Duration
	// PongWait is how long a silent peer is tolerated; pings go out at 9/10 of it
	PongWait time.Duration
}

// DefaultConfig returns sensible defaults for websocket connections
func DefaultConfig() Config {
	return Config{
		ReadLimit:    64 * 1024,
		WriteTimeout: 10 * time.Second,
		PongWait:     60 * time.Second,
	}
}

// Handler upgrades HTTP requests to websocket lobby connections.
// One text frame carries one request; each response is sent as one text frame.
type Handler struct {
	cfg        Config
	upgrader   websocket.Upgrader
	dispatcher *dispatch.Dispatcher
	limiter    *transport.Limiter
	metrics    transport.ConnMetrics
	logger     *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	conns   map[*websocket.Conn]struct{}
	closing bool
	wg      sync.WaitGroup
}

// NewHandler creates a websocket handler sharing the given connection limiter
func NewHandler(cfg Config, dispatcher *dispatch.Dispatcher, limiter *transport.Limiter, logger *slog.Logger) *Handler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Handler{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Game clients are not browsers bound to an origin
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		dispatcher: dispatcher,
		limiter:    limiter,
		logger:     logger.With(slog.String("component", "ws")),
		ctx:        ctx,
		cancel:     cancel,
		conns:      make(map[*websocket.Conn]struct{}),
	}
}

// SetMetrics installs connection metrics. Must be called before serving.
func (h *Handler) SetMetrics(m transport.ConnMetrics) {
	h.metrics = m
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		h.logger.Debug("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	h.mu.Lock()
	if h.closing {
		h.mu.Unlock()
		_ = ws.Close()
		return
	}
	h.conns[ws] = struct{}{}
	h.wg.Add(1)
	h.mu.Unlock()

	defer func() {
		_ = ws.Close()
		h.mu.Lock()
		delete(h.conns, ws)
		h.mu.Unlock()
		h.wg.Done()
	}()

	addr := r.RemoteAddr
	f := newFramer(ws, h.cfg)

	if !h.limiter.Acquire() {
		h.logger.Warn("connection rejected, server full",
			slog.String("addr", addr),
			slog.Int("max_connections", h.limiter.Max()))
		if h.metrics != nil {
			h.metrics.ConnectionRejected(transportName)
		}
		_ = f.WriteMessage(h.dispatcher.ServerFull())
		f.closeWith(websocket.CloseTryAgainLater, "server full")
		return
	}
	defer h.limiter.Release()

	if h.metrics != nil {
		h.metrics.ConnectionOpened(transportName)
		defer h.metrics.ConnectionClosed(transportName)
	}

	stopPing := f.keepAlive()
	defer stopPing()

	conn := h.dispatcher.Open(h.ctx, addr, transportName)
	transport.Serve(h.ctx, f, h.dispatcher, conn, h.logger)
	f.closeWith(websocket.CloseNormalClosure, "")
}

// Shutdown closes every open websocket and waits for cleanup to finish
func (h *Handler) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.closing = true
	for ws := range h.conns {
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		_ = ws.Close()
	}
	h.mu.Unlock()
	h.cancel()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("websocket shutdown: %w", ctx.Err())
	}
}

// framer adapts a websocket connection to transport.Framer
type framer struct {
	ws  *websocket.Conn
	cfg Config
}

func newFramer(ws *websocket.Conn, cfg Config) *framer {
	if cfg.ReadLimit > 0 {
		ws.SetReadLimit(cfg.ReadLimit)
	}
	if cfg.PongWait > 0 {
		_ = ws.SetReadDeadline(time.Now().Add(cfg.PongWait))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(cfg.PongWait))
		})
	}
	return &framer{ws: ws, cfg: cfg}
}

func (f *framer) ReadMessage() ([]byte, error) {
	_, data, err := f.ws.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
			return nil, io.EOF
		}
		if errors.Is(err, websocket.ErrReadLimit) {
			return nil, transport.ErrTooLarge
		}
		return nil, err
	}
	if f.cfg.PongWait > 0 {
		_ = f.ws.SetReadDeadline(time.Now().Add(f.cfg.PongWait))
	}
	return data, nil
}

func (f *framer) WriteMessage(resp protocol.Response) error {
	if f.cfg.WriteTimeout > 0 {
		_ = f.ws.SetWriteDeadline(time.Now().Add(f.cfg.WriteTimeout))
	}
	return f.ws.WriteJSON(resp)
}

// keepAlive pings the peer until the returned stop function is called
func (f *framer) keepAlive() func() {
	if f.cfg.PongWait <= 0 {
		return func() {}
	}
	interval := f.cfg.PongWait * 9 / 10
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := f.ws.WriteControl(websocket.PingMessage, nil, f.controlDeadline()); err != nil {
					return
				}
			}
		}
	}()
	return func() { close(done) }
}

func (f *framer) closeWith(code int, text string) {
	_ = f.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), f.controlDeadline())
}

func (f *framer) controlDeadline() time.Time {
	if f.cfg.WriteTimeout > 0 {
		return time.Now().Add(f.cfg.WriteTimeout)
	}
	return time.Now().Add(time.Second)
}
