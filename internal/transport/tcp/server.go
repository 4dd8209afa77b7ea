package tcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/mcoot/lobbyd/internal/dispatch"
	"github.com/mcoot/lobbyd/internal/transport"
)

const transportName = "tcp"

// Config holds configuration for the lobby TCP listener
type Config struct {
	Host            string
	Port            int
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	// ReadLimit caps the bytes read for one request; 0 means unlimited
	ReadLimit int64
	// IdleTimeout closes connections that send nothing for this long; 0 disables it
	IdleTimeout time.Duration
}

// DefaultConfig returns sensible defaults for the TCP listener
func DefaultConfig() Config {
	return Config{
		Host:            "0.0.0.0",
		Port:            9000,
		WriteTimeout:    10 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		ReadLimit:       64 * 1024,
		IdleTimeout:     2 * time.Minute,
	}
}

// Server accepts lobby protocol connections over TCP
type Server struct {
	cfg        Config
	dispatcher *dispatch.Dispatcher
	limiter    *transport.Limiter
	metrics    transport.ConnMetrics
	logger     *slog.Logger

	// Base context for connection handlers, cancelled on shutdown
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	closing  bool
	wg       sync.WaitGroup
}

// NewServer creates a TCP server sharing the given connection limiter
func NewServer(cfg Config, dispatcher *dispatch.Dispatcher, limiter *transport.Limiter, logger *slog.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:        cfg,
		dispatcher: dispatcher,
		limiter:    limiter,
		logger:     logger.With(slog.String("component", "tcp")),
		ctx:        ctx,
		cancel:     cancel,
		conns:      make(map[net.Conn]struct{}),
	}
}

// SetMetrics installs connection metrics. Must be called before Start.
func (s *Server) SetMetrics(m transport.ConnMetrics) {
	s.metrics = m
}

// Listen binds the listening socket without accepting connections yet
func (s *Server) Listen() error {
	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprint(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	return nil
}

// Start accepts connections until Shutdown is called
func (s *Server) Start() error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln == nil {
		if err := s.Listen(); err != nil {
			return err
		}
		s.mu.Lock()
		ln = s.listener
		s.mu.Unlock()
	}

	s.logger.Info("starting lobby TCP server", slog.String("addr", ln.Addr().String()))

	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.isClosing() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}

		s.mu.Lock()
		if s.closing {
			s.mu.Unlock()
			_ = conn.Close()
			return nil
		}
		s.conns[conn] = struct{}{}
		s.wg.Add(1)
		s.mu.Unlock()

		go s.handle(conn)
	}
}

func (s *Server) handle(c net.Conn) {
	defer s.wg.Done()
	defer func() {
		_ = c.Close()
		s.mu.Lock()
		delete(s.conns, c)
		s.mu.Unlock()
	}()

	addr := c.RemoteAddr().String()
	f := newFramer(c, s.cfg)

	if !s.limiter.Acquire() {
		s.logger.Warn("connection rejected, server full",
			slog.String("addr", addr),
			slog.Int("max_connections", s.limiter.Max()))
		if s.metrics != nil {
			s.metrics.ConnectionRejected(transportName)
		}
		_ = f.WriteMessage(s.dispatcher.ServerFull())
		return
	}
	defer s.limiter.Release()

	if s.metrics != nil {
		s.metrics.ConnectionOpened(transportName)
		defer s.metrics.ConnectionClosed(transportName)
	}

	conn := s.dispatcher.Open(s.ctx, addr, transportName)
	s.logger.Debug("connection opened",
		slog.String("addr", addr),
		slog.String("connection", string(conn.ID)))

	transport.Serve(s.ctx, f, s.dispatcher, conn, s.logger)

	s.logger.Debug("connection closed", slog.String("addr", addr))
}

func (s *Server) isClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closing
}

// Shutdown stops accepting, closes open connections and waits for their
// cleanup to finish
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down lobby TCP server")

	s.mu.Lock()
	s.closing = true
	if s.listener != nil {
		_ = s.listener.Close()
	}
	for c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()
	s.cancel()

	shutdownCtx := ctx
	if s.cfg.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
		defer cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("lobby TCP server stopped")
		return nil
	case <-shutdownCtx.Done():
		return fmt.Errorf("shutdown error: %w", shutdownCtx.Err())
	}
}

// Addr returns the bound address, or the configured one before Listen
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return net.JoinHostPort(s.cfg.Host, fmt.Sprint(s.cfg.Port))
}
