package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mcoot/lobbyd/internal/config"
	"github.com/mcoot/lobbyd/internal/factory"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	envFile := flag.String("env-file", ".env", "Optional dotenv file loaded before reading the environment")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		return err
	}

	// Set up logging with JSON output
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Level(),
	}))
	slog.SetDefault(logger)

	app, err := factory.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	// Handle graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Start(ctx)
	}()

	// Wait for shutdown or error
	select {
	case err := <-errCh:
		if err != nil {
			_ = app.Shutdown(context.Background())
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	if err := app.Shutdown(context.Background()); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
