package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/saturnino-fabrica-de-software/facewatch/internal/api"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/api/middleware"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/app"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/audit"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/config"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/gallery"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/scanner"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/webhook"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/ws"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	logger := config.NewLogger(cfg.Environment)
	slog.SetDefault(logger)

	logger.Info("starting Facewatch API",
		slog.String("environment", cfg.Environment),
		slog.Int("port", cfg.Port),
	)

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	// An index that cannot be loaded at startup would silently answer "unknown" for everyone
	report, err := a.Synchronizer.Sync(ctx)
	if err != nil {
		return fmt.Errorf("initial gallery sync: %w", err)
	}
	logger.Info("gallery loaded",
		slog.Int("identities", report.Loaded),
		slog.Int("skipped", report.Skipped),
	)

	hub := ws.NewHub()
	go hub.Run(ctx)

	var alerts ws.Publisher
	if len(cfg.WebhookURLs) > 0 {
		dispatcher := webhook.NewDispatcher(webhook.Config{
			URLs:        cfg.WebhookURLs,
			Secret:      cfg.WebhookSecret,
			Events:      cfg.WebhookEvents,
			MaxAttempts: cfg.WebhookMaxAttempts,
		}, logger)
		go dispatcher.Run(ctx)
		alerts = dispatcher
	}

	var trail ws.Publisher
	if cfg.AuditEnabled {
		trail = audit.NewRecorder(audit.NewSlogLogger(logger))
	}

	events := ws.Fanout(hub, alerts, trail)

	worker := gallery.NewWorker(a.Synchronizer, logger, cfg.SyncInterval).OnSync(func(r gallery.SyncReport) {
		events.Publish(ws.EventGallerySynced, r)
	})
	go worker.Run(ctx)

	scan := scanner.New(a.Engine, events, logger, scanner.Config{
		MaxFPS:       cfg.ScanMaxFPS,
		FrameTimeout: cfg.ScanFrameTimeout,
	})

	// Setup router
	router := api.NewRouter(logger, &api.Dependencies{
		Engine:    a.Engine,
		Scanner:   scan,
		Hub:       hub,
		Publisher: events,
		DB:        a.Pool,
		RateLimit: middleware.RateLimiterConfig{
			Rate:  cfg.RateLimitRPS,
			Burst: cfg.RateLimitBurst,
		},
	})
	router.Setup()

	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		logger.Info("server listening", slog.String("addr", addr))
		if err := router.Listen(addr); err != nil {
			errChan <- err
		}
	}()

	// Wait for shutdown signal or error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}

	logger.Info("shutting down server...")

	done := make(chan error, 1)
	go func() {
		done <- router.Shutdown()
	}()

	select {
	case err := <-done:
		if err != nil {
			logger.Error("shutdown error", slog.Any("error", err))
		}
	case <-time.After(10 * time.Second):
		logger.Warn("shutdown timed out")
	}

	logger.Info("server stopped")

	return nil
}
