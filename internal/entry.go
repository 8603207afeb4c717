// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/raido/internal/api"
	"github.com/starford/raido/internal/engine"
	"github.com/starford/raido/internal/index"
	"github.com/starford/raido/internal/mcpserver"
	"github.com/starford/raido/internal/pool"
	"github.com/starford/raido/internal/scheduler"
	"github.com/starford/raido/internal/sse"
	"github.com/starford/raido/internal/tracker"
	"github.com/starford/raido/internal/watch"
)

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger. MCP mode owns stdout for the
	// protocol, so logs go to stderr there.
	logOut := os.Stdout
	if app.mcpMode {
		logOut = os.Stderr
	}
	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("database_path", cfg.Index.DatabasePath),
		slog.String("roots", strings.Join(cfg.Index.Roots, ",")),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Ensure watched roots exist.
	for _, root := range cfg.Index.Roots {
		if err := os.MkdirAll(root, 0o755); err != nil {
			return fmt.Errorf("create root dir %s: %w", root, err)
		}
	}

	eng, err := engine.New(ctx, engine.Config{
		DatabasePath: cfg.Index.DatabasePath,
		Roots:        cfg.Index.Roots,
		Pool: pool.Config{
			MaxConnections: cfg.Pool.MaxConnections,
			MinIdle:        cfg.Pool.MinIdle,
			AcquireTimeout: cfg.Pool.AcquireTimeout.Std(),
			MaxIdleTime:    cfg.Pool.MaxIdleTime.Std(),
		},
		Indexer: index.IndexerConfig{
			MaxFileSize:       cfg.Index.MaxFileSize,
			ReanalyzeInterval: cfg.Index.ReanalyzeInterval.Std(),
			Workers:           cfg.Index.Workers,
		},
		Tracker: tracker.Config{
			MoveTimeout: cfg.Tracker.MoveTimeout.Std(),
		},
		Scheduler: scheduler.Config{
			QuickInterval:        cfg.Scheduler.QuickInterval.Std(),
			FullInterval:         cfg.Scheduler.FullInterval.Std(),
			HousekeepingInterval: cfg.Scheduler.HousekeepingInterval.Std(),
			QuickWindow:          cfg.Scheduler.QuickWindow.Std(),
		},
		CacheTTL: cfg.Search.CacheTTL.Std(),
	}, nil, logger)
	if err != nil {
		return fmt.Errorf("init engine: %w", err)
	}

	if app.mcpMode {
		defer shutdownEngine(eng, logger)
		logger.Info("Starting MCP server on stdio")
		return mcpserver.New(eng).ServeStdio()
	}

	// Initial index pass over every root.
	for _, root := range cfg.Index.Roots {
		if stats, err := eng.IndexDirectory(ctx, root); err != nil {
			logger.Warn("initial index pass failed",
				slog.String("root", root), slog.String("error", err.Error()))
		} else {
			logger.Info("initial index pass complete",
				slog.String("root", root), slog.Int64("indexed", stats.Indexed))
		}
	}

	// SSE broker.
	broker := sse.NewBroker()

	// Build API router.
	apiRouter := api.NewRouter(eng, cfg.Search.DefaultLimit, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Watcher feeds a private channel; the forwarder fans each event out
	// to SSE subscribers before handing it to the tracker.
	watchEvents := make(chan tracker.FsEvent, 256)

	g.Go(func() error {
		defer close(watchEvents)
		return watch.Watch(gCtx, eng.Roots(), eng.Indexer(), watchEvents, logger)
	})

	g.Go(func() error {
		defer close(eng.Events())
		for ev := range watchEvents {
			switch ev.Kind {
			case tracker.Created:
				broker.PublishFileEvent("created", ev.Path, "")
			case tracker.Deleted:
				broker.PublishFileEvent("deleted", ev.Path, "")
			case tracker.Moved:
				broker.PublishFileEvent("moved", ev.Path, ev.NewPath)
			}
			select {
			case eng.Events() <- ev:
			case <-gCtx.Done():
				return nil
			}
		}
		return nil
	})

	// Tracker correlation loop.
	g.Go(func() error {
		eng.Tracker().Run(gCtx, eng.Events())
		return nil
	})

	// Periodic reindex and housekeeping.
	g.Go(func() error {
		eng.Scheduler().Run(gCtx)
		return nil
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		broker.Close()

		return nil
	})

	err = g.Wait()
	shutdownEngine(eng, logger)
	if err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

func shutdownEngine(eng *engine.Engine, logger *slog.Logger) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := eng.Shutdown(shutdownCtx); err != nil {
		logger.Error("Engine shutdown error", slog.String("error", err.Error()))
	}
}
