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
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/kbview/internal/seed"
	"github.com/starford/kbview/internal/sse"
	"github.com/starford/kbview/internal/tableview"
	"github.com/starford/kbview/internal/upload"
	"github.com/starford/kbview/internal/web"
)

// Components are the wired runtime pieces, exposed for Run and tests.
type Components struct {
	Broker  *sse.Broker
	Tracker *upload.Tracker
	Board   *web.Board
	Handler http.Handler
}

// Close stops the background loops.
func (c *Components) Close() {
	c.Tracker.Close()
	c.Broker.Close()
}

// Build seeds the table and wires the broker, tracker and router.
func Build(cfg *Config, logger *slog.Logger) (*Components, error) {
	records, err := seed.Load(cfg.Seed.Path)
	if err != nil {
		return nil, fmt.Errorf("load seed: %w", err)
	}

	broker := sse.NewBroker(sse.Config{
		ProgressThrottle: cfg.Events.ProgressThrottle,
		KeepAlive:        cfg.Events.KeepAlive,
	})

	ctl, err := tableview.New(records,
		tableview.WithPageSize(cfg.Table.PageSize),
		tableview.WithLocale(cfg.Table.Tag()),
		tableview.WithRenderer(func(p tableview.Page) {
			broker.Publish(sse.Event{Type: sse.TypeViewUpdated, Data: p.Summary()})
		}),
	)
	if err != nil {
		broker.Close()
		return nil, fmt.Errorf("init table: %w", err)
	}
	logger.Info("Table seeded", slog.Int("records", len(records)), slog.Int("page_size", ctl.PageSize()))

	tracker := upload.NewTracker(upload.Config{
		Tick: cfg.Upload.Tick,
		Step: cfg.Upload.Step,
	}, logger, broker.PublishUpload)

	board := web.NewBoard(ctl)
	h := web.NewHandler(board, tracker, cfg.Upload.MaxBytes)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

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

	r.Mount("/", web.NewRouter(h, broker))

	return &Components{
		Broker:  broker,
		Tracker: tracker,
		Board:   board,
		Handler: r,
	}, nil
}

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

	logger := app.logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: cfg.App.LogLevel,
		}))
	}
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.Int("page_size", cfg.Table.PageSize),
		slog.String("locale", cfg.Table.Locale),
		slog.String("seed_path", cfg.Seed.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	comps, err := Build(cfg, logger)
	if err != nil {
		return err
	}
	defer comps.Close()

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           comps.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		// Close the broker first so open SSE streams return.
		comps.Broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}
