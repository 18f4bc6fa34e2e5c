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
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/gallowaylab/plasmiddb/internal/api"
	"github.com/gallowaylab/plasmiddb/internal/catalog"
	"github.com/gallowaylab/plasmiddb/internal/index"
	"github.com/gallowaylab/plasmiddb/internal/metrics"
	"github.com/gallowaylab/plasmiddb/internal/sse"
)

func newRouter(cfg *Config, cat api.Catalog, store index.SnapshotStore, events http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := cat.Current(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"building"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Mount("/api", api.NewRouter(cat, store, cfg.Auth.AuthEnabled(), cfg.Auth.Token, events))

	// Rendered documentation tree.
	r.Handle("/*", http.FileServer(http.Dir(cfg.Output.Dir)))

	return r
}

// Serve builds the inventory, then serves the API, live build events and
// the rendered pages over HTTP. The source dump is watched in file mode.
func Serve(ctx context.Context, opts ...Option) error {
	app, logger, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	db, err := app.openIndex()
	if err != nil {
		return err
	}
	defer db.Close()

	src, err := app.newSource(logger)
	if err != nil {
		return err
	}
	renderer, err := app.newRenderer(logger)
	if err != nil {
		return err
	}
	svc := app.newCatalog(src, db, logger)

	broker := sse.NewBroker(sse.WithSummaryThrottle(2*time.Second), sse.WithHeartbeat(30*time.Second))
	defer broker.Close()

	svc.OnBuild(func(ctx context.Context, v *catalog.View) {
		if err := renderView(ctx, renderer, v, false, logger); err != nil {
			logger.Error("render failed", slog.String("error", err.Error()))
		}
		broker.PublishBuild(sse.BuildEvent{
			BuiltAt:        v.BuiltAt,
			Plasmids:       len(v.Plasmids),
			ErrorRecords:   v.Summary.ErrorRecords,
			WarningRecords: v.Summary.WarningRecords,
		})
	})
	reload := func(ctx context.Context) {
		if _, err := svc.Reload(ctx); err != nil {
			logger.Error("build failed", slog.String("error", err.Error()))
			broker.PublishBuild(sse.BuildEvent{BuiltAt: time.Now(), Error: err.Error()})
		}
	}

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           newRouter(cfg, svc, db, broker),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Initial build; readiness reports 503 until it succeeds.
	g.Go(func() error {
		reload(gCtx)
		return nil
	})

	if cfg.Source.Mode == SourceModeFile {
		g.Go(func() error {
			err := index.Watch(gCtx, cfg.Source.Path, index.DefaultDebounce, logger, func(string) {
				reload(gCtx)
			})
			if err != nil {
				return fmt.Errorf("watch: %w", err)
			}
			return nil
		})
	}

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
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.HTTP.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the run group once the server has been asked to stop,
// so the watcher exits too.
var errShutdown = errors.New("shutdown")
