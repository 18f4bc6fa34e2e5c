// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gallowaylab/plasmiddb/internal/catalog"
	"github.com/gallowaylab/plasmiddb/internal/index"
	"github.com/gallowaylab/plasmiddb/internal/mcpserver"
	"github.com/gallowaylab/plasmiddb/internal/quartzy"
	"github.com/gallowaylab/plasmiddb/internal/render"
	"github.com/gallowaylab/plasmiddb/internal/report"
	"github.com/gallowaylab/plasmiddb/internal/source"
	"github.com/gallowaylab/plasmiddb/internal/storage"
)

var errWatchNeedsFile = errors.New("watch mode needs a file source")

func newApplication(opts []Option) (*application, *slog.Logger, error) {
	app := &application{
		version: "dev",
		stdout:  os.Stdout,
	}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, nil, fmt.Errorf("config is required")
	}

	// Logs go to stderr so stdout stays free for reports and the MCP transport.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: app.config.App.LogLevel,
	}))
	slog.SetDefault(logger)

	cfg := app.config
	logger.Info("Configuration loaded",
		slog.String("source_mode", cfg.Source.Mode),
		slog.String("output_dir", cfg.Output.Dir),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	return app, logger, nil
}

func (a *application) openIndex() (*index.DB, error) {
	if err := os.MkdirAll(filepath.Dir(a.config.SQLite.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}
	db, err := index.Open(a.config.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}
	return db, nil
}

func (a *application) newSource(logger *slog.Logger) (source.Source, error) {
	cfg := a.config
	opts := source.Options{
		Mode: cfg.Source.Mode,
		Quartzy: quartzy.Options{
			BaseURL:      cfg.Quartzy.BaseURL,
			APIURL:       cfg.Quartzy.APIURL,
			GroupID:      cfg.Quartzy.GroupID,
			Username:     cfg.Quartzy.Username,
			Password:     cfg.Quartzy.Password,
			PageSize:     cfg.Quartzy.PageSize,
			RequestDelay: cfg.Quartzy.RequestDelay,
		},
	}
	if cfg.Source.Mode == SourceModeFile {
		store, err := storage.NewFS(filepath.Dir(cfg.Source.Path))
		if err != nil {
			return nil, fmt.Errorf("init source store: %w", err)
		}
		opts.Store = store
		opts.Path = filepath.Base(cfg.Source.Path)
	}
	src, err := source.New(opts, logger)
	if err != nil {
		return nil, fmt.Errorf("init source: %w", err)
	}
	return src, nil
}

func (a *application) newCatalog(src source.Source, store index.SnapshotStore, logger *slog.Logger) *catalog.Service {
	return catalog.NewService(src, store, catalog.Config{
		DefaultOwnerID: a.config.Lint.DefaultOwnerID,
		Lint:           a.config.Lint.Options(),
	}, logger)
}

func (a *application) newRenderer(logger *slog.Logger) (*render.Renderer, error) {
	out, err := storage.EnsureFS(a.config.Output.Dir)
	if err != nil {
		return nil, fmt.Errorf("init output: %w", err)
	}
	return render.New(out, render.Options{}, logger), nil
}

// renderView writes the pages of v and logs what changed.
func renderView(ctx context.Context, r *render.Renderer, v *catalog.View, force bool, logger *slog.Logger) error {
	res, err := r.Render(ctx, v, force)
	if err != nil {
		return err
	}
	logger.Info("Pages rendered",
		slog.Int("written", res.Written),
		slog.Int("unchanged", res.Unchanged),
		slog.Int("removed", res.Removed))
	return nil
}

// Build fetches, lints and indexes the inventory, stores the snapshot and
// renders the documentation tree. With WithWatch it keeps rebuilding on
// changes to the source dump until ctx is cancelled.
func Build(ctx context.Context, opts ...Option) error {
	app, logger, err := newApplication(opts)
	if err != nil {
		return err
	}
	if app.watch && app.config.Source.Mode != SourceModeFile {
		return errWatchNeedsFile
	}

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

	v, err := svc.Reload(ctx)
	if err != nil {
		return fmt.Errorf("build: %w", err)
	}
	if err := renderView(ctx, renderer, v, app.forceRebuild, logger); err != nil {
		return fmt.Errorf("build: %w", err)
	}
	if !app.watch {
		return nil
	}

	logger.Info("Watching source for changes", slog.String("path", app.config.Source.Path))
	err = index.Watch(ctx, app.config.Source.Path, index.DefaultDebounce, logger, func(string) {
		v, err := svc.Reload(ctx)
		if err != nil {
			logger.Error("rebuild failed", slog.String("error", err.Error()))
			return
		}
		if err := renderView(ctx, renderer, v, false, logger); err != nil {
			logger.Error("render failed", slog.String("error", err.Error()))
		}
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("watch: %w", err)
	}
	return nil
}

// UserLint lints the inventory and prints per-owner tables of flagged
// plasmids. Nothing is persisted.
func UserLint(ctx context.Context, opts ...Option) error {
	app, logger, err := newApplication(opts)
	if err != nil {
		return err
	}

	var src source.Source
	if app.fromSnapshot {
		db, err := app.openIndex()
		if err != nil {
			return err
		}
		defer db.Close()
		src = source.NewSnapshot(db)
	} else {
		if src, err = app.newSource(logger); err != nil {
			return err
		}
	}

	v, err := app.newCatalog(src, nil, logger).Reload(ctx)
	if err != nil {
		return fmt.Errorf("userlint: %w", err)
	}
	report.Write(app.stdout, v.Owners, app.report)
	return nil
}

// ServeMCP builds once and serves the MCP tools over stdio.
func ServeMCP(ctx context.Context, opts ...Option) error {
	app, logger, err := newApplication(opts)
	if err != nil {
		return err
	}

	db, err := app.openIndex()
	if err != nil {
		return err
	}
	defer db.Close()

	src, err := app.newSource(logger)
	if err != nil {
		return err
	}
	svc := app.newCatalog(src, db, logger)

	buildCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()
	if _, err := svc.Reload(buildCtx); err != nil {
		logger.Warn("initial build failed", slog.String("error", err.Error()))
	}

	logger.Info("MCP server starting on stdio")
	return mcpserver.New(svc, db, app.config.Lint.Options(), app.version).ServeStdio()
}
