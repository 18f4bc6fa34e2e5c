// Package catalog runs builds and publishes the resulting linted view.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gallowaylab/plasmiddb/internal/apperr"
	"github.com/gallowaylab/plasmiddb/internal/index"
	"github.com/gallowaylab/plasmiddb/internal/metrics"
	"github.com/gallowaylab/plasmiddb/internal/plasmid"
	"github.com/gallowaylab/plasmiddb/internal/source"
)

// Config holds the build settings.
type Config struct {
	DefaultOwnerID string
	Lint           plasmid.LintOptions
}

// BuildHook runs after a view is published.
type BuildHook func(ctx context.Context, v *View)

// Service coordinates the source, the linter and the snapshot store.
type Service struct {
	src    source.Source
	store  index.SnapshotStore
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	reloadMu sync.Mutex
	hooks    []BuildHook

	mu      sync.RWMutex
	current *View
}

// NewService creates a catalog service. store may be nil, in which case
// builds are not persisted.
func NewService(src source.Source, store index.SnapshotStore, cfg Config, logger *slog.Logger) *Service {
	return &Service{
		src:    src,
		store:  store,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// OnBuild registers a hook called after each successful Reload.
func (s *Service) OnBuild(h BuildHook) {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()
	s.hooks = append(s.hooks, h)
}

// Reload fetches users and records, lints them with a fresh linter, stores
// the snapshot and publishes the new view. Concurrent calls are serialized;
// a failed build leaves the previous view in place.
func (s *Service) Reload(ctx context.Context) (*View, error) {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	start := s.now()
	v, err := s.build(ctx, start)
	if err != nil {
		metrics.ObserveBuildFailure()
		return nil, err
	}

	if s.store != nil {
		res, err := s.store.SaveSnapshot(ctx, index.Snapshot{
			BuiltAt:  v.BuiltAt,
			Users:    v.Users,
			Plasmids: v.Plasmids,
			Summary:  v.Summary,
		})
		if err != nil {
			metrics.ObserveBuildFailure()
			return nil, fmt.Errorf("catalog: save snapshot: %w", err)
		}
		s.logger.Debug("catalog: snapshot saved",
			slog.Int64("build_id", res.BuildID),
			slog.Int("upserted", res.Upserted),
			slog.Int("unchanged", res.Unchanged),
			slog.Int("removed", res.Removed))
	}

	s.mu.Lock()
	s.current = v
	s.mu.Unlock()

	metrics.ObserveBuild(s.now().Sub(start), len(v.Plasmids), v.Summary.ErrorRecords, v.Summary.WarningRecords)
	s.logger.Info("catalog: build published",
		slog.Int("plasmids", len(v.Plasmids)),
		slog.Int("error_records", v.Summary.ErrorRecords),
		slog.Int("warning_records", v.Summary.WarningRecords),
		slog.Int("alt_groups", len(v.AltGroups)))

	for _, h := range s.hooks {
		h(ctx, v)
	}
	return v, nil
}

func (s *Service) build(ctx context.Context, builtAt time.Time) (*View, error) {
	var (
		users []plasmid.RawUser
		raws  []plasmid.RawPlasmid
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		users, err = s.src.FetchUsers(gCtx)
		if err != nil {
			return fmt.Errorf("catalog: fetch users: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		raws, err = s.src.FetchPlasmids(gCtx)
		if err != nil {
			return fmt.Errorf("catalog: fetch plasmids: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	v, err := Assemble(users, raws, plasmid.NewDefaultLinter(s.cfg.Lint), s.cfg.DefaultOwnerID, builtAt)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	return v, nil
}

// Current returns the last published view, or apperr.ErrNotFound before the
// first successful build.
func (s *Service) Current() (*View, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil, fmt.Errorf("catalog: no build yet: %w", apperr.ErrNotFound)
	}
	return s.current, nil
}
