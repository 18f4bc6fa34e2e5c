package source

import (
	"context"

	"github.com/gallowaylab/plasmiddb/internal/plasmid"
)

// RawLoader returns the raw records of a stored build.
type RawLoader interface {
	LoadRaw(ctx context.Context) ([]plasmid.RawUser, []plasmid.RawPlasmid, error)
}

// Snapshot replays the last stored build, for offline re-linting.
type Snapshot struct {
	loader RawLoader
}

// NewSnapshot returns a source backed by loader.
func NewSnapshot(loader RawLoader) *Snapshot {
	return &Snapshot{loader: loader}
}

// FetchPlasmids implements Source.
func (s *Snapshot) FetchPlasmids(ctx context.Context) ([]plasmid.RawPlasmid, error) {
	_, raws, err := s.loader.LoadRaw(ctx)
	return raws, err
}

// FetchUsers implements Source.
func (s *Snapshot) FetchUsers(ctx context.Context) ([]plasmid.RawUser, error) {
	users, _, err := s.loader.LoadRaw(ctx)
	return users, err
}
