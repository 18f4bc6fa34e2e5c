package index

import (
	"context"

	"github.com/gallowaylab/plasmiddb/internal/plasmid"
)

// SnapshotStore defines the build snapshot operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snap Snapshot) (SaveResult, error)
	LoadRaw(ctx context.Context) ([]plasmid.RawUser, []plasmid.RawPlasmid, error)
	ViolationsByCategory(ctx context.Context, category string) ([]ViolationRow, error)
	LastBuild(ctx context.Context) (*BuildRow, error)
	Search(query string, limit int) ([]SearchResult, error)
	Close() error
}

// Verify *DB satisfies SnapshotStore at compile time.
var _ SnapshotStore = (*DB)(nil)
