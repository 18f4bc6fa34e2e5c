// Package source provides the collaborators that deliver raw users and
// plasmid records to a build.
package source

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gallowaylab/plasmiddb/internal/apperr"
	"github.com/gallowaylab/plasmiddb/internal/plasmid"
	"github.com/gallowaylab/plasmiddb/internal/quartzy"
	"github.com/gallowaylab/plasmiddb/internal/storage"
)

// Source supplies raw records for a build.
type Source interface {
	FetchPlasmids(ctx context.Context) ([]plasmid.RawPlasmid, error)
	FetchUsers(ctx context.Context) ([]plasmid.RawUser, error)
}

// Modes understood by New.
const (
	ModeQuartzy = "quartzy"
	ModeFile    = "file"
)

// Options selects and configures a Source.
type Options struct {
	Mode string
	// Path is the dump file, relative to Store, in file mode.
	Path    string
	Store   storage.Provider
	Quartzy quartzy.Options
}

// New builds the source for opts.Mode.
func New(opts Options, logger *slog.Logger) (Source, error) {
	switch opts.Mode {
	case ModeQuartzy:
		return NewQuartzy(quartzy.NewClient(opts.Quartzy, logger)), nil
	case ModeFile:
		if opts.Store == nil {
			return nil, fmt.Errorf("source: file mode needs a store")
		}
		return NewFile(opts.Store, opts.Path), nil
	default:
		return nil, fmt.Errorf("source: mode %q: %w", opts.Mode, apperr.ErrUnsupportedSource)
	}
}
