package source

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/gallowaylab/plasmiddb/internal/plasmid"
	"github.com/gallowaylab/plasmiddb/internal/storage"
)

// Dump is the on-disk inventory format. JSON dumps decode too, since YAML
// is a superset.
type Dump struct {
	Users    []plasmid.RawUser    `yaml:"users"`
	Plasmids []plasmid.RawPlasmid `yaml:"plasmids"`
}

// File reads records from a dump held in a storage.Provider. The dump is
// re-read on every fetch so watch mode sees edits.
type File struct {
	store storage.Provider
	path  string
}

// NewFile returns a file source for path within store.
func NewFile(store storage.Provider, path string) *File {
	return &File{store: store, path: path}
}

func (f *File) load(ctx context.Context) (*Dump, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := f.store.Read(f.path)
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	var d Dump
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("source: decode %s: %w", f.path, err)
	}
	return &d, nil
}

// FetchPlasmids implements Source.
func (f *File) FetchPlasmids(ctx context.Context) ([]plasmid.RawPlasmid, error) {
	d, err := f.load(ctx)
	if err != nil {
		return nil, err
	}
	return d.Plasmids, nil
}

// FetchUsers implements Source.
func (f *File) FetchUsers(ctx context.Context) ([]plasmid.RawUser, error) {
	d, err := f.load(ctx)
	if err != nil {
		return nil, err
	}
	return d.Users, nil
}

// WriteDump stores d as YAML at path.
func WriteDump(store storage.Provider, path string, d Dump) error {
	data, err := yaml.Marshal(d)
	if err != nil {
		return fmt.Errorf("source: encode dump: %w", err)
	}
	return store.Write(path, data)
}
