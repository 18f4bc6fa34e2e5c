package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gallowaylab/plasmiddb/internal/checksum"
)

const tempPrefix = ".plasmiddb-tmp-"

// FS is a Provider over a directory on local disk.
type FS struct {
	root string
	dir  fs.FS
}

// NewFS returns a provider rooted at an existing directory.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	switch {
	case err != nil:
		return nil, fmt.Errorf("storage: stat root: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs, dir: os.DirFS(abs)}, nil
}

// EnsureFS is NewFS after creating root and its parents.
func EnsureFS(root string) (*FS, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create root: %w", err)
	}
	return NewFS(root)
}

// Root returns the absolute root directory.
func (f *FS) Root() string { return f.root }

// rel validates a slash-separated provider path and returns its cleaned form.
// "" and "." name the root.
func rel(p string) (string, error) {
	if p == "" {
		return ".", nil
	}
	if strings.HasPrefix(p, "/") || !filepath.IsLocal(filepath.FromSlash(p)) {
		return "", fmt.Errorf("storage: path outside root: %s", p)
	}
	return path.Clean(p), nil
}

func (f *FS) abs(p string) (string, error) {
	r, err := rel(p)
	if err != nil {
		return "", err
	}
	return filepath.Join(f.root, filepath.FromSlash(r)), nil
}

// List walks dir and fingerprints every file whose name ends in ext.
// A missing dir yields no files.
func (f *FS) List(dir, ext string) ([]File, error) {
	start, err := rel(dir)
	if err != nil {
		return nil, err
	}
	var out []File
	err = fs.WalkDir(f.dir, start, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == start && errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return err
		}
		name := d.Name()
		if d.IsDir() || strings.HasPrefix(name, tempPrefix) || !strings.HasSuffix(name, ext) {
			return nil
		}
		data, err := fs.ReadFile(f.dir, p)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		out = append(out, File{Path: p, Checksum: checksum.Sum(data), ModTime: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: list %s: %w", dir, err)
	}
	return out, nil
}

// Read returns the contents of the file at p.
func (f *FS) Read(p string) ([]byte, error) {
	r, err := rel(p)
	if err != nil {
		return nil, err
	}
	data, err := fs.ReadFile(f.dir, r)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", p, err)
	}
	return data, nil
}

// Write replaces the file at p. Readers see either the old or the new
// content, never a partial page.
func (f *FS) Write(p string, content []byte) error {
	target, err := f.abs(p)
	if err != nil {
		return err
	}
	if target == f.root {
		return errors.New("storage: cannot write root")
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}
	if err := writeAtomic(target, content); err != nil {
		return fmt.Errorf("storage: write %s: %w", p, err)
	}
	return nil
}

// writeAtomic writes to a temp file beside target, syncs it and renames it
// into place.
func writeAtomic(target string, content []byte) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(target), tempPrefix+"*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(content); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), target)
}

// Delete removes the file at p.
func (f *FS) Delete(p string) error {
	target, err := f.abs(p)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil {
		return fmt.Errorf("storage: delete %s: %w", p, err)
	}
	return nil
}

// Clear empties dir but keeps it. A missing dir is not an error.
func (f *FS) Clear(dir string) error {
	target, err := f.abs(dir)
	if err != nil {
		return err
	}
	entries, err := os.ReadDir(target)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("storage: clear %s: %w", dir, err)
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(target, e.Name())); err != nil {
			return fmt.Errorf("storage: clear %s: %w", dir, err)
		}
	}
	return nil
}
