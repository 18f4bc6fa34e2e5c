// Package storage defines the file-tree abstraction used for rendered pages
// and source dumps.
package storage

import "time"

// File describes a stored file.
type File struct {
	Path     string
	Checksum string
	ModTime  time.Time
}

// Provider is the interface for file-tree operations. All paths are relative
// to the provider root and use forward slashes.
type Provider interface {
	// List returns every file under dir whose name ends with ext (any file when ext is empty).
	List(dir, ext string) ([]File, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path, creating parent directories.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
	// Clear removes everything under dir, keeping dir itself.
	Clear(dir string) error
}
