// Package apperr holds the sentinel errors shared across packages.
package apperr

import "errors"

var (
	ErrNotFound = errors.New("not found")

	// ErrMalformedDate marks raw records whose stock date matches none of the accepted layouts.
	ErrMalformedDate = errors.New("malformed date")
	// ErrMissingDefaultOwner means the configured fallback owner is not among the known users.
	ErrMissingDefaultOwner = errors.New("default owner not found")
	ErrUnsupportedSource   = errors.New("unsupported source")
)
