package storage

import "errors"

var (
	// ErrNotFound is returned when a referenced page, section or block does
	// not exist, including child creation against a missing parent.
	ErrNotFound = errors.New("not found")

	// ErrSlugConflict is returned when a page slug is already in use.
	ErrSlugConflict = errors.New("slug already in use")

	// ErrUnsupportedBackend is returned by the factory for an unknown
	// backend identifier, before any I/O is attempted.
	ErrUnsupportedBackend = errors.New("unsupported storage backend")

	// ErrMissingConnectionInfo is returned by the factory when a hosted
	// backend is selected without its connection string.
	ErrMissingConnectionInfo = errors.New("missing storage connection info")
)
