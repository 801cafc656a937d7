package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotExist is returned by Get when nothing is stored at the path.
var ErrNotExist = errors.New("stored object does not exist")

// Storage saves and serves opaque blobs addressed by a relative path.
type Storage interface {
	// Save writes content to path, replacing any previous object.
	Save(ctx context.Context, path string, content io.Reader) error

	// Get opens the object at path. The caller closes the reader.
	Get(ctx context.Context, path string) (io.ReadCloser, error)

	// Delete removes the object at path. Missing objects are not an error.
	Delete(ctx context.Context, path string) error
}
