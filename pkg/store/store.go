package store

import (
	"io"

	"github.com/mediafs/mediad/pkg/media"
)

// Store is a media.BlobStore that owns the lifecycle of its engine.
// Close is invoked exactly once at process teardown.
type Store interface {
	media.BlobStore
	io.Closer
}
