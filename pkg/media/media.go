package media

import (
	"context"
	"net/http"
)

// DefaultAuthHeader is the header carrying the presenter credential,
// both on the presenter's check response and on the retrieval response
// relayed to the caller.
const DefaultAuthHeader = "Authentication"

// ID identifies a stored media blob.
type ID int64

// Blob is a stored media payload plus its mimetype. The byte slice is
// treated as immutable once stored; implementations copy when their
// engine reuses buffers.
type Blob struct {
	Data     []byte
	Mimetype string
}

// Errors returned by BlobStore implementations.
var ErrNotFound = Err("media not found")

// Err is a sentinel error type so callers can check via errors.Is.
type Err string

func (e Err) Error() string { return string(e) }

// BlobStore is the persistence contract the service reads and writes.
// Get returns ErrNotFound for absent ids. Put is an atomic upsert:
// a concurrent Get of the same id observes the old or the new blob,
// never a torn write.
type BlobStore interface {
	Get(ctx context.Context, id ID) (Blob, error)
	Put(ctx context.Context, id ID, blob Blob) error
}

// AuthResult is the presenter's verdict for a single retrieval. The
// credential, when set, is relayed back to the original caller.
type AuthResult struct {
	Allowed    bool
	Filename   string
	Credential string
}

// Authorizer asks the external presenter whether id may be served.
// Implementations report transport and decoding failures as a denial
// rather than an error; errors are reserved for requests that cannot
// be built at all.
type Authorizer interface {
	Check(ctx context.Context, id ID, headers http.Header) (AuthResult, error)
}
