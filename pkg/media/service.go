package media

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/mediafs/mediad/pkg/xerrors"
)

const msgNotFound = "media not found"

// Service orchestrates authorization, storage and chunked delivery.
type Service struct {
	store     BlobStore
	auth      Authorizer
	blockSize int
	log       *logrus.Logger
}

// NewService wires a service over the given store and authorizer.
// A blockSize of zero or less falls back to DefaultBlockSize; a nil
// log falls back to the logrus standard logger.
func NewService(store BlobStore, auth Authorizer, blockSize int, log *logrus.Logger) *Service {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{store: store, auth: auth, blockSize: blockSize, log: log}
}

// Media is one authorized, resolved blob ready for delivery.
type Media struct {
	Blob       Blob
	Filename   string
	Credential string

	blockSize int
}

// Chunks returns a fresh forward-only stream over the blob bytes.
func (m *Media) Chunks() *ChunkStream {
	return NewChunkStream(m.Blob.Data, m.blockSize)
}

// Fetch authorizes id against the presenter and resolves the blob.
// A denial and an absent blob produce the same not-found failure so
// unauthorized callers cannot probe which ids exist.
func (s *Service) Fetch(ctx context.Context, id ID, headers http.Header) (*Media, error) {
	const op = "media.fetch"

	res, err := s.auth.Check(ctx, id, ForwardHeaders(headers))
	if err != nil {
		return nil, xerrors.Wrap(xerrors.KindInternal, op, "", err)
	}
	if !res.Allowed {
		return nil, xerrors.E(xerrors.KindNotFound, op, msgNotFound)
	}
	s.log.Debugf("filename for %d is %q", id, res.Filename)

	blob, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, xerrors.E(xerrors.KindNotFound, op, msgNotFound)
		}
		return nil, xerrors.Wrap(xerrors.KindInternal, op, "", err)
	}

	return &Media{
		Blob:       blob,
		Filename:   res.Filename,
		Credential: res.Credential,
		blockSize:  s.blockSize,
	}, nil
}

// Upload validates and stores an uploaded blob. Validation runs in three
// stages so the caller gets a stage-specific diagnostic: the payload must
// be JSON, the file field must decode as base64, and id plus mimetype
// must have the right shape. Uploads carry no authorization check; the
// route is reachable only over the trusted internal network.
func (s *Service) Upload(ctx context.Context, payload []byte) (ID, error) {
	const op = "media.upload"

	var value any
	if err := json.Unmarshal(payload, &value); err != nil {
		return 0, xerrors.Wrap(xerrors.KindBadRequest, op, "request body is not json", err)
	}
	fields, _ := value.(map[string]any)

	data, err := decodeFile(fields)
	if err != nil {
		return 0, xerrors.Wrap(xerrors.KindBadRequest, op, "cannot decode base64 file", err)
	}

	id, err := coerceID(fields["id"])
	mimetype, ok := fields["mimetype"].(string)
	if err != nil || !ok {
		return 0, xerrors.E(xerrors.KindBadRequest, op,
			fmt.Sprintf("request body is not in the right format: %s", payload))
	}
	s.log.Debugf("storing media %d (%s)", id, mimetype)

	if err := s.store.Put(ctx, id, Blob{Data: data, Mimetype: mimetype}); err != nil {
		return 0, xerrors.Wrap(xerrors.KindInternal, op, "", err)
	}
	return id, nil
}

func decodeFile(fields map[string]any) ([]byte, error) {
	raw, ok := fields["file"]
	if !ok {
		return nil, errors.New("no file field")
	}
	enc, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("file field is %T, not a string", raw)
	}
	return base64.StdEncoding.DecodeString(enc)
}

func coerceID(v any) (ID, error) {
	switch n := v.(type) {
	case float64:
		return ID(n), nil
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0, err
		}
		return ID(parsed), nil
	default:
		return 0, fmt.Errorf("id is %T, not an integer", v)
	}
}
