package store

import (
	"context"
	"sync"

	"github.com/mediafs/mediad/pkg/media"
)

// MemoryStore keeps blobs in process memory, for tests and ephemeral
// deployments. Blobs are copied on both put and get so callers can
// never observe each other's buffers.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[media.ID]media.Blob
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: map[media.ID]media.Blob{}}
}

func (m *MemoryStore) Get(ctx context.Context, id media.ID) (media.Blob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	blob, ok := m.blobs[id]
	if !ok {
		return media.Blob{}, media.ErrNotFound
	}
	return media.Blob{Data: append([]byte(nil), blob.Data...), Mimetype: blob.Mimetype}, nil
}

func (m *MemoryStore) Put(ctx context.Context, id media.ID, blob media.Blob) error {
	stored := media.Blob{Data: append([]byte(nil), blob.Data...), Mimetype: blob.Mimetype}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[id] = stored
	return nil
}

// Close drops all stored blobs.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs = map[media.ID]media.Blob{}
	return nil
}
