package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/mediafs/mediad/pkg/media"
)

var bucketMedia = []byte("mediafiles")

// BoltConfig configures the BoltDB-backed store.
type BoltConfig struct {
	Path    string
	NoSync  bool
	Timeout time.Duration
}

// BoltStore persists blobs in a single-file BoltDB database.
type BoltStore struct {
	cfg BoltConfig
	db  *bolt.DB
}

var _ Store = (*BoltStore)(nil)

// NewBoltStore opens or creates the database at cfg.Path.
func NewBoltStore(cfg BoltConfig) (*BoltStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("boltdb: path is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 1 * time.Second
	}
	opts := bolt.Options{
		Timeout: cfg.Timeout,
		NoSync:  cfg.NoSync,
	}
	db, err := bolt.Open(cfg.Path, 0o600, &opts)
	if err != nil {
		return nil, fmt.Errorf("boltdb: open: %w", err)
	}
	store := &BoltStore{cfg: cfg, db: db}
	if err := store.init(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (b *BoltStore) init() error {
	return b.db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketMedia); err != nil {
			return fmt.Errorf("boltdb: create bucket %s: %w", bucketMedia, err)
		}
		return nil
	})
}

type record struct {
	Mimetype string `json:"mimetype"`
	Data     []byte `json:"data"`
}

func (b *BoltStore) Get(ctx context.Context, id media.ID) (media.Blob, error) {
	var blob media.Blob
	err := b.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketMedia).Get(idKey(id))
		if data == nil {
			return media.ErrNotFound
		}
		// json.Unmarshal allocates fresh buffers, so nothing below
		// aliases the transaction's pages.
		var rec record
		if err := json.Unmarshal(data, &rec); err != nil {
			return fmt.Errorf("boltdb: decode record %d: %w", id, err)
		}
		blob = media.Blob{Data: rec.Data, Mimetype: rec.Mimetype}
		return nil
	})
	return blob, err
}

func (b *BoltStore) Put(ctx context.Context, id media.ID, blob media.Blob) error {
	data, err := json.Marshal(record{Mimetype: blob.Mimetype, Data: blob.Data})
	if err != nil {
		return fmt.Errorf("boltdb: encode record %d: %w", id, err)
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketMedia).Put(idKey(id), data)
	})
}

// Close releases the underlying BoltDB.
func (b *BoltStore) Close() error {
	if b.db == nil {
		return nil
	}
	return b.db.Close()
}

func idKey(id media.ID) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(id))
	return buf
}
