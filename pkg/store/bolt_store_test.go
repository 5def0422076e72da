package store

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/mediafs/mediad/pkg/media"
)

func TestBoltStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "media.db")
	store, err := NewBoltStore(BoltConfig{Path: path})
	if err != nil {
		t.Fatalf("new bolt store: %v", err)
	}
	defer store.Close()

	if _, err := store.Get(ctx, 1); !errors.Is(err, media.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	blob := media.Blob{Data: []byte{0x00, 0x01, 0xff}, Mimetype: "image/png"}
	if err := store.Put(ctx, 1, blob); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := store.Get(ctx, 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !bytes.Equal(got.Data, blob.Data) || got.Mimetype != blob.Mimetype {
		t.Fatalf("got %+v, want %+v", got, blob)
	}

	updated := media.Blob{Data: []byte("replaced"), Mimetype: "text/plain"}
	if err := store.Put(ctx, 1, updated); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, err = store.Get(ctx, 1)
	if err != nil {
		t.Fatalf("get after overwrite: %v", err)
	}
	if string(got.Data) != "replaced" || got.Mimetype != "text/plain" {
		t.Fatalf("overwrite not visible: %+v", got)
	}
}

func TestBoltStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "media.db")

	store, err := NewBoltStore(BoltConfig{Path: path})
	if err != nil {
		t.Fatalf("new bolt store: %v", err)
	}
	if err := store.Put(ctx, 42, media.Blob{Data: []byte("keep"), Mimetype: "text/plain"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewBoltStore(BoltConfig{Path: path})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	got, err := reopened.Get(ctx, 42)
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if string(got.Data) != "keep" {
		t.Fatalf("lost data across reopen: %q", got.Data)
	}
}

func TestBoltStoreNegativeID(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "media.db")
	store, err := NewBoltStore(BoltConfig{Path: path})
	if err != nil {
		t.Fatalf("new bolt store: %v", err)
	}
	defer store.Close()

	if err := store.Put(ctx, -3, media.Blob{Data: []byte("neg"), Mimetype: "a/b"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := store.Get(ctx, -3)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got.Data) != "neg" {
		t.Fatalf("got %q, want neg", got.Data)
	}
	if _, err := store.Get(ctx, 3); !errors.Is(err, media.ErrNotFound) {
		t.Fatalf("positive twin must stay absent, got %v", err)
	}
}

func TestBoltStoreRequiresPath(t *testing.T) {
	if _, err := NewBoltStore(BoltConfig{}); err == nil {
		t.Fatalf("expected error for missing path")
	}
}
