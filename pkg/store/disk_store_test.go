package store

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"

	"github.com/mediafs/mediad/pkg/media"
)

func TestDiskStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewDiskStore(memfs.New())
	if err != nil {
		t.Fatalf("new disk store: %v", err)
	}
	defer store.Close()

	if _, err := store.Get(ctx, 5); !errors.Is(err, media.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	blob := media.Blob{Data: []byte{0xde, 0xad, 0xbe, 0xef}, Mimetype: "application/pdf"}
	if err := store.Put(ctx, 5, blob); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := store.Get(ctx, 5)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !bytes.Equal(got.Data, blob.Data) || got.Mimetype != blob.Mimetype {
		t.Fatalf("got %+v, want %+v", got, blob)
	}

	if err := store.Put(ctx, 5, media.Blob{Data: []byte("new"), Mimetype: "text/plain"}); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, err = store.Get(ctx, 5)
	if err != nil {
		t.Fatalf("get after overwrite: %v", err)
	}
	if string(got.Data) != "new" || got.Mimetype != "text/plain" {
		t.Fatalf("overwrite not visible: %+v", got)
	}
}

func TestDiskStoreZeroLengthBlob(t *testing.T) {
	ctx := context.Background()
	store, err := NewDiskStore(memfs.New())
	if err != nil {
		t.Fatalf("new disk store: %v", err)
	}
	if err := store.Put(ctx, 1, media.Blob{Data: nil, Mimetype: "image/gif"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := store.Get(ctx, 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Data) != 0 {
		t.Fatalf("expected empty data, got %v", got.Data)
	}
	if got.Mimetype != "image/gif" {
		t.Fatalf("mimetype = %q, want image/gif", got.Mimetype)
	}
}

func TestDiskStoreLeavesNoTempFiles(t *testing.T) {
	ctx := context.Background()
	fsys := memfs.New()
	store, err := NewDiskStore(fsys)
	if err != nil {
		t.Fatalf("new disk store: %v", err)
	}
	for i := 0; i < 5; i++ {
		if err := store.Put(ctx, media.ID(i), media.Blob{Data: []byte("x"), Mimetype: "a/b"}); err != nil {
			t.Fatalf("put %d: %v", i, err)
		}
	}
	entries, err := fsys.ReadDir("/")
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 5 {
		t.Fatalf("expected 5 files, got %d", len(entries))
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".upload-") {
			t.Fatalf("temp file %q left behind", entry.Name())
		}
	}
}

func TestDiskStoreOnOsfs(t *testing.T) {
	ctx := context.Background()
	store, err := NewDiskStore(osfs.New(t.TempDir()))
	if err != nil {
		t.Fatalf("new disk store: %v", err)
	}
	defer store.Close()

	blob := media.Blob{Data: []byte("on disk"), Mimetype: "text/plain"}
	if err := store.Put(ctx, 7, blob); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := store.Get(ctx, 7)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got.Data) != "on disk" || got.Mimetype != "text/plain" {
		t.Fatalf("unexpected blob %+v", got)
	}
	if _, err := store.Get(ctx, 8); !errors.Is(err, media.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
