package store

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/mediafs/mediad/pkg/media"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	defer store.Close()

	if _, err := store.Get(ctx, 9); !errors.Is(err, media.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := store.Put(ctx, 9, media.Blob{Data: []byte("abc"), Mimetype: "text/plain"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := store.Get(ctx, 9)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got.Data) != "abc" || got.Mimetype != "text/plain" {
		t.Fatalf("unexpected blob %+v", got)
	}
}

func TestMemoryStoreIsolatesBuffers(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	defer store.Close()

	src := []byte("immutable")
	if err := store.Put(ctx, 1, media.Blob{Data: src, Mimetype: "a/b"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	src[0] = 'X'

	got, err := store.Get(ctx, 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got.Data) != "immutable" {
		t.Fatalf("caller mutation leaked into the store: %q", got.Data)
	}

	got.Data[0] = 'Y'
	again, err := store.Get(ctx, 1)
	if err != nil {
		t.Fatalf("second get: %v", err)
	}
	if string(again.Data) != "immutable" {
		t.Fatalf("reader mutation leaked into the store: %q", again.Data)
	}
}

func TestMemoryStoreConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	defer store.Close()

	if err := store.Put(ctx, 1, uniformBlob(0)); err != nil {
		t.Fatalf("seed: %v", err)
	}

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		w := w
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				if err := store.Put(ctx, 1, uniformBlob(byte(w*50+i))); err != nil {
					t.Errorf("put: %v", err)
					return
				}
			}
		}()
	}
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				blob, err := store.Get(ctx, 1)
				if err != nil {
					t.Errorf("get: %v", err)
					return
				}
				if !bytes.Equal(blob.Data, bytes.Repeat(blob.Data[:1], len(blob.Data))) {
					t.Errorf("observed a torn blob: %v", blob.Data)
					return
				}
			}
		}()
	}
	wg.Wait()
}

func uniformBlob(fill byte) media.Blob {
	return media.Blob{Data: bytes.Repeat([]byte{fill}, 64), Mimetype: "application/octet-stream"}
}
