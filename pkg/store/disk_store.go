package store

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"strconv"

	billy "github.com/go-git/go-billy/v5"

	"github.com/mediafs/mediad/pkg/media"
)

// DiskStore persists one file per blob on a billy filesystem, osfs in
// production and memfs in tests. Each file carries a two-byte big-endian
// mimetype length and the mimetype ahead of the data, so a single rename
// publishes blob and mimetype together.
type DiskStore struct {
	fs billy.Filesystem
}

var _ Store = (*DiskStore)(nil)

const mimeHeaderLen = 2

// NewDiskStore returns a store over fsys.
func NewDiskStore(fsys billy.Filesystem) (*DiskStore, error) {
	if fsys == nil {
		return nil, fmt.Errorf("disk: filesystem is required")
	}
	return &DiskStore{fs: fsys}, nil
}

func (d *DiskStore) Get(ctx context.Context, id media.ID) (media.Blob, error) {
	file, err := d.fs.Open(blobName(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return media.Blob{}, media.ErrNotFound
		}
		return media.Blob{}, fmt.Errorf("disk: open %d: %w", id, err)
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return media.Blob{}, fmt.Errorf("disk: read %d: %w", id, err)
	}
	if len(raw) < mimeHeaderLen {
		return media.Blob{}, fmt.Errorf("disk: blob %d is truncated", id)
	}
	n := int(binary.BigEndian.Uint16(raw))
	if len(raw) < mimeHeaderLen+n {
		return media.Blob{}, fmt.Errorf("disk: blob %d is truncated", id)
	}
	return media.Blob{
		Mimetype: string(raw[mimeHeaderLen : mimeHeaderLen+n]),
		Data:     raw[mimeHeaderLen+n:],
	}, nil
}

func (d *DiskStore) Put(ctx context.Context, id media.ID, blob media.Blob) error {
	if len(blob.Mimetype) > int(^uint16(0)) {
		return fmt.Errorf("disk: mimetype of %d bytes is too long", len(blob.Mimetype))
	}
	file, err := d.tempFile()
	if err != nil {
		return fmt.Errorf("disk: temp file: %w", err)
	}
	tmpName := file.Name()

	header := make([]byte, mimeHeaderLen, mimeHeaderLen+len(blob.Mimetype))
	binary.BigEndian.PutUint16(header, uint16(len(blob.Mimetype)))
	header = append(header, blob.Mimetype...)

	if _, err := file.Write(header); err != nil {
		file.Close()
		d.fs.Remove(tmpName)
		return fmt.Errorf("disk: write %d: %w", id, err)
	}
	if _, err := file.Write(blob.Data); err != nil {
		file.Close()
		d.fs.Remove(tmpName)
		return fmt.Errorf("disk: write %d: %w", id, err)
	}
	if err := file.Close(); err != nil {
		d.fs.Remove(tmpName)
		return fmt.Errorf("disk: close %d: %w", id, err)
	}
	if err := d.fs.Rename(tmpName, blobName(id)); err != nil {
		d.fs.Remove(tmpName)
		return fmt.Errorf("disk: publish %d: %w", id, err)
	}
	return nil
}

// Close is a no-op; the filesystem holds no handle to release.
func (d *DiskStore) Close() error { return nil }

func (d *DiskStore) tempFile() (billy.File, error) {
	for i := 0; i < 10; i++ {
		name := fmt.Sprintf(".upload-%d", rand.Int())
		file, err := d.fs.OpenFile(name, os.O_CREATE|os.O_RDWR|os.O_EXCL, 0o600)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		return file, err
	}
	return nil, errors.New("unable to allocate a temp name")
}

func blobName(id media.ID) string {
	return strconv.FormatInt(int64(id), 10)
}
