package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/mediafs/mediad/pkg/media"
)

// S3Config configures the S3-backed store.
type S3Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	Secure    bool
}

// S3Store persists one object per blob in an S3 bucket; the mimetype
// travels as the object's content type.
type S3Store struct {
	cl     *minio.Client
	bucket string
}

var _ Store = (*S3Store)(nil)

// NewS3Store connects to the endpoint and ensures the bucket exists.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("s3: endpoint and bucket are required")
	}
	cl, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:       cfg.Secure,
		Region:       cfg.Region,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("s3: connect: %w", err)
	}
	exists, err := cl.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("s3: check bucket: %w", err)
	}
	if !exists {
		if err := cl.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("s3: create bucket: %w", err)
		}
	}
	return &S3Store{cl: cl, bucket: cfg.Bucket}, nil
}

func (s *S3Store) Get(ctx context.Context, id media.ID) (media.Blob, error) {
	obj, err := s.cl.GetObject(ctx, s.bucket, objectKey(id), minio.GetObjectOptions{})
	if err != nil {
		return media.Blob{}, fmt.Errorf("s3: get %d: %w", id, err)
	}
	defer obj.Close()

	stat, err := obj.Stat()
	if err != nil {
		if isNoSuchKey(err) {
			return media.Blob{}, media.ErrNotFound
		}
		return media.Blob{}, fmt.Errorf("s3: stat %d: %w", id, err)
	}
	data, err := io.ReadAll(obj)
	if err != nil {
		return media.Blob{}, fmt.Errorf("s3: read %d: %w", id, err)
	}
	return media.Blob{Data: data, Mimetype: stat.ContentType}, nil
}

func (s *S3Store) Put(ctx context.Context, id media.ID, blob media.Blob) error {
	opts := minio.PutObjectOptions{ContentType: blob.Mimetype}
	_, err := s.cl.PutObject(ctx, s.bucket, objectKey(id),
		bytes.NewReader(blob.Data), int64(len(blob.Data)), opts)
	if err != nil {
		return fmt.Errorf("s3: put %d: %w", id, err)
	}
	return nil
}

// Close is a no-op; the S3 client holds no persistent connection.
func (s *S3Store) Close() error { return nil }

func isNoSuchKey(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey"
}

func objectKey(id media.ID) string {
	return "media/" + strconv.FormatInt(int64(id), 10)
}
