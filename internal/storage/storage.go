package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/mzaid0/Nestora/config"
)

const (
	BackendMinio  = "minio"
	BackendGCS    = "gcs"
	BackendS3     = "s3"
	BackendMemory = "memory"
)

// ObjectStorage is the bucket-scoped subset of an object store the avatar
// store relies on. Delete of a missing key is not an error.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	Bucket() string
}

// NewBackend builds the object storage selected by cfg.Backend.
func NewBackend(ctx context.Context, cfg config.StorageConfig) (ObjectStorage, error) {
	switch cfg.Backend {
	case BackendMinio, "":
		return NewMinioClient(cfg.Minio)
	case BackendGCS:
		return NewGCSClient(ctx, cfg.GCS)
	case BackendS3:
		return NewS3Client(ctx, cfg.S3)
	case BackendMemory:
		return NewMemoryStorage("memory"), nil
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
	}
}
