package storage

import (
	"context"
	"testing"

	"github.com/mzaid0/Nestora/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBackend(t *testing.T) {
	ctx := context.Background()

	backend, err := NewBackend(ctx, config.StorageConfig{Backend: BackendMemory})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStorage{}, backend)

	_, err = NewBackend(ctx, config.StorageConfig{Backend: "ftp"})
	assert.EqualError(t, err, `unsupported storage backend "ftp"`)
}

func TestNewBackend_RequiresSettings(t *testing.T) {
	ctx := context.Background()

	_, err := NewBackend(ctx, config.StorageConfig{Backend: BackendMinio, Minio: config.MinioConfig{Endpoint: "localhost:9000"}})
	assert.EqualError(t, err, "minio access key and secret key are required")

	_, err = NewBackend(ctx, config.StorageConfig{Backend: BackendGCS})
	assert.EqualError(t, err, "gcs bucket is required")

	_, err = NewBackend(ctx, config.StorageConfig{Backend: BackendS3})
	assert.EqualError(t, err, "s3 bucket is required")
}
