package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/feichai0017/textract-csv/config"
	"github.com/feichai0017/textract-csv/pkg/logger"
	"github.com/feichai0017/textract-csv/pkg/storage/minio"
	"github.com/feichai0017/textract-csv/pkg/storage/s3"
)

type StorageType string

const (
	StorageTypeS3    StorageType = "s3"
	StorageTypeMinio StorageType = "minio"
)

// ErrNotFound reports a missing object. Backends may return their own error
// types instead; use IsNotFound to test for either.
var ErrNotFound = errors.New("object not found")

// Storage is the object store the pipeline reads from and writes to.
type Storage interface {
	// PresignUpload returns a URL valid for one PUT of key until ttl elapses.
	PresignUpload(ctx context.Context, bucket, key, contentType string, ttl time.Duration) (string, error)
	// PresignDownload returns a URL valid for one GET of key, served as an
	// attachment named after the last path segment of key.
	PresignDownload(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
	// Head checks that key exists.
	Head(ctx context.Context, bucket, key string) error
	Put(ctx context.Context, bucket, key string, body io.Reader, contentType string) error
	Get(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}

// IsNotFound reports whether err means the object does not exist.
func IsNotFound(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return true
	}
	var nf interface{ NotFound() bool }
	return errors.As(err, &nf) && nf.NotFound()
}

// NewStorage creates the configured backend.
func NewStorage(ctx context.Context, storageType StorageType, cfg *config.Config, log logger.Logger) (Storage, error) {
	switch storageType {
	case StorageTypeS3:
		store, err := s3.NewS3Storage(ctx, cfg.AWS, log)
		if err != nil {
			return nil, err
		}
		return store, nil
	case StorageTypeMinio:
		store, err := minio.NewMinioStorage(cfg.Minio, log)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureBucket(ctx, cfg.Pipeline.Bucket); err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageType)
	}
}
