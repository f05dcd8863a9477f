// Package storage keeps the original bytes of uploaded source documents in
// an object store. Only streaming I/O is used.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"reqforge/internal/config"
)

// ErrObjectNotFound is returned by Get for a missing key.
var ErrObjectNotFound = errors.New("object not found")

// PutObjectOptions describe an upload. Size is -1 when unknown.
type PutObjectOptions struct {
	Size        int64
	ContentType string
	Metadata    map[string]string
}

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	ContentType  string
	LastModified time.Time
	Metadata     map[string]string
}

// Storage is implemented by the MinIO (S3-compatible) and GCS backends.
type Storage interface {
	Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error)
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
	Delete(ctx context.Context, key string) error

	// PresignGet returns a time-limited download URL.
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// New builds the backend selected by cfg.Backend. "none" (or empty) keeps
// nothing: uploads still get their text extracted but the bytes are dropped.
func New(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (Storage, error) {
	switch cfg.Backend {
	case "", "none":
		logger.Info("object storage disabled, upload bytes are not retained")
		return Discard{}, nil
	case "minio":
		return NewMinIO(ctx, cfg)
	case "gcs":
		return NewGCS(ctx, cfg.GCSBucket)
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.Backend)
	}
}

// ObjectKey is where an upload's bytes live.
func ObjectKey(projectID, uploadID, filename string) string {
	return fmt.Sprintf("projects/%s/uploads/%s/%s", projectID, uploadID, filename)
}
