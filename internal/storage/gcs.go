package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
)

// gcsStorage stores objects in one Google Cloud Storage bucket using
// application default credentials.
type gcsStorage struct {
	client *gcs.Client
	bucket *gcs.BucketHandle
}

func NewGCS(ctx context.Context, bucket string) (Storage, error) {
	if bucket == "" {
		return nil, fmt.Errorf("gcs bucket is required")
	}
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	return &gcsStorage{client: client, bucket: client.Bucket(bucket)}, nil
}

func (g *gcsStorage) Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error) {
	w := g.bucket.Object(key).NewWriter(ctx)
	w.ContentType = opt.ContentType
	w.Metadata = opt.Metadata

	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return ObjectInfo{}, fmt.Errorf("failed to write to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed {
			return ObjectInfo{}, fmt.Errorf("object %s already exists: %w", key, err)
		}
		return ObjectInfo{}, fmt.Errorf("failed to finalize GCS write: %w", err)
	}

	attrs := w.Attrs()
	return ObjectInfo{
		Key:          key,
		Size:         attrs.Size,
		ETag:         attrs.Etag,
		ContentType:  attrs.ContentType,
		LastModified: attrs.Updated,
		Metadata:     attrs.Metadata,
	}, nil
}

func (g *gcsStorage) Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	r, err := g.bucket.Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return nil, ObjectInfo{}, ErrObjectNotFound
		}
		return nil, ObjectInfo{}, err
	}
	return r, ObjectInfo{
		Key:          key,
		Size:         r.Attrs.Size,
		ContentType:  r.Attrs.ContentType,
		LastModified: r.Attrs.LastModified,
	}, nil
}

func (g *gcsStorage) Delete(ctx context.Context, key string) error {
	err := g.bucket.Object(key).Delete(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil
	}
	return err
}

func (g *gcsStorage) PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	return g.bucket.SignedURL(key, &gcs.SignedURLOptions{
		Method:  http.MethodGet,
		Expires: time.Now().Add(expiry),
		Scheme:  gcs.SigningSchemeV4,
	})
}
