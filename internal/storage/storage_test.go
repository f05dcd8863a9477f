package storage

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reqforge/internal/config"
)

func TestNew_SelectsBackend(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s, err := New(context.Background(), config.StorageConfig{Backend: "none"}, logger)
	require.NoError(t, err)
	assert.IsType(t, Discard{}, s)

	_, err = New(context.Background(), config.StorageConfig{Backend: "ftp"}, logger)
	assert.Error(t, err)

	_, err = New(context.Background(), config.StorageConfig{Backend: "minio"}, logger)
	assert.ErrorContains(t, err, "endpoint is required")

	_, err = New(context.Background(), config.StorageConfig{Backend: "gcs"}, logger)
	assert.ErrorContains(t, err, "bucket is required")
}

func TestDiscard(t *testing.T) {
	var d Discard
	info, err := d.Put(context.Background(), "k", strings.NewReader("hello"), PutObjectOptions{Size: -1, ContentType: "text/plain"})
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.Size)

	_, _, err = d.Get(context.Background(), "k")
	assert.ErrorIs(t, err, ErrObjectNotFound)
	assert.NoError(t, d.Delete(context.Background(), "k"))
}

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "projects/p/uploads/u/brief.pdf", ObjectKey("p", "u", "brief.pdf"))
}
