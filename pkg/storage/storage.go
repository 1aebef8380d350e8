// Package storage persists uploaded branding assets. The local backend writes
// under the uploads directory served at /uploads; the S3 and GCS backends keep
// logos durable on hosts with ephemeral disks.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/hugh/turnout-tracker/pkg/config"
)

var ErrNotFound = errors.New("object not found")

// Store saves and removes objects addressed by a slash-separated key.
type Store interface {
	// Put writes r under key and returns the URL clients should use to fetch it.
	Put(ctx context.Context, key string, r io.Reader, contentType string) (string, error)
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	Name() string
}

// New builds the backend selected by cfg.Backend.
func New(ctx context.Context, cfg *config.StorageConfig) (Store, error) {
	switch cfg.Backend {
	case "", "local":
		return NewLocalStore(cfg.UploadsDir, "/uploads")
	case "s3":
		return NewS3Store(ctx, cfg.S3)
	case "gcs":
		return NewGCSStore(ctx, cfg.GCS)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
