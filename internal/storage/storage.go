package storage

import (
	"context"
	"io"

	"github.com/dukerupert/shoppy/internal"
)

// Storage is a key-value blob store.
// The cart engine keeps its saved cart in a single slot of it.
type Storage interface {
	// Put replaces the blob stored under key.
	// A reader observes either the previous blob or the new one, never a torn write.
	Put(ctx context.Context, key string, content io.Reader, contentType string) error

	// Get retrieves the blob stored under key.
	// Returns an error satisfying IsNotFound when nothing is stored there.
	// The returned io.ReadCloser must be closed by the caller.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the blob under key.
	// Returns nil if nothing is stored there (idempotent).
	Delete(ctx context.Context, key string) error

	// Exists checks whether a blob is stored under key.
	Exists(ctx context.Context, key string) (bool, error)
}

// NewStorage creates a Storage implementation based on configuration.
func NewStorage(cfg internal.StorageConfig) (Storage, error) {
	switch cfg.Provider {
	case "local", "":
		return NewLocalStorage(cfg.LocalPath)
	case "memory":
		return NewMemoryStorage(), nil
	case "r2":
		return NewR2Storage(R2Config{
			AccountID:   cfg.R2AccountID,
			AccessKeyID: cfg.R2AccessKeyID,
			SecretKey:   cfg.R2SecretKey,
			BucketName:  cfg.R2BucketName,
			Prefix:      cfg.R2Prefix,
		})
	default:
		return nil, ErrUnknownProvider(cfg.Provider)
	}
}
