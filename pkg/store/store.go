// Package store provides whole-value key/value persistence for the snapshot document.
package store

import (
	"context"
	"fmt"

	"github.com/choraleia/thinkbot/pkg/config"
	"github.com/spf13/afero"
)

// DocumentStore exposes whole-document reads and writes only.
type DocumentStore interface {
	// Get returns nil, nil when key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set replaces the value stored under key.
	Set(ctx context.Context, key string, value []byte) error
	Close() error
}

// Open builds the backend selected by the daemon config.
func Open(ctx context.Context, cfg *config.AppConfig) (DocumentStore, error) {
	switch backend := cfg.StorageBackend(); backend {
	case "memory":
		return NewMemoryStore(), nil
	case "file":
		return NewFileStore(afero.NewOsFs(), cfg.StoragePath())
	case "sqlite":
		return NewSQLiteStore(cfg.StoragePath())
	case "bolt":
		return NewBoltStore(cfg.StoragePath())
	case "redis":
		return NewRedisStore(ctx, RedisOptions{
			Addr:     cfg.RedisAddr(),
			Password: cfg.RedisPassword(),
			DB:       cfg.RedisDB(),
		})
	case "postgres", "mysql":
		if cfg.StorageDSN() == "" {
			return nil, fmt.Errorf("storage.dsn is required for the %s backend", backend)
		}
		return NewSQLStore(ctx, backend, cfg.StorageDSN())
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", backend)
	}
}
