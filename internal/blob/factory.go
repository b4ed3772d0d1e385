package blob

import (
	"context"
	"errors"
	"fmt"

	"github.com/matheus3301/camlog/internal/config"
	"github.com/matheus3301/camlog/internal/store"
)

// NewBackendFromConfig creates the Backend selected by cfg.Type. db is only
// required for the sqlite type.
func NewBackendFromConfig(ctx context.Context, cfg config.BlobConfig, db *store.DB) (Backend, error) {
	switch cfg.Type {
	case "", "sqlite":
		if db == nil {
			return nil, errors.New("sqlite blob backend requires a database")
		}
		return NewSQLite(db), nil
	case "memory":
		return NewMemory(), nil
	case "filesystem":
		return NewFileSystem(cfg.Dir)
	case "s3":
		return NewS3(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown blob type: %s", cfg.Type)
	}
}

// Open builds the Store described by cfg, sealing payloads when encryption
// is enabled. defaultKeyPath is used when cfg.Encryption.KeyPath is empty.
func Open(ctx context.Context, cfg *config.Config, db *store.DB, defaultKeyPath string) (*Store, error) {
	backend, err := NewBackendFromConfig(ctx, cfg.Blob, db)
	if err != nil {
		return nil, err
	}
	if cfg.Encryption.Enabled {
		keyPath := cfg.Encryption.KeyPath
		if keyPath == "" {
			keyPath = defaultKeyPath
		}
		id, err := LoadOrCreateIdentity(keyPath)
		if err != nil {
			return nil, err
		}
		backend = NewSealed(backend, id)
	}
	return New(backend), nil
}
