// Package store provides the durable key-value backends behind the offline
// request queue.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/hirely/hirely-cli/internal/config"
)

// ErrNotFound is returned by Get when the key has no value.
var ErrNotFound = eris.New("store: key not found")

// UpdateFunc receives the current value (nil when absent) and returns the
// value to store. Returning an error aborts the update.
type UpdateFunc func(old []byte) ([]byte, error)

// KV is a small durable key-value store.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	// Update performs an atomic read-modify-write of key.
	Update(ctx context.Context, key string, fn UpdateFunc) error
	Delete(ctx context.Context, key string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open returns the backend selected by cfg.Driver and runs its migration.
func Open(ctx context.Context, cfg config.StoreConfig) (KV, error) {
	var (
		kv  KV
		err error
	)
	switch cfg.Driver {
	case "", "sqlite":
		kv, err = NewSQLite(cfg.Path)
	case "postgres":
		kv, err = NewPostgres(ctx, cfg.DatabaseURL)
	case "file":
		kv, err = NewFile(cfg.Dir)
	case "memory":
		kv = NewMemory()
	default:
		return nil, eris.Errorf("store: unsupported driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := kv.Migrate(ctx); err != nil {
		kv.Close() //nolint:errcheck
		return nil, err
	}
	return kv, nil
}
