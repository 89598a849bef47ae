package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/hirely/hirely-cli/internal/db"
)

// PostgresKV implements KV using pgxpool.
type PostgresKV struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres creates a PostgresKV with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresKV, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 4
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresKV{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool. Close is a no-op for the caller's pool.
func NewPostgresFromPool(pool db.Pool) *PostgresKV {
	return &PostgresKV{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS kv_store (
	key        TEXT PRIMARY KEY,
	value      BYTEA NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

func (s *PostgresKV) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresKV) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresKV) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.pool.QueryRow(ctx, `SELECT value FROM kv_store WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get %s", key)
	}
	return value, nil
}

const postgresUpsert = `INSERT INTO kv_store (key, value, updated_at) VALUES ($1, $2, now())
	ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`

func (s *PostgresKV) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.pool.Exec(ctx, postgresUpsert, key, value)
	return eris.Wrapf(err, "postgres: set %s", key)
}

// Update locks the row with SELECT ... FOR UPDATE so concurrent writers on
// other hosts serialize on the key.
func (s *PostgresKV) Update(ctx context.Context, key string, fn UpdateFunc) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		// Make sure the row exists so FOR UPDATE has something to lock.
		if _, err := tx.Exec(ctx,
			`INSERT INTO kv_store (key, value) VALUES ($1, '') ON CONFLICT (key) DO NOTHING`, key,
		); err != nil {
			return eris.Wrapf(err, "postgres: seed %s", key)
		}

		var old []byte
		if err := tx.QueryRow(ctx,
			`SELECT value FROM kv_store WHERE key = $1 FOR UPDATE`, key,
		).Scan(&old); err != nil {
			return eris.Wrapf(err, "postgres: lock %s", key)
		}
		if len(old) == 0 {
			old = nil
		}

		next, err := fn(old)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, postgresUpsert, key, next)
		return eris.Wrapf(err, "postgres: update %s", key)
	})
}

func (s *PostgresKV) Delete(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM kv_store WHERE key = $1`, key)
	return eris.Wrapf(err, "postgres: delete %s", key)
}
