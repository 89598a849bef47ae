package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirely/hirely-cli/internal/config"
)

func newTestSQLiteKV(t *testing.T) *SQLiteKV {
	t.Helper()
	st, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func newTestFileKV(t *testing.T) *FileKV {
	t.Helper()
	st, err := NewFile(filepath.Join(t.TempDir(), "kv"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func backends(t *testing.T) map[string]KV {
	return map[string]KV{
		"sqlite": newTestSQLiteKV(t),
		"file":   newTestFileKV(t),
		"memory": NewMemory(),
	}
}

func TestKV_GetMissing(t *testing.T) {
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := kv.Get(context.Background(), "missing")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestKV_SetGetDelete(t *testing.T) {
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, kv.Set(ctx, "hirely_offline_queue", []byte(`[]`)))
			require.NoError(t, kv.Set(ctx, "hirely_offline_queue", []byte(`[{"id":"a"}]`)))

			got, err := kv.Get(ctx, "hirely_offline_queue")
			require.NoError(t, err)
			assert.JSONEq(t, `[{"id":"a"}]`, string(got))

			require.NoError(t, kv.Delete(ctx, "hirely_offline_queue"))
			_, err = kv.Get(ctx, "hirely_offline_queue")
			assert.ErrorIs(t, err, ErrNotFound)

			// Deleting again is fine.
			assert.NoError(t, kv.Delete(ctx, "hirely_offline_queue"))
		})
	}
}

func TestKV_UpdateSeesPreviousValue(t *testing.T) {
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			err := kv.Update(ctx, "counter", func(old []byte) ([]byte, error) {
				assert.Nil(t, old)
				return []byte("1"), nil
			})
			require.NoError(t, err)

			err = kv.Update(ctx, "counter", func(old []byte) ([]byte, error) {
				assert.Equal(t, "1", string(old))
				return []byte("2"), nil
			})
			require.NoError(t, err)

			got, err := kv.Get(ctx, "counter")
			require.NoError(t, err)
			assert.Equal(t, "2", string(got))
		})
	}
}

func TestKV_UpdateErrorLeavesValue(t *testing.T) {
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, kv.Set(ctx, "k", []byte("keep")))

			boom := eris.New("boom")
			err := kv.Update(ctx, "k", func([]byte) ([]byte, error) { return nil, boom })
			assert.ErrorIs(t, err, boom)

			got, err := kv.Get(ctx, "k")
			require.NoError(t, err)
			assert.Equal(t, "keep", string(got))
		})
	}
}

func TestKV_ConcurrentUpdates(t *testing.T) {
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					err := kv.Update(ctx, "log", func(old []byte) ([]byte, error) {
						return append(old, 'x'), nil
					})
					assert.NoError(t, err)
				}()
			}
			wg.Wait()

			got, err := kv.Get(ctx, "log")
			require.NoError(t, err)
			assert.Len(t, got, 20)
		})
	}
}

func TestFileKV_SanitizesKey(t *testing.T) {
	st := newTestFileKV(t)
	ctx := context.Background()

	require.NoError(t, st.Set(ctx, "../escape/key", []byte("v")))
	assert.Equal(t, filepath.Join(st.dir, ".._escape_key.json"), st.path("../escape/key"))

	got, err := st.Get(ctx, "../escape/key")
	require.NoError(t, err)
	assert.Equal(t, "v", string(got))
}

func TestNewFile_RequiresDir(t *testing.T) {
	_, err := NewFile("")
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		cfg     config.StoreConfig
		want    any
		wantErr string
	}{
		{name: "sqlite", cfg: config.StoreConfig{Driver: "sqlite", Path: filepath.Join(dir, "a.db")}, want: &SQLiteKV{}},
		{name: "default driver", cfg: config.StoreConfig{Path: filepath.Join(dir, "b.db")}, want: &SQLiteKV{}},
		{name: "file", cfg: config.StoreConfig{Driver: "file", Dir: filepath.Join(dir, "files")}, want: &FileKV{}},
		{name: "memory", cfg: config.StoreConfig{Driver: "memory"}, want: &MemoryKV{}},
		{name: "unknown", cfg: config.StoreConfig{Driver: "redis"}, wantErr: "unsupported driver"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kv, err := Open(context.Background(), tt.cfg)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			t.Cleanup(func() { kv.Close() }) //nolint:errcheck
			assert.IsType(t, tt.want, kv)
		})
	}
}
