package store

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/rotisserie/eris"
)

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// FileKV stores each key as a JSON file under dir. Writes go to a temp file
// in the same directory and are renamed into place.
type FileKV struct {
	dir string
	mu  sync.Mutex
}

// NewFile returns a FileKV rooted at dir.
func NewFile(dir string) (*FileKV, error) {
	if dir == "" {
		return nil, eris.New("file: dir is required")
	}
	return &FileKV{dir: dir}, nil
}

func (s *FileKV) Migrate(_ context.Context) error {
	return eris.Wrapf(os.MkdirAll(s.dir, 0o755), "file: create %s", s.dir)
}

func (s *FileKV) Close() error { return nil }

func (s *FileKV) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(key)
}

func (s *FileKV) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(key, value)
}

func (s *FileKV) Update(_ context.Context, key string, fn UpdateFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, err := s.read(key)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	next, err := fn(old)
	if err != nil {
		return err
	}
	return s.write(key, next)
}

func (s *FileKV) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return eris.Wrapf(err, "file: delete %s", key)
}

func (s *FileKV) path(key string) string {
	return filepath.Join(s.dir, unsafeKeyChars.ReplaceAllString(key, "_")+".json")
}

func (s *FileKV) read(key string) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "file: read %s", key)
	}
	return data, nil
}

func (s *FileKV) write(key string, value []byte) error {
	tmp, err := os.CreateTemp(s.dir, ".hirely-tmp-*")
	if err != nil {
		return eris.Wrap(err, "file: create temp file")
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(value); err != nil {
		return eris.Wrap(err, "file: write temp file")
	}
	if err := tmp.Sync(); err != nil {
		return eris.Wrap(err, "file: sync temp file")
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "file: close temp file")
	}
	return eris.Wrapf(os.Rename(tmpName, s.path(key)), "file: rename %s", key)
}
