// Package cache is the on-disk artifact store. One file per key, written once by
// atomic replacement and never invalidated; freshness is decided by the caller
// through the key it asks for.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/wonny/nsefeed/pkg/logger"
)

// ErrMiss is returned by Load when the key has no artifact
var ErrMiss = errors.New("cache miss")

// Store is a file-per-key cache rooted at a data directory
// ⭐ SSOT: every persisted artifact is read and written here
type Store struct {
	root   string
	logger *logger.Logger
	group  singleflight.Group

	appendMu sync.Mutex
}

// NewStore creates a store rooted at root
func NewStore(root string, log *logger.Logger) *Store {
	return &Store{
		root:   root,
		logger: log.Component("cache"),
	}
}

// Root returns the data directory
func (s *Store) Root() string {
	return s.root
}

// Path returns the file backing key
func (s *Store) Path(k Key) string {
	return filepath.Join(s.root, k.Namespace, k.FileName())
}

// Has reports whether key is materialized
func (s *Store) Has(k Key) bool {
	_, err := os.Stat(s.Path(k))
	return err == nil
}

// Get decodes a JSON entry into dest. found is false on a miss.
func (s *Store) Get(k Key, dest any) (bool, error) {
	data, err := os.ReadFile(s.Path(k))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", k, err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("cache unmarshal %s failed: %w", k, err)
	}
	return true, nil
}

// Set stores value as JSON
func (s *Store) Set(k Key, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal %s failed: %w", k, err)
	}
	return s.writeAtomic(s.Path(k), data)
}

// GetRaw returns raw bytes; ErrMiss when absent
func (s *Store) GetRaw(k Key) ([]byte, error) {
	data, err := os.ReadFile(s.Path(k))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", k, ErrMiss)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", k, err)
	}
	return data, nil
}

// SetRaw stores bytes verbatim
func (s *Store) SetRaw(k Key, data []byte) error {
	return s.writeAtomic(s.Path(k), data)
}

// GetOrSet returns the cached value for k, calling fn to produce it on a miss.
// Concurrent callers of the same missing key share one fn call; every caller
// then decodes its own copy from disk.
func GetOrSet[T any](ctx context.Context, s *Store, k Key, fn func(ctx context.Context) (T, error)) (T, error) {
	var value T

	found, err := s.Get(k, &value)
	if err != nil {
		return value, err
	}
	if found {
		s.logger.WithField("key", k.String()).Debug("cache hit")
		return value, nil
	}

	_, err, shared := s.group.Do(s.Path(k), func() (any, error) {
		if s.Has(k) {
			return nil, nil
		}

		s.logger.WithField("key", k.String()).Debug("cache miss, fetching")
		produced, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		return nil, s.Set(k, produced)
	})
	if err != nil {
		return value, err
	}
	if shared {
		s.logger.WithField("key", k.String()).Debug("joined in-flight fetch")
	}

	if _, err := s.Get(k, &value); err != nil {
		return value, err
	}
	return value, nil
}

// GetOrSetRaw is GetOrSet for raw entries
func GetOrSetRaw(ctx context.Context, s *Store, k Key, fn func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	if s.Has(k) {
		s.logger.WithField("key", k.String()).Debug("cache hit")
		return s.GetRaw(k)
	}

	_, err, _ := s.group.Do(s.Path(k), func() (any, error) {
		if s.Has(k) {
			return nil, nil
		}

		s.logger.WithField("key", k.String()).Debug("cache miss, fetching")
		data, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		return nil, s.SetRaw(k, data)
	})
	if err != nil {
		return nil, err
	}
	return s.GetRaw(k)
}

// writeAtomic writes to a temp file in the target directory, then renames
func (s *Store) writeAtomic(target string, data []byte) error {
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	s.logger.WithField("path", target).Debug("artifact written")
	return nil
}
