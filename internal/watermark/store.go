// Package watermark persists the start time of the last archival run.
package watermark

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/sitekit/sitekit/internal/fileutil"
)

const (
	// FileName is the name of the watermark file inside the cache directory.
	FileName = "lastiarchive"
	// Layout is the on-disk timestamp format, always UTC with microseconds.
	Layout = "2006-01-02T15:04:05.000000"

	lockSuffix = ".lock"
)

// ErrLocked is returned by Lock when another run holds the watermark lock.
var ErrLocked = errors.New("watermark is locked by another run")

// Store reads and writes the watermark file under a cache directory.
type Store struct {
	dir string
}

// New creates a Store rooted at the cache directory.
func New(cacheDir string) *Store {
	return &Store{dir: cacheDir}
}

// Path returns the watermark file path.
func (s *Store) Path() string {
	return filepath.Join(s.dir, FileName)
}

// Load reads the watermark. The file must hold exactly one timestamp in
// Layout; surrounding whitespace is ignored. The returned time is UTC.
func (s *Store) Load(_ context.Context) (time.Time, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		return time.Time{}, fmt.Errorf("watermark: failed to read %s: %w", s.Path(), err)
	}
	t, err := Parse(string(data))
	if err != nil {
		return time.Time{}, fmt.Errorf("watermark: %s: %w", s.Path(), err)
	}
	return t, nil
}

// Save atomically replaces the watermark with t, creating the cache
// directory if needed.
func (s *Store) Save(_ context.Context, t time.Time) error {
	if err := fileutil.WriteFileAtomic(s.Path(), []byte(Format(t)), 0o600); err != nil {
		return fmt.Errorf("watermark: failed to write %s: %w", s.Path(), err)
	}
	return nil
}

// Lock takes an exclusive, non-blocking lock next to the watermark file.
// The returned function releases it.
func (s *Store) Lock(_ context.Context) (func(), error) {
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return nil, fmt.Errorf("watermark: failed to create %s: %w", s.dir, err)
	}
	fl := flock.New(s.Path() + lockSuffix)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("watermark: failed to lock: %w", err)
	}
	if !locked {
		return nil, ErrLocked
	}
	return func() { _ = fl.Unlock() }, nil
}

// Format renders t in Layout after converting it to UTC.
func Format(t time.Time) string {
	return t.UTC().Format(Layout)
}

// Parse reads a timestamp written by Format.
func Parse(s string) (time.Time, error) {
	t, err := time.ParseInLocation(Layout, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp: %w", err)
	}
	return t, nil
}
