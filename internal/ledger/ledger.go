// Package ledger persists the set of item IDs that have completed the full
// pipeline. The backing store is a UTF-8 text file with one ID per line,
// append-only; an ID is recorded only after its transform succeeded, and the
// ledger is the single source of truth for "already handled".
package ledger

import (
	"bufio"
	"log/slog"
	"os"
	"path/filepath"
)

// Store is a durable, append-only set of processed item IDs.
type Store struct {
	path   string
	logger *slog.Logger
}

// New creates a Store backed by the file at path. The file is not created
// until the first append.
func New(path string, logger *slog.Logger) *Store {
	return &Store{path: path, logger: logger}
}

// Path returns the backing file location.
func (s *Store) Path() string {
	return s.path
}

// Load returns all recorded IDs as a set. A missing backing file is treated
// as an empty set; unexpected I/O errors are logged and an empty set is
// returned so callers never crash on ledger unavailability.
func (s *Store) Load() map[string]struct{} {
	ids := make(map[string]struct{})

	f, err := os.Open(s.path)
	if err != nil {
		if !os.IsNotExist(err) && s.logger != nil {
			s.logger.Warn("cannot read ledger, treating as empty", "path", s.path, "error", err)
		}
		return ids
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		ids[line] = struct{}{}
	}
	if err := scanner.Err(); err != nil && s.logger != nil {
		s.logger.Warn("error scanning ledger, partial load", "path", s.path, "error", err)
	}

	return ids
}

// Contains reports whether id has been recorded.
func (s *Store) Contains(id string) bool {
	_, ok := s.Load()[id]
	return ok
}

// Count returns the number of distinct recorded IDs.
func (s *Store) Count() int {
	return len(s.Load())
}

// Append records id. Appending the same ID twice is harmless: storage may
// hold duplicate lines but membership semantics are those of a set. Returns
// false on write failure, which is non-fatal; the caller treats the item as
// retryable on a future run.
func (s *Store) Append(id string) bool {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		if s.logger != nil {
			s.logger.Error("cannot create ledger directory", "path", s.path, "error", err)
		}
		return false
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("cannot open ledger for append", "path", s.path, "error", err)
		}
		return false
	}
	defer f.Close()

	if _, err := f.WriteString(id + "\n"); err != nil {
		if s.logger != nil {
			s.logger.Error("cannot append to ledger", "path", s.path, "id", id, "error", err)
		}
		return false
	}

	return true
}
