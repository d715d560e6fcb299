// Package store persists accounts and sessions as a single JSON document
// on disk. The whole document is read and rewritten on every change; there
// is no partial-update API and no indexing. Callers that mutate state must
// go through Update so the load-mutate-save cycle is atomic with respect
// to other writers.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// Account is a registered user. Accounts are append-only: no update or
// deletion path exists.
type Account struct {
	Email        string    `json:"email"`
	PasswordHash string    `json:"passwordHash"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Session is a bearer-token login session with a fixed expiry window.
type Session struct {
	Token     string    `json:"token"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expired reports whether the session's expiry has passed at the given time.
func (s Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Document is the complete persisted state.
type Document struct {
	Accounts []Account `json:"accounts"`
	Sessions []Session `json:"sessions"`
}

// Store reads and writes the backing JSON file.
//
// Store is safe for concurrent use. An in-process mutex serializes cycles
// between goroutines; a file lock serializes them between processes
// sharing the same data file.
type Store struct {
	path   string
	logger *slog.Logger

	mu  sync.Mutex
	flk *flock.Flock
}

// New creates a store backed by the JSON file at path. The file and its
// parent directory are created on first save.
func New(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		path:   path,
		logger: logger,
		// Lock a sidecar rather than the data file: Save replaces the
		// data file's inode on every rename.
		flk: flock.New(path + ".lock"),
	}
}

// Load reads the document from disk. A missing or unreadable file and a
// corrupt document all yield an empty document; Load never fails to the
// caller.
func (s *Store) Load() Document {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("store: read failed, starting empty", "path", s.path, "error", err)
		}
		return Document{}
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		s.logger.Warn("store: corrupt document, starting empty", "path", s.path, "error", err)
		return Document{}
	}
	return doc
}

// Save rewrites the whole backing file. The document is written to a
// temporary file in the same directory and renamed into place, so readers
// never observe a partial write.
func (s *Store) Save(doc Document) error {
	// Persisted arrays must stay arrays even when empty.
	if doc.Accounts == nil {
		doc.Accounts = []Account{}
	}
	if doc.Sessions == nil {
		doc.Sessions = []Session{}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}

// Update runs fn on the current document and persists the result. The
// whole cycle holds the store's mutex and the file lock, so concurrent
// updates cannot interleave and lose writes. If fn returns an error the
// document is not saved.
func (s *Store) Update(fn func(*Document) error) error {
	// Mutex first: the file lock is per-process and does not exclude
	// goroutines sharing this store.
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	if err := s.flk.Lock(); err != nil {
		return fmt.Errorf("acquire file lock: %w", err)
	}
	defer func() {
		if err := s.flk.Unlock(); err != nil {
			s.logger.Warn("store: release file lock", "error", err)
		}
	}()

	doc := s.Load()
	if err := fn(&doc); err != nil {
		return err
	}
	return s.Save(doc)
}
