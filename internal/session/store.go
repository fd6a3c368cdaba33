package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// Session is the first-party credential pair returned by the bootstrap
// exchange. Both fields are set together or not at all.
type Session struct {
	Token  string `json:"session_token"`
	UserID string `json:"uid"`
}

// Valid reports whether the pair invariant holds and the session is usable.
func (s Session) Valid() bool {
	return s.Token != "" && s.UserID != ""
}

// Store persists the two-slot session on disk. It is the only shared
// state between the auth flow and the dashboard.
type Store struct {
	path string
	log  *zap.Logger

	mu  sync.Mutex
	cur Session
}

// NewStore loads any persisted session from path. A missing or corrupt
// file is treated as "no session", never as an error.
func NewStore(path string, logger *zap.Logger) (*Store, error) {
	if path == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("resolving config dir: %w", err)
		}
		path = filepath.Join(dir, "pangguai", "session.json")
	}

	s := &Store{path: path, log: logger.Named("session")}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn("Failed to read session file, starting unauthenticated", zap.Error(err))
		}
		return s, nil
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil || !sess.Valid() {
		s.log.Warn("Discarding unreadable or partial session file", zap.String("path", path))
		return s, nil
	}

	s.cur = sess
	return s, nil
}

// Load returns the current session and whether one exists.
func (s *Store) Load() (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur, s.cur.Valid()
}

// Save persists both slots atomically. Partial sessions are rejected so
// the both-or-nothing invariant cannot be broken on disk.
func (s *Store) Save(sess Session) error {
	if !sess.Valid() {
		return fmt.Errorf("refusing to persist partial session")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("creating session dir: %w", err)
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}

	// Write-then-rename so a crash mid-write can't leave one slot set.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing session: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("committing session: %w", err)
	}

	s.cur = sess
	return nil
}

// Clear destroys both slots together. Called on explicit logout and on
// any 401 from the backend.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cur = Session{}
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		s.log.Warn("Failed to remove session file", zap.Error(err))
	}
}
