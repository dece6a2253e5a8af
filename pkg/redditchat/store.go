// Copyright 2025-2026 Aiku AI
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package redditchat

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
)

// SessionStore persists broker sessions keyed by the credential that minted
// them. A refreshed credential produces a different key and therefore a
// cache miss; that is the intended invalidation mechanism.
type SessionStore interface {
	Load(key string) (Session, error)
	Save(key string, session Session) error
}

// FileSessionStore keeps one JSON file per credential under a directory.
// File names are the SHA-256 of the credential so the secret itself never
// appears in directory listings. Save/Load on the same key are serialized
// with a sidecar flock.
type FileSessionStore struct {
	dir string
}

// NewFileSessionStore creates the store directory if needed. The directory
// holds bearer-equivalent tokens, so it is private to the owner.
func NewFileSessionStore(dir string) (*FileSessionStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, &StorageError{Op: "mkdir", Path: dir, Err: err}
	}
	return &FileSessionStore{dir: dir}, nil
}

func (s *FileSessionStore) path(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(s.dir, hex.EncodeToString(sum[:])+".json")
}

func (s *FileSessionStore) Load(key string) (Session, error) {
	path := s.path(key)
	lock := flock.New(path + ".lock")
	if err := lock.RLock(); err != nil {
		return Session{}, &StorageError{Op: "lock", Path: path, Err: err}
	}
	defer lock.Unlock()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Session{}, ErrSessionNotFound
	}
	if err != nil {
		return Session{}, &StorageError{Op: "read", Path: path, Err: err}
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return Session{}, &StorageError{Op: "decode", Path: path, Err: err}
	}
	if session.AccessToken == "" || session.UserID == "" {
		return Session{}, &StorageError{Op: "decode", Path: path, Err: errors.New("incomplete session record")}
	}
	return session, nil
}

func (s *FileSessionStore) Save(key string, session Session) error {
	path := s.path(key)
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return &StorageError{Op: "lock", Path: path, Err: err}
	}
	defer lock.Unlock()

	data, err := json.Marshal(session)
	if err != nil {
		return &StorageError{Op: "encode", Path: path, Err: err}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return &StorageError{Op: "write", Path: path, Err: err}
	}
	return nil
}

// MemorySessionStore is a map-backed store for cache-less operation and
// tests.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]Session
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]Session)}
}

func (s *MemorySessionStore) Load(key string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[key]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return session, nil
}

func (s *MemorySessionStore) Save(key string, session Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[key] = session
	return nil
}
