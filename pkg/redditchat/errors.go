// Copyright 2025-2026 Aiku AI
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package redditchat

import (
	"errors"
	"fmt"
)

// ErrSessionNotFound is returned by SessionStore.Load when no session is
// cached under the requested key.
var ErrSessionNotFound = errors.New("session not found in store")

// ErrNoRooms is returned when a subreddit's channel listing is empty.
var ErrNoRooms = errors.New("subreddit has no chat rooms")

// AuthError indicates that the host platform rejected an authentication
// attempt, or that the attempt could not be completed at all.
type AuthError struct {
	Strategy string // "password" or "token"
	Err      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s authentication failed: %v", e.Strategy, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// SessionError indicates that one of the two session exchange calls failed.
// Endpoint identifies which call, so callers can tell a broken broker apart
// from a broken host platform.
type SessionError struct {
	Endpoint string
	Err      error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("session exchange failed at %s: %v", e.Endpoint, e.Err)
}

func (e *SessionError) Unwrap() error { return e.Err }

// StorageError indicates a session cache I/O failure. It never aborts a
// bootstrap; the bootstrapper falls back to minting a fresh session.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("session store %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// NotFoundError indicates that a subreddit lookup returned no identifier.
type NotFoundError struct {
	Subreddit string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("subreddit %q not found", e.Subreddit)
}

// APIStatusError is a non-2xx response from the Reddit or Sendbird control
// plane.
type APIStatusError struct {
	Endpoint   string
	StatusCode int
	Status     string
}

func (e *APIStatusError) Error() string {
	if e == nil {
		return "api request failed"
	}
	if e.Status != "" {
		return fmt.Sprintf("%s: %s", e.Endpoint, e.Status)
	}
	return fmt.Sprintf("%s: http status %d", e.Endpoint, e.StatusCode)
}

// IsUnauthorized reports whether err is an API response that indicates the
// credential is invalid or expired.
func IsUnauthorized(err error) bool {
	var statusErr *APIStatusError
	if !errors.As(err, &statusErr) {
		return false
	}
	return statusErr.StatusCode == 401 || statusErr.StatusCode == 403
}
