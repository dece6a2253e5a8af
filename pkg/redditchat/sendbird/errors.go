// Copyright 2025-2026 Aiku AI

package sendbird

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is returned by write-path operations when the client
	// is not in the Connected state. No network write is attempted.
	ErrNotConnected = errors.New("realtime client is not connected")
	// ErrAlreadyConnected is returned by Connect on a client that already
	// holds a live or pending connection.
	ErrAlreadyConnected = errors.New("realtime client is already connected")
	// ErrClosed is returned by any operation after Close.
	ErrClosed = errors.New("realtime client is closed")
	// ErrAckTimeout is returned when the broker does not acknowledge a
	// sent message in time.
	ErrAckTimeout = errors.New("timed out waiting for message ack")
)

// ConnectError wraps a failure to establish or authenticate the realtime
// connection.
type ConnectError struct {
	Stage string // "dial" or "handshake"
	Err   error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("realtime connect failed during %s: %v", e.Stage, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// SendError wraps a socket write failure for an outbound frame.
type SendError struct {
	Command string
	Err     error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("write %s frame: %v", e.Command, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// ServerError is an error notification pushed by the broker, either as an
// EROR frame or as an error-flagged login ack.
type ServerError struct {
	Code    int
	Message string
}

func (e *ServerError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("broker error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("broker error %d", e.Code)
}

// sendbird auth error codes that mean the session key is no longer valid.
const (
	codeInvalidToken   = 400309
	codeSessionExpired = 400302
	codeUnauthorized   = 400108
)

// isAuthRejection reports whether a broker error means the session itself
// was rejected, as opposed to a transient failure worth retrying.
func isAuthRejection(err error) bool {
	var serverErr *ServerError
	if !errors.As(err, &serverErr) {
		return false
	}
	switch serverErr.Code {
	case codeInvalidToken, codeSessionExpired, codeUnauthorized:
		return true
	}
	return false
}
