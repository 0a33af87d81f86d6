package transport

import (
	"errors"
	"fmt"
)

// ErrDisconnected reports that no live connection exists or that the
// connection dropped before a response arrived. Every pending call fails
// with it when the connection is torn down.
var ErrDisconnected = errors.New("transport: disconnected")

// AuthError reports that the peer rejected the handshake token. It is
// surfaced to the user and never auto-retried.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	if e == nil || e.Message == "" {
		return "transport: authentication rejected"
	}
	return "transport: authentication rejected: " + e.Message
}

// RemoteError reports that the peer returned an error for a specific call.
// It is local to that call and does not affect other in-flight calls.
type RemoteError struct {
	Method  string
	Message string
}

func (e *RemoteError) Error() string {
	if e == nil {
		return "transport: remote error"
	}
	return fmt.Sprintf("transport: %s: %s", e.Method, e.Message)
}
