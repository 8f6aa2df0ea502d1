// Package stream owns the event-stream side of the system: the collaborator
// boundary (Source/Conn), the error taxonomy the supervisor recovers from,
// and the Supervisor itself, which keeps a filtered connection alive and
// feeds events to a Handler one at a time.
package stream

import (
	"context"
	"errors"
	"fmt"
)

// Event is one post from the stream. Reposts and replies are delivered here
// and excluded later by the handler, so the exclusion is testable without a
// connection.
type Event struct {
	AuthorHandle string
	Text         string
	IsRepost     bool
	IsReply      bool
}

// Filter is the subscription: only events matching a handle or keyword are
// delivered.
type Filter struct {
	Handles  []string
	Keywords []string
}

// ErrRateLimited signals the provider cut us off for connecting or reading
// too aggressively. The supervisor backs off for the configured interval
// before reconnecting.
var ErrRateLimited = errors.New("stream: rate limited")

// ErrTransient signals a recoverable network failure; the supervisor
// reconnects without the rate-limit backoff.
var ErrTransient = errors.New("stream: transient network error")

// AuthError means the stream provider rejected the credentials. Fatal:
// never retried.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("stream: authentication failed: %s", e.Reason)
}

// Conn is one live, filtered stream connection.
type Conn interface {
	// Next blocks until an event arrives or the connection fails. Errors are
	// ErrRateLimited, ErrTransient (possibly wrapped), *AuthError, or the
	// context's error.
	Next(ctx context.Context) (Event, error)
	Close() error
}

// Source opens stream connections. The concrete implementation lives in
// this package (websocket); tests substitute fakes.
type Source interface {
	Connect(ctx context.Context, f Filter) (Conn, error)
}

// Handler receives accepted events and connection-level errors from the
// supervisor. Exactly one call is in flight at a time.
type Handler interface {
	// OnEvent processes one event. A returned error is logged by the
	// supervisor and does not stop the stream.
	OnEvent(ctx context.Context, ev Event) error

	// OnError observes a connection-level error the supervisor is about to
	// recover from (rate limit, transient failure).
	OnError(err error)
}
