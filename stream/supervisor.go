package stream

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Status is the supervisor's position in its connection lifecycle.
type Status int

const (
	Connecting Status = iota
	Listening
	Backoff
	Stopped
)

func (s Status) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Listening:
		return "listening"
	case Backoff:
		return "backoff"
	case Stopped:
		return "stopped"
	}
	return "unknown"
}

// Session is a snapshot of the supervisor's state, for logging and tests.
type Session struct {
	Status  Status
	LastErr error
	RetryAt time.Time
}

// DefaultBackoff is the wait after a rate-limit disconnect. The odd number
// is deliberate: providers round rate-limit windows to 15 minutes, and a
// hair over avoids reconnecting into the same window.
const DefaultBackoff = 905 * time.Second

// Config wires a Supervisor.
type Config struct {
	Source  Source
	Handler Handler
	Filter  Filter

	// Backoff is the fixed wait before reconnecting after a rate limit.
	// Zero means DefaultBackoff.
	Backoff time.Duration

	Log *logrus.Logger
}

// Supervisor owns the stream connection lifecycle: it connects with the
// rule-derived filter, dispatches events serially to the handler, and
// reconnects forever on rate limits (after the backoff interval) and
// transient errors. Only an authentication failure or a cancelled context
// stops it.
type Supervisor struct {
	cfg Config

	mu      sync.Mutex
	session Session
}

// New creates a Supervisor; it does nothing until Run.
func New(cfg Config) *Supervisor {
	if cfg.Backoff <= 0 {
		cfg.Backoff = DefaultBackoff
	}
	if cfg.Log == nil {
		cfg.Log = logrus.StandardLogger()
	}
	return &Supervisor{cfg: cfg}
}

// Session returns the current lifecycle snapshot.
func (s *Supervisor) Session() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

func (s *Supervisor) setSession(st Status, err error, retryAt time.Time) {
	s.mu.Lock()
	s.session = Session{Status: st, LastErr: err, RetryAt: retryAt}
	s.mu.Unlock()
}

// Run drives the connection loop until ctx is cancelled (returns nil) or an
// authentication error occurs (returned). There is no retry cap: a stream
// that keeps rate-limiting us keeps being retried until the operator stops
// the process.
func (s *Supervisor) Run(ctx context.Context) error {
	log := s.cfg.Log

	for {
		if ctx.Err() != nil {
			s.setSession(Stopped, nil, time.Time{})
			return nil
		}

		s.setSession(Connecting, nil, time.Time{})
		log.WithFields(logrus.Fields{
			"handles":  len(s.cfg.Filter.Handles),
			"keywords": len(s.cfg.Filter.Keywords),
		}).Info("connecting to stream")

		conn, err := s.cfg.Source.Connect(ctx, s.cfg.Filter)
		if err != nil {
			if stop, retErr := s.recover(ctx, err); stop {
				return retErr
			}
			continue
		}

		err = s.listen(ctx, conn)
		_ = conn.Close()

		if stop, retErr := s.recover(ctx, err); stop {
			return retErr
		}
	}
}

// listen dispatches events serially until the connection fails.
func (s *Supervisor) listen(ctx context.Context, conn Conn) error {
	s.setSession(Listening, nil, time.Time{})
	s.cfg.Log.Info("listening for tweets")

	// A blocked Next won't observe cancellation on its own; closing the
	// connection unblocks it.
	unwatch := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer unwatch()

	for {
		ev, err := conn.Next(ctx)
		if err != nil {
			return err
		}
		// Serial dispatch: the next event is not read until the handler is
		// done, which keeps account snapshots tied to the triggering event.
		if err := s.cfg.Handler.OnEvent(ctx, ev); err != nil {
			s.cfg.Log.WithError(err).WithField("author", ev.AuthorHandle).
				Error("event handler failed")
		}
	}
}

// recover classifies a connection error. It returns stop=true when Run
// should exit, and otherwise waits out any backoff before the next connect.
func (s *Supervisor) recover(ctx context.Context, err error) (stop bool, _ error) {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		s.setSession(Stopped, nil, time.Time{})
		s.cfg.Log.Info("stream stopped")
		return true, nil
	}

	var authErr *AuthError
	if errors.As(err, &authErr) {
		s.setSession(Stopped, err, time.Time{})
		return true, err
	}

	s.cfg.Handler.OnError(err)

	if errors.Is(err, ErrRateLimited) {
		retryAt := time.Now().Add(s.cfg.Backoff)
		s.setSession(Backoff, err, retryAt)
		s.cfg.Log.WithField("retry_in", s.cfg.Backoff).Warn("rate limited; backing off")

		select {
		case <-ctx.Done():
			s.setSession(Stopped, nil, time.Time{})
			return true, nil
		case <-time.After(s.cfg.Backoff):
		}
		return false, nil
	}

	// Transient (or unclassified) failure: reconnect right away.
	s.cfg.Log.WithError(err).Warn("stream error; reconnecting")
	return false, nil
}
