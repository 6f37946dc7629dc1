// Package turn carries the per-request state a pipeline needs: the session,
// the turn start time, a logger and the live message being streamed to the
// client. A Turn is built once per request and passed explicitly, so no
// pipeline reaches for ambient globals.
package turn

import (
	"log/slog"
	"time"

	"github.com/parleyhq/parley/internal/session"
)

// Turn is the context of one request/response exchange.
type Turn struct {
	Session *session.Session
	Started time.Time
	Logger  *slog.Logger

	// Live is the message under construction, streamed to the client as it
	// grows. Pipelines fail fast when it is nil.
	Live *Message
}

// New builds a Turn anchored at the current time. A nil logger falls back to
// slog.Default().
func New(sess *session.Session, logger *slog.Logger, live *Message) *Turn {
	if logger == nil {
		logger = slog.Default()
	}
	return &Turn{
		Session: sess,
		Started: time.Now(),
		Logger:  logger,
		Live:    live,
	}
}

// Elapsed returns the time since the turn started.
func (t *Turn) Elapsed() time.Duration {
	return time.Since(t.Started)
}
