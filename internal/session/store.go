// Package session holds the single configured Chroma connection.
//
// A Store owns at most one Session. Every read goes through WithSession,
// which holds the store's lock for the whole callback, network calls
// included. Configure builds the new client before taking the lock and then
// swaps it in, so a call already running under the old session finishes on
// the old client.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/fyrsmithlabs/chromagate/internal/auth"
	"github.com/fyrsmithlabs/chromagate/internal/chroma"
)

// ErrNoSession is returned when an operation runs before Configure.
var ErrNoSession = errors.New("no active session: connect to a chroma server first")

// Session is one configured connection.
type Session struct {
	Client   chroma.Client
	URL      string
	Strategy auth.Strategy
	Tenant   string
	Database string
}

// Info copies the non-secret session fields for diagnostics.
type Info struct {
	URL        string      `json:"url"`
	AuthMethod auth.Method `json:"auth_method"`
	Tenant     string      `json:"tenant"`
	Database   string      `json:"database"`
}

// Store guards the session slot.
type Store struct {
	dialer chroma.Dialer

	mu      sync.Mutex
	current *Session
}

// New creates an empty store that opens clients with dialer.
func New(dialer chroma.Dialer) *Store {
	return &Store{dialer: dialer}
}

// Configure dials target and replaces any existing session. It returns the
// info of the session it installed. On failure the previous session, if any,
// stays in place.
func (s *Store) Configure(ctx context.Context, target chroma.Target) (Info, error) {
	target = target.WithDefaults()

	client, err := s.dialer.Dial(ctx, target)
	if err != nil {
		return Info{}, fmt.Errorf("connect to %s: %w", target.URL, err)
	}

	next := &Session{
		Client:   client,
		URL:      target.URL,
		Strategy: target.Strategy,
		Tenant:   target.Tenant,
		Database: target.Database,
	}

	s.mu.Lock()
	s.current = next
	s.mu.Unlock()
	return next.info(), nil
}

// Current returns a snapshot of the configured session.
func (s *Store) Current() (Info, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return Info{}, false
	}
	return s.current.info(), true
}

func (sess *Session) info() Info {
	info := Info{
		URL:      sess.URL,
		Tenant:   sess.Tenant,
		Database: sess.Database,
	}
	if sess.Strategy != nil {
		info.AuthMethod = sess.Strategy.Method()
	}
	return info
}

// WithSession runs fn with the live session while holding the store lock.
// fn is not called when no session is configured.
func WithSession[T any](ctx context.Context, s *Store, fn func(ctx context.Context, sess *Session) (T, error)) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		var zero T
		return zero, ErrNoSession
	}
	return fn(ctx, s.current)
}
