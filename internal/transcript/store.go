// Package transcript keeps each signed-in owner's chat sessions in memory.
// Nothing here is persisted; sessions live until deleted, evicted as idle,
// or the process exits.
package transcript

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/ashureev/socratic-tutor/internal/domain"
	"github.com/ashureev/socratic-tutor/internal/tutor"
	"github.com/containerd/errdefs"
	"github.com/oklog/ulid/v2"
)

var (
	// ErrNotFound is returned for unknown or deleted sessions.
	ErrNotFound = fmt.Errorf("chat session not found: %w", errdefs.ErrNotFound)
	// ErrTurnInProgress is returned when a session already has a pending turn.
	ErrTurnInProgress = fmt.Errorf("chat session has a turn in progress: %w", errdefs.ErrConflict)
)

// Session is one topic's transcript plus its dialogue context.
type Session struct {
	ID          string           `json:"id"`
	Topic       string           `json:"topic"`
	Messages    []domain.Message `json:"messages"`
	Context     *tutor.Context   `json:"context"`
	LastUpdated time.Time        `json:"lastUpdated"`
}

func (s *Session) clone() Session {
	out := *s
	out.Messages = slices.Clone(s.Messages)
	if out.Messages == nil {
		out.Messages = []domain.Message{}
	}
	if s.Context != nil {
		c := s.Context.Clone()
		out.Context = &c
	}
	return out
}

type pendingTurn struct {
	cancel context.CancelFunc
}

// book holds one owner's sessions.
type book struct {
	sessions map[string]*Session
	current  string
	pending  map[string]*pendingTurn
	touched  time.Time
}

// Store is a concurrency-safe, per-owner session store.
type Store struct {
	mu      sync.Mutex
	owners  map[string]*book
	entropy io.Reader
	now     func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		owners:  make(map[string]*book),
		entropy: ulid.Monotonic(rand.Reader, 0),
		now:     time.Now,
	}
}

// newID must be called with s.mu held.
func (s *Store) newID() string {
	return ulid.MustNew(ulid.Timestamp(s.now()), s.entropy).String()
}

// book returns the owner's book, creating it when create is set.
// Must be called with s.mu held.
func (s *Store) book(owner string, create bool) *book {
	b, ok := s.owners[owner]
	if !ok {
		if !create {
			return nil
		}
		b = &book{sessions: make(map[string]*Session), pending: make(map[string]*pendingTurn)}
		s.owners[owner] = b
	}
	b.touched = s.now()
	return b
}

func (s *Store) lookup(owner, id string) (*book, *Session, error) {
	b := s.book(owner, false)
	if b == nil {
		return nil, nil, ErrNotFound
	}
	sess, ok := b.sessions[id]
	if !ok {
		return b, nil, ErrNotFound
	}
	return b, sess, nil
}

// NewMessage builds a message with a fresh id and the current time.
func (s *Store) NewMessage(sender domain.Sender, content string) domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.Message{ID: s.newID(), Content: content, Sender: sender, Timestamp: s.now()}
}

// CreateSession starts a new, empty session on topic and makes it current.
func (s *Store) CreateSession(owner, topic string) Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.book(owner, true)
	sess := &Session{
		ID:          s.newID(),
		Topic:       topic,
		Messages:    []domain.Message{},
		LastUpdated: s.now(),
	}
	b.sessions[sess.ID] = sess
	b.current = sess.ID
	slog.Debug("Chat session created", "user_id", owner, "session_id", sess.ID, "topic", topic)
	return sess.clone()
}

// SwitchTo makes a session current without changing its contents.
func (s *Store) SwitchTo(owner, id string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, sess, err := s.lookup(owner, id)
	if err != nil {
		return Session{}, err
	}
	b.current = id
	return sess.clone(), nil
}

// Current returns the owner's current session, if any.
func (s *Store) Current(owner string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.book(owner, false)
	if b == nil || b.current == "" {
		return Session{}, false
	}
	sess, ok := b.sessions[b.current]
	if !ok {
		return Session{}, false
	}
	return sess.clone(), true
}

// Get returns a copy of a session.
func (s *Store) Get(owner, id string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, sess, err := s.lookup(owner, id)
	if err != nil {
		return Session{}, err
	}
	return sess.clone(), nil
}

// List returns the owner's sessions, most recently updated first.
func (s *Store) List(owner string) []Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.book(owner, false)
	if b == nil {
		return []Session{}
	}
	out := make([]Session, 0, len(b.sessions))
	for _, sess := range b.sessions {
		out = append(out, sess.clone())
	}
	slices.SortFunc(out, func(a, b Session) int {
		if c := b.LastUpdated.Compare(a.LastUpdated); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})
	return out
}

// RecordTurn appends messages, replaces the context when c is non-nil, and
// bumps LastUpdated. It fails with ErrNotFound if the session was deleted
// while the turn was running.
func (s *Store) RecordTurn(owner, id string, c *tutor.Context, messages ...domain.Message) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, sess, err := s.lookup(owner, id)
	if err != nil {
		return Session{}, err
	}
	sess.Messages = append(sess.Messages, messages...)
	if c != nil {
		cc := c.Clone()
		sess.Context = &cc
	}
	sess.LastUpdated = s.now()
	return sess.clone(), nil
}

// BeginTurn marks a turn as running on the session. The returned context is
// cancelled when the session is deleted or evicted; done must be called when
// the turn finishes. A second concurrent turn gets ErrTurnInProgress.
func (s *Store) BeginTurn(ctx context.Context, owner, id string) (context.Context, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, _, err := s.lookup(owner, id)
	if err != nil {
		return nil, nil, err
	}
	if _, busy := b.pending[id]; busy {
		return nil, nil, ErrTurnInProgress
	}

	turnCtx, cancel := context.WithCancel(ctx)
	p := &pendingTurn{cancel: cancel}
	b.pending[id] = p

	done := func() {
		s.mu.Lock()
		if b.pending[id] == p {
			delete(b.pending, id)
		}
		s.mu.Unlock()
		cancel()
	}
	return turnCtx, done, nil
}

// Delete removes a session, cancels its running turn, and clears the current
// pointer if it pointed there.
func (s *Store) Delete(owner, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, _, err := s.lookup(owner, id)
	if err != nil {
		return err
	}
	if p, ok := b.pending[id]; ok {
		p.cancel()
		delete(b.pending, id)
	}
	delete(b.sessions, id)
	if b.current == id {
		b.current = ""
	}
	slog.Debug("Chat session deleted", "user_id", owner, "session_id", id)
	return nil
}

// EvictIdle drops every owner untouched since before and returns their ids.
func (s *Store) EvictIdle(before time.Time) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var evicted []string
	for owner, b := range s.owners {
		if !b.touched.Before(before) {
			continue
		}
		for _, p := range b.pending {
			p.cancel()
		}
		delete(s.owners, owner)
		evicted = append(evicted, owner)
	}
	return evicted
}
