package pending

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store is the keyed session map. The outer mutex guards only the map; each
// session carries its own lock so concurrent confirms of the same id are
// mutually exclusive without serializing unrelated sessions.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*session

	ttl   time.Duration
	now   func() time.Time
	newID func() string
}

type session struct {
	mu     sync.Mutex
	action Action
}

type Option func(*Store)

// WithTTL bounds how long a session may sit unfinalized before SweepExpired
// evicts it.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(s *Store) { s.newID = newID }
}

func NewStore(opts ...Option) *Store {
	store := &Store{
		sessions: map[string]*session{},
		ttl:      30 * time.Minute,
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Stage records a new pending action and returns it with its generated
// session id. IDs come from a random UUID, never a counter.
func (s *Store) Stage(kind Kind, payload Payload) Action {
	action := Action{
		SessionID: s.newID(),
		Kind:      kind,
		Payload:   payload,
		Status:    StatusPending,
		CreatedAt: s.now(),
	}

	s.mu.Lock()
	s.sessions[action.SessionID] = &session{action: action}
	s.mu.Unlock()
	return action
}

// Get returns a copy of the action for inspection.
func (s *Store) Get(sessionID string) (Action, error) {
	entry, err := s.lookup(sessionID)
	if err != nil {
		return Action{}, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.action, nil
}

// Confirm finalizes the session and runs exec exactly once under the session
// lock. When exec fails the session stays pending so the caller may confirm
// again after fixing the underlying problem.
func (s *Store) Confirm(ctx context.Context, sessionID string, exec func(context.Context, Action) error) (Action, error) {
	entry, err := s.lookup(sessionID)
	if err != nil {
		return Action{}, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.action.Status != StatusPending {
		return entry.action, ErrAlreadyFinalized
	}
	if exec != nil {
		if err := exec(ctx, entry.action); err != nil {
			return entry.action, err
		}
	}
	entry.action.Status = StatusConfirmed
	return entry.action, nil
}

// Cancel finalizes the session without running anything.
func (s *Store) Cancel(sessionID string) (Action, error) {
	entry, err := s.lookup(sessionID)
	if err != nil {
		return Action{}, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.action.Status != StatusPending {
		return entry.action, ErrAlreadyFinalized
	}
	entry.action.Status = StatusCancelled
	return entry.action, nil
}

// Len reports the number of live sessions, terminal ones included.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// SweepSummary reports one sweep pass. ExpiredPending counts sessions that
// were evicted while still awaiting confirmation.
type SweepSummary struct {
	Removed        int
	ExpiredPending int
}

// SweepExpired drops every session older than the TTL, terminal or not.
// Terminal sessions are kept until then so that a late confirm or cancel
// still reports AlreadyFinalized instead of UnknownSession.
//
// The store lock is never held while a session lock is taken: a confirm may
// sit inside its exec callback for a long database or trainer round-trip, and
// the sweep must not park Stage/Get/Confirm/Cancel of unrelated sessions
// behind it.
func (s *Store) SweepExpired() SweepSummary {
	cutoff := s.now().Add(-s.ttl)

	type candidate struct {
		id    string
		entry *session
	}

	s.mu.Lock()
	expired := make([]candidate, 0)
	for id, entry := range s.sessions {
		// CreatedAt is immutable after Stage, so no session lock is needed.
		if entry.action.CreatedAt.Before(cutoff) {
			expired = append(expired, candidate{id: id, entry: entry})
		}
	}
	s.mu.Unlock()

	var summary SweepSummary
	for _, c := range expired {
		c.entry.mu.Lock()
		pending := c.entry.action.Status == StatusPending
		c.entry.mu.Unlock()
		summary.Removed++
		if pending {
			summary.ExpiredPending++
		}
	}

	s.mu.Lock()
	for _, c := range expired {
		delete(s.sessions, c.id)
	}
	s.mu.Unlock()
	return summary
}

func (s *Store) lookup(sessionID string) (*session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrUnknownSession
	}
	return entry, nil
}
