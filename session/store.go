package session

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/leafwise/leafwise/types"
)

// Store manages session lifecycle. Sessions are exclusively owned by their
// interaction; stores only hand out and persist them.
type Store interface {
	// Create allocates a new session with a fresh id.
	Create(ctx context.Context) (*Session, error)

	// Get returns the session with the given id, or SESSION_NOT_FOUND.
	Get(ctx context.Context, id string) (*Session, error)

	// Save persists the session's current state. In-memory stores treat
	// this as a no-op.
	Save(ctx context.Context, s *Session) error

	// Delete destroys the session when the interaction ends.
	Delete(ctx context.Context, id string) error
}

// InMemoryStore keeps sessions in a process-local map. Sessions do not
// survive process restarts, which matches the engine's persistence
// contract.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewInMemoryStore creates an empty in-memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]*Session)}
}

// Create allocates a new session.
func (s *InMemoryStore) Create(ctx context.Context) (*Session, error) {
	sess := New(uuid.NewString())
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
	return sess, nil
}

// Get returns the session with the given id.
func (s *InMemoryStore) Get(ctx context.Context, id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, types.NewError(types.ErrSessionNotFound, "session "+id+" not found")
	}
	return sess, nil
}

// Save is a no-op; in-memory sessions are mutated in place.
func (s *InMemoryStore) Save(ctx context.Context, sess *Session) error { return nil }

// Delete removes the session.
func (s *InMemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}
