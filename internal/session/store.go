package session

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Store manages in-memory sessions keyed by UUID.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
	logger   *slog.Logger
}

// NewStore creates a Store. A nil logger falls back to slog.Default().
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		sessions: make(map[uuid.UUID]*Session),
		logger:   logger,
	}
}

// Create registers a new session for the given principal and returns it.
func (s *Store) Create(userName, userID string) *Session {
	id := uuid.New()
	sess := newSession(id, userName, userID)

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()

	s.logger.Debug("created session", "id", id, "user", userName)
	return sess
}

// Get retrieves a session by ID.
func (s *Store) Get(id uuid.UUID) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess, nil
}

// Delete removes a session. Deleting an absent session is a no-op.
func (s *Store) Delete(id uuid.UUID) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()

	s.logger.Debug("deleted session", "id", id)
}

// Len reports the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
