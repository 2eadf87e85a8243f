package memory

import (
	"context"
	"sync"
	"time"

	"github.com/katlego-io/ussdflow/pkg/domain"
)

// SessionStore implements ports.SessionStore in memory.
// Safe for concurrent use. Reference implementation for tests and the
// dial simulator; production deployments use the redis adapter.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
	channels map[string]string // channel key -> active session ID
}

// NewSessionStore creates a new in-memory session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*domain.Session),
		channels: make(map[string]string),
	}
}

func channelKey(phoneNumber, shortCode string) string {
	return phoneNumber + "|" + shortCode
}

// Create persists a new session and reserves its channel atomically.
func (s *SessionStore) Create(ctx context.Context, session *domain.Session) error {
	key := channelKey(session.PhoneNumber, session.ShortCode)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.channels[key]; taken {
		return domain.ErrConflictingActiveSession
	}

	stored := session.Clone()
	stored.Revision = 0
	s.sessions[stored.SessionID] = stored
	s.channels[key] = stored.SessionID
	session.Revision = 0
	return nil
}

// Get retrieves a copy of the session so callers cannot mutate store state
// through the returned pointer.
func (s *SessionStore) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.sessions[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return stored.Clone(), nil
}

// GetByChannel retrieves the active session holding the channel.
func (s *SessionStore) GetByChannel(ctx context.Context, phoneNumber, shortCode string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.channels[channelKey(phoneNumber, shortCode)]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	stored, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return stored.Clone(), nil
}

// Save applies a conditional write: it succeeds only if the caller's
// revision matches the stored one, then bumps the revision. Terminal
// statuses release the channel reservation.
func (s *SessionStore) Save(ctx context.Context, session *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.sessions[session.SessionID]
	if !ok {
		return domain.ErrSessionNotFound
	}
	if stored.Revision != session.Revision {
		return domain.ErrConcurrentModification
	}

	updated := session.Clone()
	updated.Revision = stored.Revision + 1
	s.sessions[updated.SessionID] = updated
	session.Revision = updated.Revision

	key := channelKey(updated.PhoneNumber, updated.ShortCode)
	if updated.Status.IsTerminal() {
		if s.channels[key] == updated.SessionID {
			delete(s.channels, key)
		}
	}
	return nil
}

// ListExpiring scans for active sessions past their deadline.
func (s *SessionStore) ListExpiring(ctx context.Context, now time.Time) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for id, stored := range s.sessions {
		if stored.Status == domain.StatusActive && !stored.ExpiresAt.After(now) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
