package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"mindquest-service/internal/app"
	"mindquest-service/internal/domain"
)

// SessionStore is an in-memory implementation of app.SessionRepository.
// Sessions older than ttl are treated as absent.
type SessionStore struct {
	ttl   time.Duration
	clock func() time.Time

	mu       sync.RWMutex
	sessions map[attemptKey]domain.AttemptSession
}

var _ app.SessionRepository = (*SessionStore)(nil)

func NewSessionStore(ttl time.Duration) *SessionStore {
	return NewSessionStoreWithClock(ttl, time.Now)
}

// NewSessionStoreWithClock allows tests to expire sessions.
func NewSessionStoreWithClock(ttl time.Duration, clock func() time.Time) *SessionStore {
	return &SessionStore{
		ttl:      ttl,
		clock:    clock,
		sessions: make(map[attemptKey]domain.AttemptSession),
	}
}

// Begin records a started attempt, replacing any earlier one for the pair.
func (s *SessionStore) Begin(_ context.Context, session domain.AttemptSession) error {
	session.QuestionIDs = slices.Clone(session.QuestionIDs)
	s.mu.Lock()
	s.sessions[attemptKey{session.UserID, session.CategoryID}] = session
	s.mu.Unlock()
	return nil
}

func (s *SessionStore) Get(_ context.Context, userID, categoryID int64) (domain.AttemptSession, bool, error) {
	key := attemptKey{userID, categoryID}
	s.mu.RLock()
	session, ok := s.sessions[key]
	s.mu.RUnlock()
	if !ok {
		return domain.AttemptSession{}, false, nil
	}
	if s.ttl > 0 && !session.StartedAt.Add(s.ttl).After(s.clock()) {
		s.mu.Lock()
		delete(s.sessions, key)
		s.mu.Unlock()
		return domain.AttemptSession{}, false, nil
	}
	session.QuestionIDs = slices.Clone(session.QuestionIDs)
	return session, true, nil
}

func (s *SessionStore) End(_ context.Context, userID, categoryID int64) error {
	s.mu.Lock()
	delete(s.sessions, attemptKey{userID, categoryID})
	s.mu.Unlock()
	return nil
}
