package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"mindquest-service/internal/app"
	"mindquest-service/internal/domain"
)

// SessionStore keeps started attempts in Redis so every instance sees them.
// Keys expire after ttl: an abandoned attempt falls back to NOT_STARTED.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

var _ app.SessionRepository = (*SessionStore)(nil)

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

func (s *SessionStore) Begin(ctx context.Context, session domain.AttemptSession) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(session.UserID, session.CategoryID), raw, s.ttl).Err()
}

func (s *SessionStore) Get(ctx context.Context, userID, categoryID int64) (domain.AttemptSession, bool, error) {
	raw, err := s.client.Get(ctx, s.key(userID, categoryID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.AttemptSession{}, false, nil
	}
	if err != nil {
		return domain.AttemptSession{}, false, err
	}
	var session domain.AttemptSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return domain.AttemptSession{}, false, fmt.Errorf("decode attempt session: %w", err)
	}
	return session, true, nil
}

func (s *SessionStore) End(ctx context.Context, userID, categoryID int64) error {
	return s.client.Del(ctx, s.key(userID, categoryID)).Err()
}

func (s *SessionStore) key(userID, categoryID int64) string {
	return fmt.Sprintf("quiz:session:%d:%d", userID, categoryID)
}
