package memory

import (
	"context"
	"testing"
	"time"

	"mindquest-service/internal/domain"
)

func TestSessionStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore(time.Hour)

	if _, ok, _ := store.Get(ctx, 1, 2); ok {
		t.Fatalf("expected no session")
	}
	session := domain.AttemptSession{UserID: 1, CategoryID: 2, QuestionIDs: []int64{3, 4}, StartedAt: time.Now()}
	if err := store.Begin(ctx, session); err != nil {
		t.Fatalf("begin: %v", err)
	}
	got, ok, err := store.Get(ctx, 1, 2)
	if err != nil || !ok {
		t.Fatalf("expected session present, ok=%v err=%v", ok, err)
	}
	if len(got.QuestionIDs) != 2 {
		t.Fatalf("expected 2 question ids, got %v", got.QuestionIDs)
	}

	if err := store.End(ctx, 1, 2); err != nil {
		t.Fatalf("end: %v", err)
	}
	if _, ok, _ := store.Get(ctx, 1, 2); ok {
		t.Fatalf("expected session removed")
	}
}

func TestSessionStoreExpires(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewSessionStoreWithClock(30*time.Minute, func() time.Time { return now })

	if err := store.Begin(ctx, domain.AttemptSession{UserID: 1, CategoryID: 2, StartedAt: now}); err != nil {
		t.Fatalf("begin: %v", err)
	}
	now = now.Add(29 * time.Minute)
	if _, ok, _ := store.Get(ctx, 1, 2); !ok {
		t.Fatalf("expected session before ttl")
	}
	now = now.Add(time.Minute)
	if _, ok, _ := store.Get(ctx, 1, 2); ok {
		t.Fatalf("expected session expired at ttl")
	}
}
