package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"mindquest-service/internal/domain"
)

type countingLoader struct {
	calls int
}

func (l *countingLoader) LoadPool(_ context.Context, categoryID int64) (domain.QuestionPool, error) {
	l.calls++
	if categoryID != 1 {
		return domain.QuestionPool{}, domain.ErrCategoryNotFound
	}
	return domain.QuestionPool{
		Category: domain.QuizCategory{ID: 1, Title: "Mathematics", Active: true},
		Questions: []domain.Question{
			{ID: 7, CategoryID: 1, Prompt: "What is 7 x 8?", Options: []string{"54", "56", "58", "64"}, CorrectAnswer: 1, Points: 10, Active: true},
		},
	}, nil
}

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestPoolCacheCachesInRedis(t *testing.T) {
	mr, client := newTestClient(t)
	loader := &countingLoader{}
	cache := NewPoolCache(client, loader, time.Minute)
	ctx := context.Background()

	pool, err := cache.GetPool(ctx, 1)
	if err != nil {
		t.Fatalf("get pool: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls)
	}
	if !mr.Exists("quiz:pool:1") {
		t.Fatalf("expected pool cached in redis")
	}
	if ttl := mr.TTL("quiz:pool:1"); ttl < time.Minute || ttl > 66*time.Second {
		t.Fatalf("expected ttl within jitter window, got %v", ttl)
	}

	// Second call should hit cache and return the full question.
	cached, err := cache.GetPool(ctx, 1)
	if err != nil {
		t.Fatalf("get pool 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
	if cached.Questions[0].CorrectAnswer != pool.Questions[0].CorrectAnswer || cached.Category.Title != "Mathematics" {
		t.Fatalf("cached pool differs: %+v", cached)
	}

	if err := cache.Invalidate(ctx, 1); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, err := cache.GetPool(ctx, 1); err != nil {
		t.Fatalf("get pool 3: %v", err)
	}
	if loader.calls != 2 {
		t.Fatalf("expected reload after invalidate, loader calls=%d", loader.calls)
	}
}

func TestPoolCacheFallsBackWhenRedisIsDown(t *testing.T) {
	mr, client := newTestClient(t)
	loader := &countingLoader{}
	cache := NewPoolCache(client, loader, time.Minute)
	mr.Close()

	if _, err := cache.GetPool(context.Background(), 1); err != nil {
		t.Fatalf("expected loader fallback, got %v", err)
	}
}

func TestSessionStoreRoundTripAndExpiry(t *testing.T) {
	mr, client := newTestClient(t)
	store := NewSessionStore(client, 30*time.Minute)
	ctx := context.Background()

	started := time.Date(2024, 11, 22, 9, 0, 0, 0, time.UTC)
	session := domain.AttemptSession{UserID: 3, CategoryID: 4, QuestionIDs: []int64{1, 2}, StartedAt: started}
	if err := store.Begin(ctx, session); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if !mr.Exists("quiz:session:3:4") {
		t.Fatalf("expected redis key to be set")
	}

	got, ok, err := store.Get(ctx, 3, 4)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if !got.StartedAt.Equal(started) || len(got.QuestionIDs) != 2 {
		t.Fatalf("unexpected session %+v", got)
	}

	mr.FastForward(31 * time.Minute)
	if _, ok, _ := store.Get(ctx, 3, 4); ok {
		t.Fatalf("expected session to expire")
	}

	_ = store.Begin(ctx, session)
	if err := store.End(ctx, 3, 4); err != nil {
		t.Fatalf("end: %v", err)
	}
	if mr.Exists("quiz:session:3:4") {
		t.Fatalf("expected redis key to be removed")
	}
}

func TestLeaderboardRanksByPoints(t *testing.T) {
	_, client := newTestClient(t)
	lb := NewLeaderboard(client)
	ctx := context.Background()

	for _, r := range []struct {
		id     int64
		name   string
		points int64
	}{{1, "Alice", 100}, {2, "Bob", 300}, {3, "Carol", 200}, {1, "Alice", 250}} {
		if err := lb.Record(ctx, r.id, r.name, r.points); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	top, err := lb.Top(ctx, 2)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if len(top) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(top))
	}
	if top[0].UserID != 2 || top[0].Name != "Bob" || top[0].Rank != 1 {
		t.Fatalf("expected Bob first, got %+v", top[0])
	}
	if top[1].UserID != 1 || top[1].Points != 250 || top[1].Rank != 2 {
		t.Fatalf("expected Alice second with 250, got %+v", top[1])
	}

	all, err := lb.Top(ctx, 0)
	if err != nil || len(all) != 3 {
		t.Fatalf("expected full ranking, got %v %v", all, err)
	}
}
