package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"mindquest-service/internal/domain"
)

const DefaultLeaderboardSize = 10

// UserReader returns the committed state of a user.
type UserReader interface {
	GetUser(ctx context.Context, id int64) (domain.User, error)
}

// LeaderboardFeed ranks users by balance and pushes fresh snapshots to
// subscribers whenever a balance changes. A nil feed is a no-op.
type LeaderboardFeed struct {
	repo  LeaderboardRepository
	users UserReader
	size  int
	log   *slog.Logger
	now   func() time.Time

	// recordMu orders read-then-record so a late publish of an older
	// snapshot cannot overwrite a newer balance.
	recordMu sync.Mutex

	mu          sync.Mutex
	subscribers map[chan domain.Leaderboard]struct{}
}

// NewLeaderboardFeed ranks users in repo. Balances are re-read from users
// before each record; a nil users records the published snapshot as is.
func NewLeaderboardFeed(repo LeaderboardRepository, users UserReader, size int, log *slog.Logger) *LeaderboardFeed {
	return NewLeaderboardFeedWithClock(repo, users, size, log, time.Now)
}

// NewLeaderboardFeedWithClock allows deterministic timestamps in tests.
func NewLeaderboardFeedWithClock(repo LeaderboardRepository, users UserReader, size int, log *slog.Logger, now func() time.Time) *LeaderboardFeed {
	if size <= 0 {
		size = DefaultLeaderboardSize
	}
	return &LeaderboardFeed{
		repo:        repo,
		users:       users,
		size:        size,
		log:         log,
		now:         now,
		subscribers: make(map[chan domain.Leaderboard]struct{}),
	}
}

// Top returns the current ranking, at most limit entries (feed size when limit <= 0).
func (f *LeaderboardFeed) Top(ctx context.Context, limit int) (domain.Leaderboard, error) {
	if limit <= 0 || limit > f.size {
		limit = f.size
	}
	entries, err := f.repo.Top(ctx, limit)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	return domain.Leaderboard{Entries: entries, UpdatedAt: f.now()}, nil
}

// Publish records the user's balance and fans the new ranking out. Failures
// are logged: the ledger is already committed at this point.
func (f *LeaderboardFeed) Publish(ctx context.Context, user domain.User) {
	if f == nil {
		return
	}
	if err := f.record(ctx, user); err != nil {
		f.log.Error("leaderboard record", "user", user.ID, "err", err)
		return
	}

	f.mu.Lock()
	listening := len(f.subscribers) > 0
	f.mu.Unlock()
	if !listening {
		return
	}

	lb, err := f.Top(ctx, f.size)
	if err != nil {
		f.log.Error("leaderboard snapshot", "err", err)
		return
	}
	f.mu.Lock()
	f.broadcastLocked(lb)
	f.mu.Unlock()
}

func (f *LeaderboardFeed) record(ctx context.Context, user domain.User) error {
	f.recordMu.Lock()
	defer f.recordMu.Unlock()
	if f.users != nil {
		fresh, err := f.users.GetUser(ctx, user.ID)
		if err != nil {
			f.log.Warn("leaderboard reread", "user", user.ID, "err", err)
		} else {
			user = fresh
		}
	}
	return f.repo.Record(ctx, user.ID, user.Name, user.Points)
}

// Subscribe returns a channel that receives the current ranking followed by
// every update. The caller must invoke the returned cancel function.
func (f *LeaderboardFeed) Subscribe(ctx context.Context) (<-chan domain.Leaderboard, func(), error) {
	initial, err := f.Top(ctx, f.size)
	if err != nil {
		return nil, nil, err
	}
	ch := make(chan domain.Leaderboard, 8)
	ch <- initial

	f.mu.Lock()
	f.subscribers[ch] = struct{}{}
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		if _, ok := f.subscribers[ch]; ok {
			delete(f.subscribers, ch)
			close(ch)
		}
		f.mu.Unlock()
	}
	return ch, cancel, nil
}

func (f *LeaderboardFeed) broadcastLocked(lb domain.Leaderboard) {
	for ch := range f.subscribers {
		select {
		case ch <- lb:
		default:
			// slow reader: replace its oldest snapshot
			select {
			case <-ch:
			default:
			}
			ch <- lb
		}
	}
}
