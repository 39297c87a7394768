package memory

import (
	"context"
	"sort"
	"sync"

	"mindquest-service/internal/app"
	"mindquest-service/internal/domain"
)

// Leaderboard ranks users by their last recorded balance.
type Leaderboard struct {
	mu      sync.RWMutex
	entries map[int64]domain.LeaderboardEntry
}

var _ app.LeaderboardRepository = (*Leaderboard)(nil)

func NewLeaderboard() *Leaderboard {
	return &Leaderboard{entries: make(map[int64]domain.LeaderboardEntry)}
}

func (l *Leaderboard) Record(_ context.Context, userID int64, name string, points int64) error {
	l.mu.Lock()
	l.entries[userID] = domain.LeaderboardEntry{UserID: userID, Name: name, Points: points}
	l.mu.Unlock()
	return nil
}

// Top returns entries by points descending; ties go to the lower user id.
func (l *Leaderboard) Top(_ context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	l.mu.RLock()
	out := make([]domain.LeaderboardEntry, 0, len(l.entries))
	for _, e := range l.entries {
		out = append(out, e)
	}
	l.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Points != out[j].Points {
			return out[i].Points > out[j].Points
		}
		return out[i].UserID < out[j].UserID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	for i := range out {
		out[i].Rank = int64(i + 1)
	}
	return out, nil
}
