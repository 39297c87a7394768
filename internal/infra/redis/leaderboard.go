package redis

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"

	"mindquest-service/internal/app"
	"mindquest-service/internal/domain"
)

const (
	LeaderboardPointsKey = "leaderboard:points"
	LeaderboardNamesKey  = "leaderboard:names"
)

// Leaderboard ranks users in a sorted set keyed by user id, with display
// names kept in a side hash.
type Leaderboard struct {
	client *redis.Client
}

var _ app.LeaderboardRepository = (*Leaderboard)(nil)

func NewLeaderboard(client *redis.Client) *Leaderboard {
	return &Leaderboard{client: client}
}

func (l *Leaderboard) Record(ctx context.Context, userID int64, name string, points int64) error {
	member := strconv.FormatInt(userID, 10)
	pipe := l.client.TxPipeline()
	pipe.ZAdd(ctx, LeaderboardPointsKey, redis.Z{Score: float64(points), Member: member})
	pipe.HSet(ctx, LeaderboardNamesKey, member, name)
	_, err := pipe.Exec(ctx)
	return err
}

// Top returns the highest balances, 1-indexed by rank.
func (l *Leaderboard) Top(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	results, err := l.client.ZRevRangeWithScores(ctx, LeaderboardPointsKey, 0, stop).Result()
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return []domain.LeaderboardEntry{}, nil
	}

	members := make([]string, len(results))
	for i, r := range results {
		members[i], _ = r.Member.(string)
	}
	names, err := l.client.HMGet(ctx, LeaderboardNamesKey, members...).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]domain.LeaderboardEntry, 0, len(results))
	for i, r := range results {
		id, err := strconv.ParseInt(members[i], 10, 64)
		if err != nil {
			continue
		}
		name, _ := names[i].(string)
		entries = append(entries, domain.LeaderboardEntry{
			UserID: id,
			Name:   name,
			Points: int64(r.Score),
			Rank:   int64(i) + 1,
		})
	}
	return entries, nil
}
