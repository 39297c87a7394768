package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"mindquest-service/internal/domain"
)

const (
	SourceRewardRedemption = "reward_redemption"
	redemptionDeliveryTime = 24 * time.Hour
)

// RewardService runs the reward catalog and redemptions. Payout happens
// outside this service: redemptions are recorded as PENDING.
type RewardService struct {
	store  Store
	ledger *Ledger
	board  *LeaderboardFeed
	log    *slog.Logger
	now    func() time.Time
}

func NewRewardService(store Store, ledger *Ledger, board *LeaderboardFeed, log *slog.Logger) *RewardService {
	return NewRewardServiceWithClock(store, ledger, board, log, time.Now)
}

// NewRewardServiceWithClock allows deterministic timestamps in tests.
func NewRewardServiceWithClock(store Store, ledger *Ledger, board *LeaderboardFeed, log *slog.Logger, now func() time.Time) *RewardService {
	return &RewardService{store: store, ledger: ledger, board: board, log: log, now: now}
}

// Available lists the catalog ordered by price, flagged with whether the
// user can currently afford each reward.
func (s *RewardService) Available(ctx context.Context, userID int64) ([]domain.RewardOffer, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	rewards, err := s.store.AvailableRewards(ctx)
	if err != nil {
		return nil, err
	}
	offers := make([]domain.RewardOffer, 0, len(rewards))
	for _, r := range rewards {
		offers = append(offers, domain.RewardOffer{CryptoReward: r, CanRedeem: user.Points >= r.MinPoints})
	}
	return offers, nil
}

// Redeem exchanges MinPoints of the user's balance for a reward. The
// redemption row and the REDEEMED transaction commit together or not at all.
func (s *RewardService) Redeem(ctx context.Context, userID, rewardID int64, wallet string) (domain.RewardRedemption, error) {
	wallet = strings.TrimSpace(wallet)
	if wallet == "" {
		return domain.RewardRedemption{}, fmt.Errorf("wallet address is required: %w", domain.ErrInvalidArgument)
	}

	var (
		redemption domain.RewardRedemption
		user       domain.User
	)
	err := s.store.InTx(ctx, func(ctx context.Context, q Queries) error {
		var err error
		if user, err = q.LockUser(ctx, userID); err != nil {
			return err
		}
		reward, err := q.GetReward(ctx, rewardID)
		if err != nil {
			return err
		}
		if !reward.Available {
			return domain.ErrRewardUnavailable
		}
		if user.Points < reward.MinPoints {
			return fmt.Errorf("balance %d, need %d: %w", user.Points, reward.MinPoints, domain.ErrInsufficientBalance)
		}

		now := s.now()
		redemption = domain.RewardRedemption{
			UserID:            userID,
			RewardID:          reward.ID,
			RewardName:        reward.Name,
			PointsUsed:        reward.MinPoints,
			Value:             reward.Value,
			Status:            domain.RedemptionPending,
			WalletAddress:     wallet,
			EstimatedDelivery: now.Add(redemptionDeliveryTime),
			CreatedAt:         now,
		}
		if err := q.InsertRedemption(ctx, &redemption); err != nil {
			return fmt.Errorf("insert redemption: %w", err)
		}
		user, err = s.ledger.Deduct(ctx, q, userID, reward.MinPoints, SourceRewardRedemption, "Redeemed "+reward.Name)
		return err
	})
	if err != nil {
		return domain.RewardRedemption{}, err
	}

	s.board.Publish(ctx, user)
	s.log.Info("reward redeemed", "user", userID, "reward", rewardID, "points", redemption.PointsUsed)
	return redemption, nil
}

// History lists the user's redemptions, newest first.
func (s *RewardService) History(ctx context.Context, userID int64, page domain.PageRequest) (domain.Page[domain.RewardRedemption], error) {
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return domain.Page[domain.RewardRedemption]{}, err
	}
	return s.store.ListRedemptions(ctx, userID, page.Normalize())
}
