package app

import (
	"context"
	"log/slog"

	"mindquest-service/internal/domain"
)

const (
	recentTransactions = 5

	SourceAdminAward = "admin_award"
)

// PointsService exposes a user's ledger.
type PointsService struct {
	store  Store
	ledger *Ledger
	board  *LeaderboardFeed
	log    *slog.Logger
}

func NewPointsService(store Store, ledger *Ledger, board *LeaderboardFeed, log *slog.Logger) *PointsService {
	return &PointsService{store: store, ledger: ledger, board: board, log: log}
}

// Summary reports the balance, lifetime totals and the latest transactions.
func (s *PointsService) Summary(ctx context.Context, userID int64) (domain.PointsSummary, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return domain.PointsSummary{}, err
	}
	totals, err := s.store.TransactionTotals(ctx, userID)
	if err != nil {
		return domain.PointsSummary{}, err
	}
	recent, err := s.store.ListTransactions(ctx, userID, "", domain.PageRequest{Size: recentTransactions})
	if err != nil {
		return domain.PointsSummary{}, err
	}
	return domain.PointsSummary{
		Balance:         user.Points,
		TotalEarned:     totals.Earned,
		TotalRedeemed:   totals.Redeemed,
		Level:           user.Level,
		NextLevelPoints: domain.NextLevelPoints(user.Level),
		Recent:          recent.Items,
	}, nil
}

// History pages through the ledger newest first, optionally by type.
func (s *PointsService) History(ctx context.Context, userID int64, typ domain.TransactionType, page domain.PageRequest) (domain.Page[domain.PointsTransaction], error) {
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return domain.Page[domain.PointsTransaction]{}, err
	}
	return s.store.ListTransactions(ctx, userID, typ, page.Normalize())
}

// Award credits points outside a quiz. Administrators reach it over HTTP.
func (s *PointsService) Award(ctx context.Context, userID, amount int64, source, description string) (domain.User, error) {
	var user domain.User
	err := s.store.InTx(ctx, func(ctx context.Context, q Queries) error {
		var err error
		user, err = s.ledger.Award(ctx, q, userID, amount, source, description)
		return err
	})
	if err != nil {
		return domain.User{}, err
	}
	s.board.Publish(ctx, user)
	s.log.Info("points awarded", "user", userID, "amount", amount, "source", source)
	return user, nil
}
