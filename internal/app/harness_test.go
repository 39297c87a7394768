package app_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mindquest-service/internal/app"
	"mindquest-service/internal/domain"
	"mindquest-service/internal/infra/memory"
)

var epoch = time.Date(2024, 11, 22, 9, 0, 0, 0, time.UTC)

type harness struct {
	ctx      context.Context
	log      *slog.Logger
	store    *memory.Store
	sessions *memory.SessionStore
	board    *app.LeaderboardFeed
	ledger   *app.Ledger
	quiz     *app.QuizService
	points   *app.PointsService
	rewards  *app.RewardService
}

func newHarness(t *testing.T, opts ...app.QuizOption) *harness {
	t.Helper()
	clock := func() time.Time { return epoch }
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.NewStoreWithClock(clock)
	sessions := memory.NewSessionStoreWithClock(time.Hour, clock)
	pools := memory.NewPoolCache(app.NewStorePoolLoader(store), time.Minute)
	board := app.NewLeaderboardFeedWithClock(memory.NewLeaderboard(), store, 10, log, clock)
	ledger := app.NewLedgerWithClock(clock)

	opts = append([]app.QuizOption{app.WithQuizClock(clock), app.WithRandSource(rand.NewSource(1))}, opts...)
	return &harness{
		ctx:      context.Background(),
		log:      log,
		store:    store,
		sessions: sessions,
		board:    board,
		ledger:   ledger,
		quiz:     app.NewQuizService(store, pools, sessions, ledger, board, log, opts...),
		points:   app.NewPointsService(store, ledger, board, log),
		rewards:  app.NewRewardServiceWithClock(store, ledger, board, log, clock),
	}
}

// user creates an active level-1 user and credits points through the ledger.
func (h *harness) user(t *testing.T, name string, points int64) domain.User {
	t.Helper()
	u := domain.User{
		Name:     name,
		Email:    fmt.Sprintf("%s@example.com", name),
		Role:     domain.RoleUser,
		Level:    1,
		Provider: domain.ProviderEmail,
		Status:   domain.UserActive,
	}
	require.NoError(t, h.store.CreateUser(h.ctx, &u))
	if points > 0 {
		var err error
		u, err = h.points.Award(h.ctx, u.ID, points, "seed", "starting balance")
		require.NoError(t, err)
	}
	return u
}

// category creates an active category with n questions worth 10 points each.
// Question i has correct option i%4.
func (h *harness) category(t *testing.T, title string, n int) (domain.QuizCategory, []domain.Question) {
	t.Helper()
	c := domain.QuizCategory{Title: title, Description: title, Difficulty: domain.DifficultyEasy, Active: true}
	require.NoError(t, h.store.CreateCategory(h.ctx, &c))
	qs := make([]domain.Question, n)
	for i := range qs {
		qs[i] = domain.Question{
			CategoryID:    c.ID,
			Prompt:        fmt.Sprintf("%s #%d", title, i+1),
			Options:       []string{"a", "b", "c", "d"},
			CorrectAnswer: i % 4,
			Points:        domain.DefaultQuestionPoints,
			TimeLimit:     domain.DefaultQuestionTimeLimit,
			Difficulty:    domain.DifficultyEasy,
			Active:        true,
		}
		require.NoError(t, h.store.CreateQuestion(h.ctx, &qs[i]))
	}
	return c, qs
}

func (h *harness) reward(t *testing.T, name string, minPoints int64, available bool) domain.CryptoReward {
	t.Helper()
	r := domain.CryptoReward{Name: name, MinPoints: minPoints, Available: available}
	require.NoError(t, h.store.CreateReward(h.ctx, &r))
	return r
}

// ledgerSum is the signed total of a user's transactions.
func (h *harness) ledgerSum(t *testing.T, userID int64) int64 {
	t.Helper()
	page, err := h.store.ListTransactions(h.ctx, userID, "", domain.PageRequest{Size: domain.MaxPageSize})
	require.NoError(t, err)
	var sum int64
	for _, tx := range page.Items {
		sum += tx.Signed()
	}
	return sum
}

func (h *harness) balance(t *testing.T, userID int64) int64 {
	t.Helper()
	u, err := h.store.GetUser(h.ctx, userID)
	require.NoError(t, err)
	return u.Points
}

func answerAll(qs []domain.Question, correct bool) []domain.AnswerInput {
	out := make([]domain.AnswerInput, len(qs))
	for i, q := range qs {
		sel := q.CorrectAnswer
		if !correct {
			sel = (q.CorrectAnswer + 1) % len(q.Options)
		}
		out[i] = domain.AnswerInput{QuestionID: q.ID, SelectedOption: sel, TimeSpent: 10}
	}
	return out
}
