package app

import (
	"context"
	"time"

	"mindquest-service/internal/domain"
)

// Queries is the persistence surface used by the use cases. The same set of
// operations is available on a Store directly (auto-commit) and inside InTx.
type Queries interface {
	GetUser(ctx context.Context, id int64) (domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)
	// LockUser reads the user and holds a write lock on it until the transaction ends.
	LockUser(ctx context.Context, id int64) (domain.User, error)
	CreateUser(ctx context.Context, user *domain.User) error
	UpdateBalance(ctx context.Context, userID, points int64, level int) error
	UpdateProfile(ctx context.Context, userID int64, update domain.ProfileUpdate) (domain.User, error)
	SetAvatar(ctx context.Context, userID int64, path string) (domain.User, error)
	TouchUser(ctx context.Context, userID int64, at time.Time) error
	CountActiveUsers(ctx context.Context) (int64, error)
	TopUsers(ctx context.Context, limit int) ([]domain.User, error)

	GetCategory(ctx context.Context, id int64) (domain.QuizCategory, error)
	ListCategories(ctx context.Context, filter domain.CategoryFilter, page domain.PageRequest) (domain.Page[domain.QuizCategory], error)
	AllCategories(ctx context.Context) ([]domain.QuizCategory, error)
	CreateCategory(ctx context.Context, category *domain.QuizCategory) error

	ActiveQuestions(ctx context.Context, categoryID int64) ([]domain.Question, error)
	GetQuestions(ctx context.Context, ids []int64) ([]domain.Question, error)
	CreateQuestion(ctx context.Context, question *domain.Question) error
	IncrementQuestionUsage(ctx context.Context, ids []int64) error

	// FindAttempt returns domain.ErrAttemptNotFound when the pair has no attempt.
	FindAttempt(ctx context.Context, userID, categoryID int64) (domain.QuizAttempt, error)
	// InsertAttempt stores the attempt and its answers; a second attempt for the
	// same (user, category) fails with domain.ErrAttemptExists.
	InsertAttempt(ctx context.Context, attempt *domain.QuizAttempt, answers []domain.QuizAnswer) error
	ListAttempts(ctx context.Context, userID int64, categoryID *int64, page domain.PageRequest) (domain.Page[domain.QuizAttempt], error)
	AttemptAnswers(ctx context.Context, attemptID int64) ([]domain.QuizAnswer, error)
	AttemptStats(ctx context.Context, userID int64) (domain.AttemptStats, error)

	InsertTransaction(ctx context.Context, tx *domain.PointsTransaction) error
	ListTransactions(ctx context.Context, userID int64, typ domain.TransactionType, page domain.PageRequest) (domain.Page[domain.PointsTransaction], error)
	TransactionTotals(ctx context.Context, userID int64) (domain.PointsTotals, error)

	GetReward(ctx context.Context, id int64) (domain.CryptoReward, error)
	AvailableRewards(ctx context.Context) ([]domain.CryptoReward, error)
	CreateReward(ctx context.Context, reward *domain.CryptoReward) error
	InsertRedemption(ctx context.Context, redemption *domain.RewardRedemption) error
	ListRedemptions(ctx context.Context, userID int64, page domain.PageRequest) (domain.Page[domain.RewardRedemption], error)

	InsertPost(ctx context.Context, post *domain.CommunityPost) error
	GetPost(ctx context.Context, id int64) (domain.CommunityPost, error)
	IncrementPostViews(ctx context.Context, id int64) error
	ListPosts(ctx context.Context, categoryID int64, sort domain.PostSort, page domain.PageRequest) (domain.Page[domain.CommunityPost], error)
	// CountPosts counts all posts when categoryID is zero.
	CountPosts(ctx context.Context, categoryID int64) (int64, error)
}

// Store abstracts the relational backend (in-memory, Postgres).
type Store interface {
	Queries
	// InTx runs fn in one transaction. Writes made through q commit together
	// when fn returns nil and are discarded otherwise.
	InTx(ctx context.Context, fn func(ctx context.Context, q Queries) error) error
}

// PoolLoader fetches a category's active question pool from a backing store.
type PoolLoader interface {
	LoadPool(ctx context.Context, categoryID int64) (domain.QuestionPool, error)
}

// PoolRepository serves question pools, usually from a cache.
type PoolRepository interface {
	GetPool(ctx context.Context, categoryID int64) (domain.QuestionPool, error)
	// Invalidate drops the cached pool so the next read reloads it.
	Invalidate(ctx context.Context, categoryID int64) error
}

// SessionRepository tracks attempts that were started but not submitted.
type SessionRepository interface {
	Begin(ctx context.Context, session domain.AttemptSession) error
	Get(ctx context.Context, userID, categoryID int64) (domain.AttemptSession, bool, error)
	End(ctx context.Context, userID, categoryID int64) error
}

// LeaderboardRepository keeps users ranked by balance.
type LeaderboardRepository interface {
	Record(ctx context.Context, userID int64, name string, points int64) error
	Top(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error)
}

// FileStorage persists uploaded files and returns their public path.
type FileStorage interface {
	Save(ctx context.Context, name string, data []byte) (string, error)
}
