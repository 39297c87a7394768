package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// User is a registered player and the owner of a points balance.
type User struct {
	ID           int64        `json:"id"`
	Name         string       `json:"name"`
	Email        string       `json:"email"`
	PasswordHash string       `json:"-"`
	Bio          string       `json:"bio,omitempty"`
	Location     string       `json:"location,omitempty"`
	Website      string       `json:"website,omitempty"`
	Avatar       string       `json:"avatar,omitempty"`
	Role         Role         `json:"role"`
	Permissions  []Permission `json:"permissions,omitempty"`
	Level        int          `json:"level"`
	Points       int64        `json:"points"`
	Provider     AuthProvider `json:"provider"`
	Status       UserStatus   `json:"status"`
	LastActive   time.Time    `json:"lastActive"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// ProfileUpdate carries optional profile edits; nil fields are left untouched.
type ProfileUpdate struct {
	Name     *string `json:"name"`
	Bio      *string `json:"bio"`
	Location *string `json:"location"`
	Website  *string `json:"website"`
}

// HasPermission reports whether the user was granted p.
func (u User) HasPermission(p Permission) bool {
	for _, granted := range u.Permissions {
		if granted == p {
			return true
		}
	}
	return false
}

// QuizCategory is a quiz topic. QuestionCount is filled by listings.
type QuizCategory struct {
	ID            int64      `json:"id"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Icon          string     `json:"icon"`
	Difficulty    Difficulty `json:"difficulty"`
	Color         string     `json:"color,omitempty"`
	Subcategories []string   `json:"subcategories,omitempty"`
	Moderators    []string   `json:"moderators,omitempty"`
	Rules         []string   `json:"rules,omitempty"`
	Active        bool       `json:"active"`
	QuestionCount int        `json:"questionCount"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// CategoryFilter narrows category listings.
type CategoryFilter struct {
	Search     string
	Difficulty Difficulty
}

// Question models an MCQ question; CorrectAnswer is a 0-based index into Options.
type Question struct {
	ID            int64      `json:"id"`
	CategoryID    int64      `json:"categoryId"`
	Prompt        string     `json:"prompt"`
	Options       []string   `json:"options"`
	CorrectAnswer int        `json:"correctAnswer"`
	Explanation   string     `json:"explanation,omitempty"`
	Points        int        `json:"points"`
	TimeLimit     int        `json:"timeLimit"`
	Difficulty    Difficulty `json:"difficulty"`
	Tags          []string   `json:"tags,omitempty"`
	Active        bool       `json:"active"`
	TimesUsed     int64      `json:"timesUsed"`
}

const (
	DefaultQuestionPoints    = 10
	DefaultQuestionTimeLimit = 30
)

// Public strips the correct answer so the question can be served to players.
func (q Question) Public() PublicQuestion {
	return PublicQuestion{
		ID:        q.ID,
		Prompt:    q.Prompt,
		Options:   q.Options,
		TimeLimit: q.TimeLimit,
		Points:    q.Points,
	}
}

// PublicQuestion is what a player sees while taking a quiz.
type PublicQuestion struct {
	ID        int64    `json:"id"`
	Prompt    string   `json:"prompt"`
	Options   []string `json:"options"`
	TimeLimit int      `json:"timeLimit"`
	Points    int      `json:"points"`
}

// QuestionPool is a category together with its active questions.
type QuestionPool struct {
	Category  QuizCategory `json:"category"`
	Questions []Question   `json:"questions"`
}

// AnswerInput is one submitted answer.
type AnswerInput struct {
	QuestionID     int64 `json:"questionId" validate:"required,gt=0"`
	SelectedOption int   `json:"selectedAnswer" validate:"gte=0"`
	TimeSpent      int   `json:"timeSpent" validate:"gte=0"`
}

// Submission is a complete quiz submission for one category.
type Submission struct {
	Answers        []AnswerInput `json:"answers" validate:"required,min=1,dive"`
	StartedAt      time.Time     `json:"startedAt"`
	CompletedAt    time.Time     `json:"completedAt"`
	TotalTimeSpent int           `json:"totalTimeSpent" validate:"gte=0"`
}

// QuizAttempt is a user's single graded pass through a category.
type QuizAttempt struct {
	ID             int64     `json:"id"`
	UserID         int64     `json:"userId"`
	CategoryID     int64     `json:"categoryId"`
	CategoryTitle  string    `json:"categoryTitle,omitempty"`
	Score          int       `json:"score"`
	CorrectAnswers int       `json:"correctAnswers"`
	TotalQuestions int       `json:"totalQuestions"`
	TimeSpent      int       `json:"timeSpent"`
	BasePoints     int64     `json:"basePoints"`
	TimeBonus      int64     `json:"timeBonus"`
	PerfectBonus   int64     `json:"perfectBonus"`
	TotalPoints    int64     `json:"totalPoints"`
	StartedAt      time.Time `json:"startedAt"`
	CompletedAt    time.Time `json:"completedAt"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Accuracy is the share of correct answers as a percentage.
func (a QuizAttempt) Accuracy() float64 {
	if a.TotalQuestions == 0 {
		return 0
	}
	return float64(a.CorrectAnswers) / float64(a.TotalQuestions) * 100
}

// QuizAnswer belongs to exactly one attempt.
type QuizAnswer struct {
	ID             int64 `json:"id"`
	AttemptID      int64 `json:"attemptId"`
	QuestionID     int64 `json:"questionId"`
	SelectedOption int   `json:"selectedAnswer"`
	Correct        bool  `json:"correct"`
	TimeSpent      int   `json:"timeSpent"`
	Points         int   `json:"points"`
}

// AttemptStats aggregates a user's attempts for the profile view.
type AttemptStats struct {
	TotalQuizzes   int64
	AverageScore   float64
	TotalTimeSpent int64
}

// AttemptSession marks an attempt that was started but not yet submitted.
type AttemptSession struct {
	UserID      int64     `json:"userId"`
	CategoryID  int64     `json:"categoryId"`
	QuestionIDs []int64   `json:"questionIds"`
	StartedAt   time.Time `json:"startedAt"`
}

// PointsTransaction is an immutable ledger entry. Points is a magnitude; Type gives the sign.
type PointsTransaction struct {
	ID          int64           `json:"id"`
	UserID      int64           `json:"userId"`
	Type        TransactionType `json:"type"`
	Points      int64           `json:"points"`
	Source      string          `json:"source"`
	Description string          `json:"description"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// Signed returns the transaction's effect on the balance.
func (t PointsTransaction) Signed() int64 {
	if t.Type == TransactionRedeemed {
		return -t.Points
	}
	return t.Points
}

// PointsTotals sums a user's ledger by direction.
type PointsTotals struct {
	Earned   int64
	Redeemed int64
}

// PointsSummary is the dashboard view of a user's balance.
type PointsSummary struct {
	Balance         int64               `json:"balance"`
	TotalEarned     int64               `json:"totalEarned"`
	TotalRedeemed   int64               `json:"totalRedeemed"`
	Level           int                 `json:"level"`
	NextLevelPoints int64               `json:"nextLevelPoints"`
	Recent          []PointsTransaction `json:"recent"`
}

// CryptoReward is a catalog entry redeemable for points.
type CryptoReward struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Icon        string          `json:"icon"`
	MinPoints   int64           `json:"minPoints"`
	Value       decimal.Decimal `json:"value"`
	Color       string          `json:"color,omitempty"`
	Available   bool            `json:"available"`
	Description string          `json:"description,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// RewardOffer is a reward annotated for a specific user.
type RewardOffer struct {
	CryptoReward
	CanRedeem bool `json:"canRedeem"`
}

// RewardRedemption snapshots the reward terms at redemption time.
type RewardRedemption struct {
	ID                int64            `json:"id"`
	UserID            int64            `json:"userId"`
	RewardID          int64            `json:"rewardId"`
	RewardName        string           `json:"rewardName"`
	PointsUsed        int64            `json:"pointsUsed"`
	Value             decimal.Decimal  `json:"value"`
	Status            RedemptionStatus `json:"status"`
	WalletAddress     string           `json:"walletAddress"`
	TransactionID     string           `json:"transactionId,omitempty"`
	EstimatedDelivery time.Time        `json:"estimatedDelivery"`
	CompletedAt       *time.Time       `json:"completedAt,omitempty"`
	CreatedAt         time.Time        `json:"createdAt"`
}

// CommunityPost is a forum post inside a category.
type CommunityPost struct {
	ID         int64     `json:"id"`
	AuthorID   int64     `json:"authorId"`
	AuthorName string    `json:"authorName,omitempty"`
	CategoryID int64     `json:"categoryId"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	Likes      int64     `json:"likes"`
	Replies    int64     `json:"replies"`
	Views      int64     `json:"views"`
	Pinned     bool      `json:"pinned"`
	Tags       []string  `json:"tags"`
	CreatedAt  time.Time `json:"createdAt"`
}

// CategoryPostCount pairs a category with its number of posts.
type CategoryPostCount struct {
	CategoryID int64  `json:"categoryId"`
	Title      string `json:"title"`
	PostCount  int64  `json:"postCount"`
}

// CommunityStats summarises forum activity.
type CommunityStats struct {
	TotalPosts    int64               `json:"totalPosts"`
	ActiveUsers   int64               `json:"activeUsers"`
	TopCategories []CategoryPostCount `json:"topCategories"`
}

// LeaderboardEntry is a snapshot-friendly view of a user's standing.
type LeaderboardEntry struct {
	UserID int64  `json:"userId"`
	Name   string `json:"name"`
	Points int64  `json:"points"`
	Rank   int64  `json:"rank"`
}

// Leaderboard captures the ordered top of the points table.
type Leaderboard struct {
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updatedAt"`
}
