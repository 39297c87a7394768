package postgres

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"

	"mindquest-service/internal/domain"
)

type userRow struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID           int64     `bun:"id,pk,autoincrement"`
	Name         string    `bun:"name,notnull"`
	Email        string    `bun:"email,notnull"`
	PasswordHash string    `bun:"password_hash,notnull"`
	Bio          string    `bun:"bio,notnull"`
	Location     string    `bun:"location,notnull"`
	Website      string    `bun:"website,notnull"`
	Avatar       string    `bun:"avatar,notnull"`
	Role         string    `bun:"role,notnull"`
	Permissions  []string  `bun:"permissions,array,nullzero"`
	Level        int       `bun:"level,notnull"`
	Points       int64     `bun:"points,notnull"`
	Provider     string    `bun:"provider,notnull"`
	Status       string    `bun:"status,notnull"`
	LastActive   time.Time `bun:"last_active,nullzero"`
	CreatedAt    time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt    time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func newUserRow(u domain.User) *userRow {
	perms := make([]string, len(u.Permissions))
	for i, p := range u.Permissions {
		perms[i] = string(p)
	}
	return &userRow{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Bio:          u.Bio,
		Location:     u.Location,
		Website:      u.Website,
		Avatar:       u.Avatar,
		Role:         string(u.Role),
		Permissions:  perms,
		Level:        u.Level,
		Points:       u.Points,
		Provider:     string(u.Provider),
		Status:       string(u.Status),
		LastActive:   u.LastActive,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func (r *userRow) domain() domain.User {
	var perms []domain.Permission
	for _, p := range r.Permissions {
		perms = append(perms, domain.Permission(p))
	}
	return domain.User{
		ID:           r.ID,
		Name:         r.Name,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		Bio:          r.Bio,
		Location:     r.Location,
		Website:      r.Website,
		Avatar:       r.Avatar,
		Role:         domain.Role(r.Role),
		Permissions:  perms,
		Level:        r.Level,
		Points:       r.Points,
		Provider:     domain.AuthProvider(r.Provider),
		Status:       domain.UserStatus(r.Status),
		LastActive:   r.LastActive,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

type categoryRow struct {
	bun.BaseModel `bun:"table:quiz_categories,alias:c"`

	ID            int64     `bun:"id,pk,autoincrement"`
	Title         string    `bun:"title,notnull"`
	Description   string    `bun:"description,notnull"`
	Icon          string    `bun:"icon,notnull"`
	Difficulty    string    `bun:"difficulty,notnull"`
	Color         string    `bun:"color,notnull"`
	Subcategories []string  `bun:"subcategories,array,nullzero"`
	Moderators    []string  `bun:"moderators,array,nullzero"`
	Rules         []string  `bun:"rules,array,nullzero"`
	Active        bool      `bun:"active,notnull"`
	QuestionCount int       `bun:"question_count,scanonly"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func newCategoryRow(c domain.QuizCategory) *categoryRow {
	return &categoryRow{
		ID:            c.ID,
		Title:         c.Title,
		Description:   c.Description,
		Icon:          c.Icon,
		Difficulty:    string(c.Difficulty),
		Color:         c.Color,
		Subcategories: c.Subcategories,
		Moderators:    c.Moderators,
		Rules:         c.Rules,
		Active:        c.Active,
		CreatedAt:     c.CreatedAt,
	}
}

func (r *categoryRow) domain() domain.QuizCategory {
	return domain.QuizCategory{
		ID:            r.ID,
		Title:         r.Title,
		Description:   r.Description,
		Icon:          r.Icon,
		Difficulty:    domain.Difficulty(r.Difficulty),
		Color:         r.Color,
		Subcategories: r.Subcategories,
		Moderators:    r.Moderators,
		Rules:         r.Rules,
		Active:        r.Active,
		QuestionCount: r.QuestionCount,
		CreatedAt:     r.CreatedAt,
	}
}

type questionRow struct {
	bun.BaseModel `bun:"table:questions,alias:q"`

	ID            int64    `bun:"id,pk,autoincrement"`
	CategoryID    int64    `bun:"category_id,notnull"`
	Prompt        string   `bun:"prompt,notnull"`
	Options       []string `bun:"options,array"`
	CorrectAnswer int      `bun:"correct_answer,notnull"`
	Explanation   string   `bun:"explanation,notnull"`
	Points        int      `bun:"points,notnull"`
	TimeLimit     int      `bun:"time_limit,notnull"`
	Difficulty    string   `bun:"difficulty,notnull"`
	Tags          []string `bun:"tags,array,nullzero"`
	Active        bool     `bun:"active,notnull"`
	TimesUsed     int64    `bun:"times_used,notnull"`
}

func newQuestionRow(q domain.Question) *questionRow {
	return &questionRow{
		ID:            q.ID,
		CategoryID:    q.CategoryID,
		Prompt:        q.Prompt,
		Options:       q.Options,
		CorrectAnswer: q.CorrectAnswer,
		Explanation:   q.Explanation,
		Points:        q.Points,
		TimeLimit:     q.TimeLimit,
		Difficulty:    string(q.Difficulty),
		Tags:          q.Tags,
		Active:        q.Active,
		TimesUsed:     q.TimesUsed,
	}
}

func (r *questionRow) domain() domain.Question {
	return domain.Question{
		ID:            r.ID,
		CategoryID:    r.CategoryID,
		Prompt:        r.Prompt,
		Options:       r.Options,
		CorrectAnswer: r.CorrectAnswer,
		Explanation:   r.Explanation,
		Points:        r.Points,
		TimeLimit:     r.TimeLimit,
		Difficulty:    domain.Difficulty(r.Difficulty),
		Tags:          r.Tags,
		Active:        r.Active,
		TimesUsed:     r.TimesUsed,
	}
}

type attemptRow struct {
	bun.BaseModel `bun:"table:quiz_attempts,alias:a"`

	ID             int64     `bun:"id,pk,autoincrement"`
	UserID         int64     `bun:"user_id,notnull"`
	CategoryID     int64     `bun:"category_id,notnull"`
	CategoryTitle  string    `bun:"category_title,scanonly"`
	Score          int       `bun:"score,notnull"`
	CorrectAnswers int       `bun:"correct_answers,notnull"`
	TotalQuestions int       `bun:"total_questions,notnull"`
	TimeSpent      int       `bun:"time_spent,notnull"`
	BasePoints     int64     `bun:"base_points,notnull"`
	TimeBonus      int64     `bun:"time_bonus,notnull"`
	PerfectBonus   int64     `bun:"perfect_bonus,notnull"`
	TotalPoints    int64     `bun:"total_points,notnull"`
	StartedAt      time.Time `bun:"started_at,notnull"`
	CompletedAt    time.Time `bun:"completed_at,notnull"`
	CreatedAt      time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func newAttemptRow(a domain.QuizAttempt) *attemptRow {
	return &attemptRow{
		ID:             a.ID,
		UserID:         a.UserID,
		CategoryID:     a.CategoryID,
		Score:          a.Score,
		CorrectAnswers: a.CorrectAnswers,
		TotalQuestions: a.TotalQuestions,
		TimeSpent:      a.TimeSpent,
		BasePoints:     a.BasePoints,
		TimeBonus:      a.TimeBonus,
		PerfectBonus:   a.PerfectBonus,
		TotalPoints:    a.TotalPoints,
		StartedAt:      a.StartedAt,
		CompletedAt:    a.CompletedAt,
		CreatedAt:      a.CreatedAt,
	}
}

func (r *attemptRow) domain() domain.QuizAttempt {
	return domain.QuizAttempt{
		ID:             r.ID,
		UserID:         r.UserID,
		CategoryID:     r.CategoryID,
		CategoryTitle:  r.CategoryTitle,
		Score:          r.Score,
		CorrectAnswers: r.CorrectAnswers,
		TotalQuestions: r.TotalQuestions,
		TimeSpent:      r.TimeSpent,
		BasePoints:     r.BasePoints,
		TimeBonus:      r.TimeBonus,
		PerfectBonus:   r.PerfectBonus,
		TotalPoints:    r.TotalPoints,
		StartedAt:      r.StartedAt,
		CompletedAt:    r.CompletedAt,
		CreatedAt:      r.CreatedAt,
	}
}

type answerRow struct {
	bun.BaseModel `bun:"table:quiz_answers,alias:qa"`

	ID             int64 `bun:"id,pk,autoincrement"`
	AttemptID      int64 `bun:"attempt_id,notnull"`
	QuestionID     int64 `bun:"question_id,notnull"`
	SelectedOption int   `bun:"selected_option,notnull"`
	Correct        bool  `bun:"correct,notnull"`
	TimeSpent      int   `bun:"time_spent,notnull"`
	Points         int   `bun:"points,notnull"`
}

func (r *answerRow) domain() domain.QuizAnswer {
	return domain.QuizAnswer{
		ID:             r.ID,
		AttemptID:      r.AttemptID,
		QuestionID:     r.QuestionID,
		SelectedOption: r.SelectedOption,
		Correct:        r.Correct,
		TimeSpent:      r.TimeSpent,
		Points:         r.Points,
	}
}

type transactionRow struct {
	bun.BaseModel `bun:"table:points_transactions,alias:pt"`

	ID          int64     `bun:"id,pk,autoincrement"`
	UserID      int64     `bun:"user_id,notnull"`
	Type        string    `bun:"type,notnull"`
	Points      int64     `bun:"points,notnull"`
	Source      string    `bun:"source,notnull"`
	Description string    `bun:"description,notnull"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func (r *transactionRow) domain() domain.PointsTransaction {
	return domain.PointsTransaction{
		ID:          r.ID,
		UserID:      r.UserID,
		Type:        domain.TransactionType(r.Type),
		Points:      r.Points,
		Source:      r.Source,
		Description: r.Description,
		CreatedAt:   r.CreatedAt,
	}
}

type rewardRow struct {
	bun.BaseModel `bun:"table:crypto_rewards,alias:r"`

	ID          int64           `bun:"id,pk,autoincrement"`
	Name        string          `bun:"name,notnull"`
	Icon        string          `bun:"icon,notnull"`
	MinPoints   int64           `bun:"min_points,notnull"`
	Value       decimal.Decimal `bun:"value,type:numeric(20,8),notnull"`
	Color       string          `bun:"color,notnull"`
	Available   bool            `bun:"available,notnull"`
	Description string          `bun:"description,notnull"`
	CreatedAt   time.Time       `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func (r *rewardRow) domain() domain.CryptoReward {
	return domain.CryptoReward{
		ID:          r.ID,
		Name:        r.Name,
		Icon:        r.Icon,
		MinPoints:   r.MinPoints,
		Value:       r.Value,
		Color:       r.Color,
		Available:   r.Available,
		Description: r.Description,
		CreatedAt:   r.CreatedAt,
	}
}

type redemptionRow struct {
	bun.BaseModel `bun:"table:reward_redemptions,alias:rr"`

	ID                int64           `bun:"id,pk,autoincrement"`
	UserID            int64           `bun:"user_id,notnull"`
	RewardID          int64           `bun:"reward_id,notnull"`
	RewardName        string          `bun:"reward_name,notnull"`
	PointsUsed        int64           `bun:"points_used,notnull"`
	Value             decimal.Decimal `bun:"value,type:numeric(20,8),notnull"`
	Status            string          `bun:"status,notnull"`
	WalletAddress     string          `bun:"wallet_address,notnull"`
	TransactionID     string          `bun:"transaction_id,notnull"`
	EstimatedDelivery time.Time       `bun:"estimated_delivery,notnull"`
	CompletedAt       *time.Time      `bun:"completed_at"`
	CreatedAt         time.Time       `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func (r *redemptionRow) domain() domain.RewardRedemption {
	return domain.RewardRedemption{
		ID:                r.ID,
		UserID:            r.UserID,
		RewardID:          r.RewardID,
		RewardName:        r.RewardName,
		PointsUsed:        r.PointsUsed,
		Value:             r.Value,
		Status:            domain.RedemptionStatus(r.Status),
		WalletAddress:     r.WalletAddress,
		TransactionID:     r.TransactionID,
		EstimatedDelivery: r.EstimatedDelivery,
		CompletedAt:       r.CompletedAt,
		CreatedAt:         r.CreatedAt,
	}
}

type postRow struct {
	bun.BaseModel `bun:"table:community_posts,alias:p"`

	ID         int64     `bun:"id,pk,autoincrement"`
	AuthorID   int64     `bun:"author_id,notnull"`
	AuthorName string    `bun:"author_name,scanonly"`
	CategoryID int64     `bun:"category_id,notnull"`
	Title      string    `bun:"title,notnull"`
	Content    string    `bun:"content,notnull"`
	Likes      int64     `bun:"likes,notnull"`
	Replies    int64     `bun:"replies,notnull"`
	Views      int64     `bun:"views,notnull"`
	Pinned     bool      `bun:"pinned,notnull"`
	Tags       []string  `bun:"tags,array,nullzero"`
	CreatedAt  time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func (r *postRow) domain() domain.CommunityPost {
	tags := r.Tags
	if tags == nil {
		tags = []string{}
	}
	return domain.CommunityPost{
		ID:         r.ID,
		AuthorID:   r.AuthorID,
		AuthorName: r.AuthorName,
		CategoryID: r.CategoryID,
		Title:      r.Title,
		Content:    r.Content,
		Likes:      r.Likes,
		Replies:    r.Replies,
		Views:      r.Views,
		Pinned:     r.Pinned,
		Tags:       tags,
		CreatedAt:  r.CreatedAt,
	}
}

func mapRows[R any, T any](rows []R, fn func(*R) T) []T {
	out := make([]T, 0, len(rows))
	for i := range rows {
		out = append(out, fn(&rows[i]))
	}
	return out
}
