package domain

import (
	"fmt"
	"strings"
)

type Role string

const (
	RoleUser      Role = "USER"
	RoleModerator Role = "MODERATOR"
	RoleAdmin     Role = "ADMIN"
)

type Permission string

const (
	PermissionCreateQuiz    Permission = "CREATE_QUIZ"
	PermissionModeratePosts Permission = "MODERATE_POSTS"
	PermissionManageRewards Permission = "MANAGE_REWARDS"
	PermissionManageUsers   Permission = "MANAGE_USERS"
	PermissionViewAnalytics Permission = "VIEW_ANALYTICS"
)

// AllPermissions is the grant set of an administrator.
func AllPermissions() []Permission {
	return []Permission{
		PermissionCreateQuiz,
		PermissionModeratePosts,
		PermissionManageRewards,
		PermissionManageUsers,
		PermissionViewAnalytics,
	}
}

type AuthProvider string

const (
	ProviderEmail  AuthProvider = "EMAIL"
	ProviderGoogle AuthProvider = "GOOGLE"
)

type UserStatus string

const (
	UserActive    UserStatus = "ACTIVE"
	UserSuspended UserStatus = "SUSPENDED"
)

// Difficulty is the tier of a category or question.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "EASY"
	DifficultyMedium Difficulty = "MEDIUM"
	DifficultyHard   Difficulty = "HARD"
)

func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// ParseDifficulty accepts any letter case; an empty string yields the zero value.
func ParseDifficulty(raw string) (Difficulty, error) {
	if raw == "" {
		return "", nil
	}
	d := Difficulty(strings.ToUpper(raw))
	if !d.Valid() {
		return "", fmt.Errorf("difficulty %q: %w", raw, ErrInvalidArgument)
	}
	return d, nil
}

// TransactionType gives the direction of a ledger entry.
type TransactionType string

const (
	TransactionEarned   TransactionType = "EARNED"
	TransactionRedeemed TransactionType = "REDEEMED"
	TransactionBonus    TransactionType = "BONUS"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TransactionEarned, TransactionRedeemed, TransactionBonus:
		return true
	}
	return false
}

// ParseTransactionType accepts any letter case; an empty string yields the zero value.
func ParseTransactionType(raw string) (TransactionType, error) {
	if raw == "" {
		return "", nil
	}
	t := TransactionType(strings.ToUpper(raw))
	if !t.Valid() {
		return "", fmt.Errorf("transaction type %q: %w", raw, ErrInvalidArgument)
	}
	return t, nil
}

// RedemptionStatus is driven by off-system settlement; only PENDING is set here.
type RedemptionStatus string

const (
	RedemptionPending    RedemptionStatus = "PENDING"
	RedemptionProcessing RedemptionStatus = "PROCESSING"
	RedemptionCompleted  RedemptionStatus = "COMPLETED"
	RedemptionFailed     RedemptionStatus = "FAILED"
)

// AttemptState is where a (user, category) pair sits in the one-shot attempt lifecycle.
type AttemptState string

const (
	AttemptNotStarted AttemptState = "NOT_STARTED"
	AttemptInProgress AttemptState = "IN_PROGRESS"
	AttemptSubmitted  AttemptState = "SUBMITTED"
)

// PostSort orders community post listings.
type PostSort string

const (
	SortRecent  PostSort = "recent"
	SortPopular PostSort = "popular"
	SortReplies PostSort = "replies"
)

// ParsePostSort falls back to SortRecent for unknown values.
func ParsePostSort(raw string) PostSort {
	switch PostSort(strings.ToLower(raw)) {
	case SortPopular:
		return SortPopular
	case SortReplies:
		return SortReplies
	}
	return SortRecent
}
