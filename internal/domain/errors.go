package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Callers classify failures with errors.Is against these.
var (
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrInsufficientBalance = errors.New("insufficient points")
	ErrInvalidState        = errors.New("invalid state")
	ErrUnauthenticated     = errors.New("unauthenticated")
	ErrForbidden           = errors.New("forbidden")
)

var (
	// ErrUserNotFound is returned when the resolved identity has no user row.
	ErrUserNotFound = fmt.Errorf("user %w", ErrNotFound)
	// ErrCategoryNotFound indicates the quiz category is missing or inactive.
	ErrCategoryNotFound = fmt.Errorf("category %w", ErrNotFound)
	// ErrQuestionNotFound indicates a submitted question ID is invalid.
	ErrQuestionNotFound = fmt.Errorf("question %w", ErrNotFound)
	ErrRewardNotFound   = fmt.Errorf("reward %w", ErrNotFound)
	ErrPostNotFound     = fmt.Errorf("post %w", ErrNotFound)
	ErrAttemptNotFound  = fmt.Errorf("attempt %w", ErrNotFound)

	// ErrAttemptExists is returned for any second attempt on a category.
	ErrAttemptExists = fmt.Errorf("quiz already taken: %w", ErrConflict)
	ErrEmailTaken    = fmt.Errorf("email already registered: %w", ErrConflict)

	ErrNoQuestions        = fmt.Errorf("no questions available for this category: %w", ErrInvalidArgument)
	ErrEmptySubmission    = fmt.Errorf("submission has no answers: %w", ErrInvalidArgument)
	ErrDuplicateAnswer    = fmt.Errorf("question answered twice: %w", ErrInvalidArgument)
	ErrNonPositiveAmount  = fmt.Errorf("points amount must be positive: %w", ErrInvalidArgument)
	ErrRewardUnavailable  = fmt.Errorf("reward is not available: %w", ErrInvalidState)
	ErrInvalidCredentials = fmt.Errorf("invalid email or password: %w", ErrUnauthenticated)
)
