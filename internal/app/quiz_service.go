package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"mindquest-service/internal/domain"
)

const (
	DefaultQuestionsPerAttempt = 10
	levelUpBonus               = 100

	SourceQuizCompletion = "quiz_completion"
	SourceLevelUp        = "level_up"
)

// QuizService contains the quiz attempt use cases.
type QuizService struct {
	store    Store
	pools    PoolRepository
	sessions SessionRepository
	ledger   *Ledger
	board    *LeaderboardFeed
	log      *slog.Logger

	now        func() time.Time
	perAttempt int

	mu  sync.Mutex
	rnd *rand.Rand
}

// QuizOption customises a QuizService.
type QuizOption func(*QuizService)

func WithQuestionsPerAttempt(n int) QuizOption {
	return func(s *QuizService) {
		if n > 0 {
			s.perAttempt = n
		}
	}
}

// WithQuizClock is test-only for deterministic timestamps.
func WithQuizClock(now func() time.Time) QuizOption {
	return func(s *QuizService) { s.now = now }
}

// WithRandSource makes question selection reproducible.
func WithRandSource(src rand.Source) QuizOption {
	return func(s *QuizService) { s.rnd = rand.New(src) }
}

func NewQuizService(store Store, pools PoolRepository, sessions SessionRepository, ledger *Ledger, board *LeaderboardFeed, log *slog.Logger, opts ...QuizOption) *QuizService {
	s := &QuizService{
		store:      store,
		pools:      pools,
		sessions:   sessions,
		ledger:     ledger,
		board:      board,
		log:        log,
		now:        time.Now,
		perAttempt: DefaultQuestionsPerAttempt,
		rnd:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AttemptStart is what a player receives when opening a quiz.
type AttemptStart struct {
	Category  domain.QuizCategory     `json:"category"`
	Questions []domain.PublicQuestion `json:"questions"`
	StartedAt time.Time               `json:"startedAt"`
}

// QuizResult is the outcome of a submitted attempt.
type QuizResult struct {
	Attempt  domain.QuizAttempt  `json:"attempt"`
	Answers  []domain.QuizAnswer `json:"answers"`
	Accuracy float64             `json:"accuracy"`
	Balance  int64               `json:"balance"`
	Level    int                 `json:"level"`
	LevelUp  bool                `json:"levelUp"`
}

// Categories lists active categories.
func (s *QuizService) Categories(ctx context.Context, filter domain.CategoryFilter, page domain.PageRequest) (domain.Page[domain.QuizCategory], error) {
	return s.store.ListCategories(ctx, filter, page.Normalize())
}

// StartAttempt serves up to perAttempt random questions of a category the
// user has not attempted yet and marks the attempt as in progress.
func (s *QuizService) StartAttempt(ctx context.Context, userID, categoryID int64) (AttemptStart, error) {
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return AttemptStart{}, err
	}
	if err := s.ensureNotAttempted(ctx, s.store, userID, categoryID); err != nil {
		return AttemptStart{}, err
	}

	pool, err := s.pools.GetPool(ctx, categoryID)
	if err != nil {
		return AttemptStart{}, err
	}
	if !pool.Category.Active {
		return AttemptStart{}, domain.ErrCategoryNotFound
	}
	if len(pool.Questions) == 0 {
		return AttemptStart{}, domain.ErrNoQuestions
	}

	picked := s.pick(pool.Questions)
	session := domain.AttemptSession{
		UserID:      userID,
		CategoryID:  categoryID,
		QuestionIDs: make([]int64, 0, len(picked)),
		StartedAt:   s.now(),
	}
	public := make([]domain.PublicQuestion, 0, len(picked))
	for _, q := range picked {
		session.QuestionIDs = append(session.QuestionIDs, q.ID)
		public = append(public, q.Public())
	}
	if err := s.sessions.Begin(ctx, session); err != nil {
		return AttemptStart{}, fmt.Errorf("begin attempt session: %w", err)
	}

	s.log.Debug("attempt started", "user", userID, "category", categoryID, "questions", len(public))
	return AttemptStart{Category: pool.Category, Questions: public, StartedAt: session.StartedAt}, nil
}

// SubmitAttempt grades and stores the user's only attempt for a category,
// credits the points and applies a level-up bonus, all in one transaction.
func (s *QuizService) SubmitAttempt(ctx context.Context, userID, categoryID int64, sub domain.Submission) (QuizResult, error) {
	if len(sub.Answers) == 0 {
		return QuizResult{}, domain.ErrEmptySubmission
	}
	category, err := s.store.GetCategory(ctx, categoryID)
	if err != nil {
		return QuizResult{}, err
	}
	if !category.Active {
		return QuizResult{}, domain.ErrCategoryNotFound
	}

	now := s.now()
	completedAt := sub.CompletedAt
	if completedAt.IsZero() {
		completedAt = now
	}
	startedAt := sub.StartedAt
	if startedAt.IsZero() {
		session, ok, err := s.sessions.Get(ctx, userID, categoryID)
		if err != nil {
			s.log.Warn("attempt session lookup failed", "user", userID, "category", categoryID, "err", err)
		}
		if ok {
			startedAt = session.StartedAt
		} else {
			startedAt = completedAt
		}
	}

	var (
		result   QuizResult
		user     domain.User
		answered []int64
	)
	err = s.store.InTx(ctx, func(ctx context.Context, q Queries) error {
		var err error
		if user, err = q.LockUser(ctx, userID); err != nil {
			return err
		}
		if err := s.ensureNotAttempted(ctx, q, userID, categoryID); err != nil {
			return err
		}

		questions, err := q.GetQuestions(ctx, distinctQuestionIDs(sub.Answers))
		if err != nil {
			return fmt.Errorf("load questions: %w", err)
		}
		inCategory := questions[:0]
		for _, question := range questions {
			if question.CategoryID == categoryID {
				inCategory = append(inCategory, question)
			}
		}

		scored, err := Score(inCategory, sub.Answers, sub.TotalTimeSpent)
		if err != nil {
			answered = scored.Answered
			return err
		}
		if err := q.IncrementQuestionUsage(ctx, scored.Answered); err != nil {
			return fmt.Errorf("count question usage: %w", err)
		}

		attempt := domain.QuizAttempt{
			UserID:         userID,
			CategoryID:     categoryID,
			CategoryTitle:  category.Title,
			Score:          scored.Score,
			CorrectAnswers: scored.CorrectAnswers,
			TotalQuestions: scored.TotalQuestions,
			TimeSpent:      sub.TotalTimeSpent,
			BasePoints:     scored.BasePoints,
			TimeBonus:      scored.TimeBonus,
			PerfectBonus:   scored.PerfectBonus,
			TotalPoints:    scored.TotalPoints,
			StartedAt:      startedAt,
			CompletedAt:    completedAt,
			CreatedAt:      now,
		}
		if err := q.InsertAttempt(ctx, &attempt, scored.Answers); err != nil {
			return err
		}

		if attempt.TotalPoints > 0 {
			user, err = s.ledger.Award(ctx, q, userID, attempt.TotalPoints, SourceQuizCompletion, "Completed quiz: "+category.Title)
			if err != nil {
				return err
			}
		}

		levelUp := false
		if level := domain.Level(user.Points); level > user.Level {
			if err := q.UpdateBalance(ctx, userID, user.Points, level); err != nil {
				return fmt.Errorf("update level: %w", err)
			}
			user, err = s.ledger.Bonus(ctx, q, userID, levelUpBonus, SourceLevelUp,
				fmt.Sprintf("Level up bonus - reached level %d", level))
			if err != nil {
				return err
			}
			levelUp = true
		}
		if err := q.TouchUser(ctx, userID, now); err != nil {
			return err
		}

		result = QuizResult{
			Attempt:  attempt,
			Answers:  scored.Answers,
			Accuracy: attempt.Accuracy(),
			Balance:  user.Points,
			Level:    user.Level,
			LevelUp:  levelUp,
		}
		return nil
	})
	if err != nil {
		if len(answered) > 0 {
			// the rolled-back transaction took the usage counters with it
			if uerr := s.store.IncrementQuestionUsage(ctx, answered); uerr != nil {
				s.log.Error("count question usage", "user", userID, "category", categoryID, "err", uerr)
			}
		}
		return QuizResult{}, err
	}

	if err := s.sessions.End(ctx, userID, categoryID); err != nil {
		s.log.Warn("end attempt session", "user", userID, "category", categoryID, "err", err)
	}
	s.board.Publish(ctx, user)
	s.log.Info("attempt submitted",
		"user", userID, "category", categoryID,
		"score", result.Attempt.Score, "points", result.Attempt.TotalPoints, "level_up", result.LevelUp)
	return result, nil
}

// RefreshPool drops the cached question pool of a category, so edits to its
// questions are served to the next attempt.
func (s *QuizService) RefreshPool(ctx context.Context, categoryID int64) error {
	if _, err := s.store.GetCategory(ctx, categoryID); err != nil {
		return err
	}
	if err := s.pools.Invalidate(ctx, categoryID); err != nil {
		return fmt.Errorf("invalidate pool %d: %w", categoryID, err)
	}
	s.log.Info("question pool refreshed", "category", categoryID)
	return nil
}

// AttemptState reports where the pair sits in the one-shot lifecycle.
func (s *QuizService) AttemptState(ctx context.Context, userID, categoryID int64) (domain.AttemptState, error) {
	if _, err := s.store.GetCategory(ctx, categoryID); err != nil {
		return "", err
	}
	_, err := s.store.FindAttempt(ctx, userID, categoryID)
	switch {
	case err == nil:
		return domain.AttemptSubmitted, nil
	case !errors.Is(err, domain.ErrAttemptNotFound):
		return "", err
	}
	_, ok, err := s.sessions.Get(ctx, userID, categoryID)
	if err != nil {
		return "", err
	}
	if ok {
		return domain.AttemptInProgress, nil
	}
	return domain.AttemptNotStarted, nil
}

// History lists a user's attempts, newest first.
func (s *QuizService) History(ctx context.Context, userID int64, categoryID *int64, page domain.PageRequest) (domain.Page[domain.QuizAttempt], error) {
	return s.store.ListAttempts(ctx, userID, categoryID, page.Normalize())
}

func (s *QuizService) ensureNotAttempted(ctx context.Context, q Queries, userID, categoryID int64) error {
	_, err := q.FindAttempt(ctx, userID, categoryID)
	if err == nil {
		return domain.ErrAttemptExists
	}
	if errors.Is(err, domain.ErrAttemptNotFound) {
		return nil
	}
	return err
}

// pick draws up to perAttempt questions without replacement.
func (s *QuizService) pick(pool []domain.Question) []domain.Question {
	n := s.perAttempt
	if n > len(pool) {
		n = len(pool)
	}
	s.mu.Lock()
	perm := s.rnd.Perm(len(pool))
	s.mu.Unlock()

	picked := make([]domain.Question, n)
	for i := 0; i < n; i++ {
		picked[i] = pool[perm[i]]
	}
	return picked
}

func distinctQuestionIDs(answers []domain.AnswerInput) []int64 {
	seen := make(map[int64]struct{}, len(answers))
	ids := make([]int64, 0, len(answers))
	for _, a := range answers {
		if _, ok := seen[a.QuestionID]; ok {
			continue
		}
		seen[a.QuestionID] = struct{}{}
		ids = append(ids, a.QuestionID)
	}
	return ids
}
