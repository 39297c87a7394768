package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"mindquest-service/internal/app"
	"mindquest-service/internal/domain"
)

// Store is an in-memory implementation of app.Store. Transactions are
// serialised by a single mutex and work on a private copy of the data that
// replaces the live copy only when the transaction function succeeds.
type Store struct {
	*queries

	mu  sync.Mutex
	db  *state
	now func() time.Time
}

var _ app.Store = (*Store)(nil)

func NewStore() *Store {
	return NewStoreWithClock(time.Now)
}

// NewStoreWithClock allows deterministic timestamps in tests.
func NewStoreWithClock(now func() time.Time) *Store {
	s := &Store{db: newState(), now: now}
	s.queries = &queries{store: s, now: now}
	return s
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, q app.Queries) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	draft := s.db.clone()
	if err := fn(ctx, &queries{draft: draft, now: s.now}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.db = draft
	return nil
}

type attemptKey struct {
	userID     int64
	categoryID int64
}

type state struct {
	nextID       int64
	users        map[int64]domain.User
	emails       map[string]int64
	categories   map[int64]domain.QuizCategory
	questions    map[int64]domain.Question
	attempts     map[int64]domain.QuizAttempt
	attemptKeys  map[attemptKey]int64
	answers      map[int64][]domain.QuizAnswer
	transactions []domain.PointsTransaction
	rewards      map[int64]domain.CryptoReward
	redemptions  []domain.RewardRedemption
	posts        map[int64]domain.CommunityPost
}

func newState() *state {
	return &state{
		users:       make(map[int64]domain.User),
		emails:      make(map[string]int64),
		categories:  make(map[int64]domain.QuizCategory),
		questions:   make(map[int64]domain.Question),
		attempts:    make(map[int64]domain.QuizAttempt),
		attemptKeys: make(map[attemptKey]int64),
		answers:     make(map[int64][]domain.QuizAnswer),
		rewards:     make(map[int64]domain.CryptoReward),
		posts:       make(map[int64]domain.CommunityPost),
	}
}

// clone copies every table. Row values are never mutated in place, so
// sharing their inner slices is safe.
func (st *state) clone() *state {
	return &state{
		nextID:       st.nextID,
		users:        maps.Clone(st.users),
		emails:       maps.Clone(st.emails),
		categories:   maps.Clone(st.categories),
		questions:    maps.Clone(st.questions),
		attempts:     maps.Clone(st.attempts),
		attemptKeys:  maps.Clone(st.attemptKeys),
		answers:      maps.Clone(st.answers),
		transactions: slices.Clone(st.transactions),
		rewards:      maps.Clone(st.rewards),
		redemptions:  slices.Clone(st.redemptions),
		posts:        maps.Clone(st.posts),
	}
}

func (st *state) id() int64 {
	st.nextID++
	return st.nextID
}

// queries implements app.Queries either directly on the store (taking the
// lock per call) or on a transaction draft (lock already held).
type queries struct {
	store *Store
	draft *state
	now   func() time.Time
}

func (q *queries) begin() (*state, func()) {
	if q.draft != nil {
		return q.draft, func() {}
	}
	q.store.mu.Lock()
	return q.store.db, q.store.mu.Unlock
}

func (q *queries) GetUser(_ context.Context, id int64) (domain.User, error) {
	st, done := q.begin()
	defer done()
	user, ok := st.users[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return user, nil
}

func (q *queries) GetUserByEmail(_ context.Context, email string) (domain.User, error) {
	st, done := q.begin()
	defer done()
	id, ok := st.emails[strings.ToLower(email)]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return st.users[id], nil
}

// LockUser needs no extra locking: transactions already hold the store mutex.
func (q *queries) LockUser(ctx context.Context, id int64) (domain.User, error) {
	return q.GetUser(ctx, id)
}

func (q *queries) CreateUser(_ context.Context, user *domain.User) error {
	st, done := q.begin()
	defer done()
	key := strings.ToLower(user.Email)
	if _, taken := st.emails[key]; taken {
		return domain.ErrEmailTaken
	}
	user.ID = st.id()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = q.now()
	}
	user.UpdatedAt = user.CreatedAt
	st.users[user.ID] = *user
	st.emails[key] = user.ID
	return nil
}

func (q *queries) UpdateBalance(_ context.Context, userID, points int64, level int) error {
	st, done := q.begin()
	defer done()
	user, ok := st.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	if points < 0 {
		return fmt.Errorf("negative balance for user %d: %w", userID, domain.ErrInsufficientBalance)
	}
	user.Points = points
	user.Level = level
	user.UpdatedAt = q.now()
	st.users[userID] = user
	return nil
}

func (q *queries) UpdateProfile(_ context.Context, userID int64, update domain.ProfileUpdate) (domain.User, error) {
	st, done := q.begin()
	defer done()
	user, ok := st.users[userID]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	if update.Name != nil {
		user.Name = *update.Name
	}
	if update.Bio != nil {
		user.Bio = *update.Bio
	}
	if update.Location != nil {
		user.Location = *update.Location
	}
	if update.Website != nil {
		user.Website = *update.Website
	}
	user.UpdatedAt = q.now()
	st.users[userID] = user
	return user, nil
}

func (q *queries) SetAvatar(_ context.Context, userID int64, path string) (domain.User, error) {
	st, done := q.begin()
	defer done()
	user, ok := st.users[userID]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	user.Avatar = path
	user.UpdatedAt = q.now()
	st.users[userID] = user
	return user, nil
}

func (q *queries) TouchUser(_ context.Context, userID int64, at time.Time) error {
	st, done := q.begin()
	defer done()
	user, ok := st.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	user.LastActive = at
	st.users[userID] = user
	return nil
}

func (q *queries) CountActiveUsers(_ context.Context) (int64, error) {
	st, done := q.begin()
	defer done()
	var n int64
	for _, u := range st.users {
		if u.Status == domain.UserActive {
			n++
		}
	}
	return n, nil
}

func (q *queries) TopUsers(_ context.Context, limit int) ([]domain.User, error) {
	st, done := q.begin()
	defer done()
	users := make([]domain.User, 0, len(st.users))
	for _, u := range st.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].Points != users[j].Points {
			return users[i].Points > users[j].Points
		}
		return users[i].ID < users[j].ID
	})
	if limit > 0 && len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}

func (q *queries) GetCategory(_ context.Context, id int64) (domain.QuizCategory, error) {
	st, done := q.begin()
	defer done()
	c, ok := st.categories[id]
	if !ok {
		return domain.QuizCategory{}, domain.ErrCategoryNotFound
	}
	c.QuestionCount = st.activeQuestionCount(id)
	return c, nil
}

func (q *queries) ListCategories(_ context.Context, filter domain.CategoryFilter, page domain.PageRequest) (domain.Page[domain.QuizCategory], error) {
	st, done := q.begin()
	defer done()
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	var matched []domain.QuizCategory
	for _, c := range st.sortedCategories() {
		if !c.Active {
			continue
		}
		if filter.Difficulty != "" && c.Difficulty != filter.Difficulty {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(c.Title), search) &&
			!strings.Contains(strings.ToLower(c.Description), search) {
			continue
		}
		c.QuestionCount = st.activeQuestionCount(c.ID)
		matched = append(matched, c)
	}
	return paginate(matched, page), nil
}

func (q *queries) AllCategories(_ context.Context) ([]domain.QuizCategory, error) {
	st, done := q.begin()
	defer done()
	cats := st.sortedCategories()
	for i := range cats {
		cats[i].QuestionCount = st.activeQuestionCount(cats[i].ID)
	}
	return cats, nil
}

func (q *queries) CreateCategory(_ context.Context, category *domain.QuizCategory) error {
	st, done := q.begin()
	defer done()
	category.ID = st.id()
	if category.CreatedAt.IsZero() {
		category.CreatedAt = q.now()
	}
	st.categories[category.ID] = *category
	return nil
}

func (q *queries) ActiveQuestions(_ context.Context, categoryID int64) ([]domain.Question, error) {
	st, done := q.begin()
	defer done()
	var out []domain.Question
	for _, question := range st.questions {
		if question.CategoryID == categoryID && question.Active {
			out = append(out, question)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (q *queries) GetQuestions(_ context.Context, ids []int64) ([]domain.Question, error) {
	st, done := q.begin()
	defer done()
	out := make([]domain.Question, 0, len(ids))
	for _, id := range ids {
		if question, ok := st.questions[id]; ok {
			out = append(out, question)
		}
	}
	return out, nil
}

func (q *queries) CreateQuestion(_ context.Context, question *domain.Question) error {
	st, done := q.begin()
	defer done()
	if _, ok := st.categories[question.CategoryID]; !ok {
		return domain.ErrCategoryNotFound
	}
	question.ID = st.id()
	st.questions[question.ID] = *question
	return nil
}

func (q *queries) IncrementQuestionUsage(_ context.Context, ids []int64) error {
	st, done := q.begin()
	defer done()
	for _, id := range ids {
		if question, ok := st.questions[id]; ok {
			question.TimesUsed++
			st.questions[id] = question
		}
	}
	return nil
}

func (q *queries) FindAttempt(_ context.Context, userID, categoryID int64) (domain.QuizAttempt, error) {
	st, done := q.begin()
	defer done()
	id, ok := st.attemptKeys[attemptKey{userID, categoryID}]
	if !ok {
		return domain.QuizAttempt{}, domain.ErrAttemptNotFound
	}
	return st.attempts[id], nil
}

func (q *queries) InsertAttempt(_ context.Context, attempt *domain.QuizAttempt, answers []domain.QuizAnswer) error {
	st, done := q.begin()
	defer done()
	key := attemptKey{attempt.UserID, attempt.CategoryID}
	if _, exists := st.attemptKeys[key]; exists {
		return domain.ErrAttemptExists
	}
	attempt.ID = st.id()
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = q.now()
	}
	rows := make([]domain.QuizAnswer, len(answers))
	for i, a := range answers {
		a.ID = st.id()
		a.AttemptID = attempt.ID
		rows[i] = a
		answers[i] = a
	}
	st.attempts[attempt.ID] = *attempt
	st.attemptKeys[key] = attempt.ID
	st.answers[attempt.ID] = rows
	return nil
}

func (q *queries) ListAttempts(_ context.Context, userID int64, categoryID *int64, page domain.PageRequest) (domain.Page[domain.QuizAttempt], error) {
	st, done := q.begin()
	defer done()
	var out []domain.QuizAttempt
	for _, a := range st.attempts {
		if a.UserID != userID {
			continue
		}
		if categoryID != nil && a.CategoryID != *categoryID {
			continue
		}
		a.CategoryTitle = st.categories[a.CategoryID].Title
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return paginate(out, page), nil
}

func (q *queries) AttemptAnswers(_ context.Context, attemptID int64) ([]domain.QuizAnswer, error) {
	st, done := q.begin()
	defer done()
	return slices.Clone(st.answers[attemptID]), nil
}

func (q *queries) AttemptStats(_ context.Context, userID int64) (domain.AttemptStats, error) {
	st, done := q.begin()
	defer done()
	var stats domain.AttemptStats
	var scoreSum int64
	for _, a := range st.attempts {
		if a.UserID != userID {
			continue
		}
		stats.TotalQuizzes++
		scoreSum += int64(a.Score)
		stats.TotalTimeSpent += int64(a.TimeSpent)
	}
	if stats.TotalQuizzes > 0 {
		stats.AverageScore = float64(scoreSum) / float64(stats.TotalQuizzes)
	}
	return stats, nil
}

func (q *queries) InsertTransaction(_ context.Context, tx *domain.PointsTransaction) error {
	st, done := q.begin()
	defer done()
	tx.ID = st.id()
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = q.now()
	}
	st.transactions = append(st.transactions, *tx)
	return nil
}

func (q *queries) ListTransactions(_ context.Context, userID int64, typ domain.TransactionType, page domain.PageRequest) (domain.Page[domain.PointsTransaction], error) {
	st, done := q.begin()
	defer done()
	var out []domain.PointsTransaction
	for i := len(st.transactions) - 1; i >= 0; i-- {
		tx := st.transactions[i]
		if tx.UserID != userID || (typ != "" && tx.Type != typ) {
			continue
		}
		out = append(out, tx)
	}
	return paginate(out, page), nil
}

func (q *queries) TransactionTotals(_ context.Context, userID int64) (domain.PointsTotals, error) {
	st, done := q.begin()
	defer done()
	var totals domain.PointsTotals
	for _, tx := range st.transactions {
		if tx.UserID != userID {
			continue
		}
		if tx.Type == domain.TransactionRedeemed {
			totals.Redeemed += tx.Points
		} else {
			totals.Earned += tx.Points
		}
	}
	return totals, nil
}

func (q *queries) GetReward(_ context.Context, id int64) (domain.CryptoReward, error) {
	st, done := q.begin()
	defer done()
	r, ok := st.rewards[id]
	if !ok {
		return domain.CryptoReward{}, domain.ErrRewardNotFound
	}
	return r, nil
}

func (q *queries) AvailableRewards(_ context.Context) ([]domain.CryptoReward, error) {
	st, done := q.begin()
	defer done()
	var out []domain.CryptoReward
	for _, r := range st.rewards {
		if r.Available {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MinPoints != out[j].MinPoints {
			return out[i].MinPoints < out[j].MinPoints
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (q *queries) CreateReward(_ context.Context, reward *domain.CryptoReward) error {
	st, done := q.begin()
	defer done()
	reward.ID = st.id()
	if reward.CreatedAt.IsZero() {
		reward.CreatedAt = q.now()
	}
	st.rewards[reward.ID] = *reward
	return nil
}

func (q *queries) InsertRedemption(_ context.Context, redemption *domain.RewardRedemption) error {
	st, done := q.begin()
	defer done()
	redemption.ID = st.id()
	if redemption.CreatedAt.IsZero() {
		redemption.CreatedAt = q.now()
	}
	st.redemptions = append(st.redemptions, *redemption)
	return nil
}

func (q *queries) ListRedemptions(_ context.Context, userID int64, page domain.PageRequest) (domain.Page[domain.RewardRedemption], error) {
	st, done := q.begin()
	defer done()
	var out []domain.RewardRedemption
	for i := len(st.redemptions) - 1; i >= 0; i-- {
		if st.redemptions[i].UserID == userID {
			out = append(out, st.redemptions[i])
		}
	}
	return paginate(out, page), nil
}

func (q *queries) InsertPost(_ context.Context, post *domain.CommunityPost) error {
	st, done := q.begin()
	defer done()
	if _, ok := st.categories[post.CategoryID]; !ok {
		return domain.ErrCategoryNotFound
	}
	post.ID = st.id()
	if post.CreatedAt.IsZero() {
		post.CreatedAt = q.now()
	}
	post.AuthorName = st.users[post.AuthorID].Name
	st.posts[post.ID] = *post
	return nil
}

func (q *queries) GetPost(_ context.Context, id int64) (domain.CommunityPost, error) {
	st, done := q.begin()
	defer done()
	p, ok := st.posts[id]
	if !ok {
		return domain.CommunityPost{}, domain.ErrPostNotFound
	}
	p.AuthorName = st.users[p.AuthorID].Name
	return p, nil
}

func (q *queries) IncrementPostViews(_ context.Context, id int64) error {
	st, done := q.begin()
	defer done()
	p, ok := st.posts[id]
	if !ok {
		return domain.ErrPostNotFound
	}
	p.Views++
	st.posts[id] = p
	return nil
}

func (q *queries) ListPosts(_ context.Context, categoryID int64, order domain.PostSort, page domain.PageRequest) (domain.Page[domain.CommunityPost], error) {
	st, done := q.begin()
	defer done()
	var out []domain.CommunityPost
	for _, p := range st.posts {
		if p.CategoryID == categoryID {
			p.AuthorName = st.users[p.AuthorID].Name
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch order {
		case domain.SortPopular:
			if a.Likes != b.Likes {
				return a.Likes > b.Likes
			}
		case domain.SortReplies:
			if a.Replies != b.Replies {
				return a.Replies > b.Replies
			}
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
	return paginate(out, page), nil
}

func (q *queries) CountPosts(_ context.Context, categoryID int64) (int64, error) {
	st, done := q.begin()
	defer done()
	var n int64
	for _, p := range st.posts {
		if categoryID == 0 || p.CategoryID == categoryID {
			n++
		}
	}
	return n, nil
}

func (st *state) activeQuestionCount(categoryID int64) int {
	n := 0
	for _, question := range st.questions {
		if question.CategoryID == categoryID && question.Active {
			n++
		}
	}
	return n
}

func (st *state) sortedCategories() []domain.QuizCategory {
	out := make([]domain.QuizCategory, 0, len(st.categories))
	for _, c := range st.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func paginate[T any](items []T, req domain.PageRequest) domain.Page[T] {
	req = req.Normalize()
	total := len(items)
	start := req.Offset()
	if start > total {
		start = total
	}
	end := start + req.Size
	if end > total {
		end = total
	}
	return domain.NewPage(slices.Clone(items[start:end]), req, total)
}
