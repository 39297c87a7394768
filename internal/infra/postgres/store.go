package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"

	"mindquest-service/internal/app"
	"mindquest-service/internal/domain"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"

	usersPointsCheck = "users_points_non_negative"
)

// Store implements app.Store on Postgres through bun.
type Store struct {
	*queries
	db *bun.DB
}

var _ app.Store = (*Store)(nil)

func NewStore(db *bun.DB) *Store {
	return &Store{queries: &queries{db: db, root: db}, db: db}
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, q app.Queries) error) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &queries{db: tx})
	})
}

// queries runs against either the pool or an open transaction. root is set
// only outside a transaction, for multi-statement writes that must be atomic.
type queries struct {
	db   bun.IDB
	root *bun.DB
}

func (q *queries) atomic(ctx context.Context, fn func(ctx context.Context, q *queries) error) error {
	if q.root == nil {
		return fn(ctx, q)
	}
	return q.root.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &queries{db: tx})
	})
}

func (q *queries) GetUser(ctx context.Context, id int64) (domain.User, error) {
	row := new(userRow)
	err := q.db.NewSelect().Model(row).Where("u.id = ?", id).Scan(ctx)
	if err != nil {
		return domain.User{}, notFound(err, domain.ErrUserNotFound)
	}
	return row.domain(), nil
}

func (q *queries) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	row := new(userRow)
	err := q.db.NewSelect().Model(row).Where("lower(u.email) = lower(?)", email).Scan(ctx)
	if err != nil {
		return domain.User{}, notFound(err, domain.ErrUserNotFound)
	}
	return row.domain(), nil
}

func (q *queries) LockUser(ctx context.Context, id int64) (domain.User, error) {
	row := new(userRow)
	err := q.db.NewSelect().Model(row).Where("u.id = ?", id).For("UPDATE").Scan(ctx)
	if err != nil {
		return domain.User{}, notFound(err, domain.ErrUserNotFound)
	}
	return row.domain(), nil
}

func (q *queries) CreateUser(ctx context.Context, user *domain.User) error {
	row := newUserRow(*user)
	row.ID = 0
	row.UpdatedAt = row.CreatedAt
	_, err := q.db.NewInsert().Model(row).Returning("id, created_at, updated_at").Exec(ctx)
	if err != nil {
		return mapWriteErr(err, domain.ErrEmailTaken)
	}
	user.ID = row.ID
	user.CreatedAt = row.CreatedAt
	user.UpdatedAt = row.UpdatedAt
	return nil
}

func (q *queries) UpdateBalance(ctx context.Context, userID, points int64, level int) error {
	if points < 0 {
		return fmt.Errorf("negative balance for user %d: %w", userID, domain.ErrInsufficientBalance)
	}
	res, err := q.db.NewUpdate().Model((*userRow)(nil)).
		Set("points = ?", points).
		Set("level = ?", level).
		Set("updated_at = current_timestamp").
		Where("id = ?", userID).
		Exec(ctx)
	if err != nil {
		return mapWriteErr(err, domain.ErrConflict)
	}
	return expectRow(res, domain.ErrUserNotFound)
}

func (q *queries) UpdateProfile(ctx context.Context, userID int64, update domain.ProfileUpdate) (domain.User, error) {
	query := q.db.NewUpdate().Model((*userRow)(nil)).
		Set("updated_at = current_timestamp").
		Where("id = ?", userID)
	if update.Name != nil {
		query = query.Set("name = ?", *update.Name)
	}
	if update.Bio != nil {
		query = query.Set("bio = ?", *update.Bio)
	}
	if update.Location != nil {
		query = query.Set("location = ?", *update.Location)
	}
	if update.Website != nil {
		query = query.Set("website = ?", *update.Website)
	}
	res, err := query.Exec(ctx)
	if err != nil {
		return domain.User{}, err
	}
	if err := expectRow(res, domain.ErrUserNotFound); err != nil {
		return domain.User{}, err
	}
	return q.GetUser(ctx, userID)
}

func (q *queries) SetAvatar(ctx context.Context, userID int64, path string) (domain.User, error) {
	res, err := q.db.NewUpdate().Model((*userRow)(nil)).
		Set("avatar = ?", path).
		Set("updated_at = current_timestamp").
		Where("id = ?", userID).
		Exec(ctx)
	if err != nil {
		return domain.User{}, err
	}
	if err := expectRow(res, domain.ErrUserNotFound); err != nil {
		return domain.User{}, err
	}
	return q.GetUser(ctx, userID)
}

func (q *queries) TouchUser(ctx context.Context, userID int64, at time.Time) error {
	res, err := q.db.NewUpdate().Model((*userRow)(nil)).
		Set("last_active = ?", at).
		Where("id = ?", userID).
		Exec(ctx)
	if err != nil {
		return err
	}
	return expectRow(res, domain.ErrUserNotFound)
}

func (q *queries) CountActiveUsers(ctx context.Context) (int64, error) {
	n, err := q.db.NewSelect().Model((*userRow)(nil)).
		Where("u.status = ?", string(domain.UserActive)).
		Count(ctx)
	return int64(n), err
}

func (q *queries) TopUsers(ctx context.Context, limit int) ([]domain.User, error) {
	var rows []userRow
	query := q.db.NewSelect().Model(&rows).OrderExpr("u.points DESC, u.id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Scan(ctx); err != nil {
		return nil, err
	}
	return mapRows(rows, (*userRow).domain), nil
}

func (q *queries) selectCategories(rows *[]categoryRow) *bun.SelectQuery {
	return q.db.NewSelect().Model(rows).
		ColumnExpr("c.*").
		ColumnExpr("(SELECT count(*) FROM questions AS q WHERE q.category_id = c.id AND q.active) AS question_count")
}

func (q *queries) GetCategory(ctx context.Context, id int64) (domain.QuizCategory, error) {
	var rows []categoryRow
	if err := q.selectCategories(&rows).Where("c.id = ?", id).Scan(ctx); err != nil {
		return domain.QuizCategory{}, err
	}
	if len(rows) == 0 {
		return domain.QuizCategory{}, domain.ErrCategoryNotFound
	}
	return rows[0].domain(), nil
}

func (q *queries) ListCategories(ctx context.Context, filter domain.CategoryFilter, page domain.PageRequest) (domain.Page[domain.QuizCategory], error) {
	page = page.Normalize()
	var rows []categoryRow
	query := q.selectCategories(&rows).Where("c.active")
	if filter.Difficulty != "" {
		query = query.Where("c.difficulty = ?", string(filter.Difficulty))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + escapeLike(search) + "%"
		query = query.WhereGroup(" AND ", func(sq *bun.SelectQuery) *bun.SelectQuery {
			return sq.Where("c.title ILIKE ?", pattern).WhereOr("c.description ILIKE ?", pattern)
		})
	}
	total, err := query.OrderExpr("c.id ASC").Limit(page.Size).Offset(page.Offset()).ScanAndCount(ctx)
	if err != nil {
		return domain.Page[domain.QuizCategory]{}, err
	}
	return domain.NewPage(mapRows(rows, (*categoryRow).domain), page, total), nil
}

func (q *queries) AllCategories(ctx context.Context) ([]domain.QuizCategory, error) {
	var rows []categoryRow
	if err := q.selectCategories(&rows).OrderExpr("c.id ASC").Scan(ctx); err != nil {
		return nil, err
	}
	return mapRows(rows, (*categoryRow).domain), nil
}

func (q *queries) CreateCategory(ctx context.Context, category *domain.QuizCategory) error {
	row := newCategoryRow(*category)
	row.ID = 0
	if _, err := q.db.NewInsert().Model(row).Returning("id, created_at").Exec(ctx); err != nil {
		return mapWriteErr(err, domain.ErrConflict)
	}
	category.ID = row.ID
	category.CreatedAt = row.CreatedAt
	return nil
}

func (q *queries) ActiveQuestions(ctx context.Context, categoryID int64) ([]domain.Question, error) {
	var rows []questionRow
	err := q.db.NewSelect().Model(&rows).
		Where("q.category_id = ?", categoryID).
		Where("q.active").
		OrderExpr("q.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return mapRows(rows, (*questionRow).domain), nil
}

// GetQuestions returns the known questions in the order of ids.
func (q *queries) GetQuestions(ctx context.Context, ids []int64) ([]domain.Question, error) {
	if len(ids) == 0 {
		return []domain.Question{}, nil
	}
	var rows []questionRow
	if err := q.db.NewSelect().Model(&rows).Where("q.id IN (?)", bun.In(ids)).Scan(ctx); err != nil {
		return nil, err
	}
	byID := make(map[int64]domain.Question, len(rows))
	for i := range rows {
		byID[rows[i].ID] = rows[i].domain()
	}
	out := make([]domain.Question, 0, len(ids))
	for _, id := range ids {
		if question, ok := byID[id]; ok {
			out = append(out, question)
		}
	}
	return out, nil
}

func (q *queries) CreateQuestion(ctx context.Context, question *domain.Question) error {
	row := newQuestionRow(*question)
	row.ID = 0
	if _, err := q.db.NewInsert().Model(row).Returning("id").Exec(ctx); err != nil {
		return mapWriteErr(err, domain.ErrConflict)
	}
	question.ID = row.ID
	return nil
}

func (q *queries) IncrementQuestionUsage(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := q.db.NewUpdate().Model((*questionRow)(nil)).
		Set("times_used = times_used + 1").
		Where("id IN (?)", bun.In(ids)).
		Exec(ctx)
	return err
}

func (q *queries) FindAttempt(ctx context.Context, userID, categoryID int64) (domain.QuizAttempt, error) {
	row := new(attemptRow)
	err := q.db.NewSelect().Model(row).
		Where("a.user_id = ?", userID).
		Where("a.category_id = ?", categoryID).
		Scan(ctx)
	if err != nil {
		return domain.QuizAttempt{}, notFound(err, domain.ErrAttemptNotFound)
	}
	return row.domain(), nil
}

func (q *queries) InsertAttempt(ctx context.Context, attempt *domain.QuizAttempt, answers []domain.QuizAnswer) error {
	return q.atomic(ctx, func(ctx context.Context, q *queries) error {
		row := newAttemptRow(*attempt)
		row.ID = 0
		if _, err := q.db.NewInsert().Model(row).Returning("id, created_at").Exec(ctx); err != nil {
			return mapWriteErr(err, domain.ErrAttemptExists)
		}
		if len(answers) > 0 {
			rows := make([]answerRow, len(answers))
			for i, a := range answers {
				rows[i] = answerRow{
					AttemptID:      row.ID,
					QuestionID:     a.QuestionID,
					SelectedOption: a.SelectedOption,
					Correct:        a.Correct,
					TimeSpent:      a.TimeSpent,
					Points:         a.Points,
				}
			}
			if _, err := q.db.NewInsert().Model(&rows).Returning("id").Exec(ctx); err != nil {
				return mapWriteErr(err, domain.ErrConflict)
			}
			for i := range answers {
				answers[i].ID = rows[i].ID
				answers[i].AttemptID = row.ID
			}
		}
		attempt.ID = row.ID
		attempt.CreatedAt = row.CreatedAt
		return nil
	})
}

func (q *queries) ListAttempts(ctx context.Context, userID int64, categoryID *int64, page domain.PageRequest) (domain.Page[domain.QuizAttempt], error) {
	page = page.Normalize()
	var rows []attemptRow
	query := q.db.NewSelect().Model(&rows).
		ColumnExpr("a.*").
		ColumnExpr("c.title AS category_title").
		Join("LEFT JOIN quiz_categories AS c ON c.id = a.category_id").
		Where("a.user_id = ?", userID)
	if categoryID != nil {
		query = query.Where("a.category_id = ?", *categoryID)
	}
	total, err := query.OrderExpr("a.created_at DESC, a.id DESC").
		Limit(page.Size).Offset(page.Offset()).
		ScanAndCount(ctx)
	if err != nil {
		return domain.Page[domain.QuizAttempt]{}, err
	}
	return domain.NewPage(mapRows(rows, (*attemptRow).domain), page, total), nil
}

func (q *queries) AttemptAnswers(ctx context.Context, attemptID int64) ([]domain.QuizAnswer, error) {
	var rows []answerRow
	err := q.db.NewSelect().Model(&rows).
		Where("qa.attempt_id = ?", attemptID).
		OrderExpr("qa.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return mapRows(rows, (*answerRow).domain), nil
}

func (q *queries) AttemptStats(ctx context.Context, userID int64) (domain.AttemptStats, error) {
	var stats domain.AttemptStats
	err := q.db.NewSelect().Model((*attemptRow)(nil)).
		ColumnExpr("count(*)").
		ColumnExpr("COALESCE(avg(a.score), 0)::float8").
		ColumnExpr("COALESCE(sum(a.time_spent), 0)::bigint").
		Where("a.user_id = ?", userID).
		Scan(ctx, &stats.TotalQuizzes, &stats.AverageScore, &stats.TotalTimeSpent)
	return stats, err
}

func (q *queries) InsertTransaction(ctx context.Context, tx *domain.PointsTransaction) error {
	row := &transactionRow{
		UserID:      tx.UserID,
		Type:        string(tx.Type),
		Points:      tx.Points,
		Source:      tx.Source,
		Description: tx.Description,
		CreatedAt:   tx.CreatedAt,
	}
	if _, err := q.db.NewInsert().Model(row).Returning("id, created_at").Exec(ctx); err != nil {
		return mapWriteErr(err, domain.ErrConflict)
	}
	tx.ID = row.ID
	tx.CreatedAt = row.CreatedAt
	return nil
}

func (q *queries) ListTransactions(ctx context.Context, userID int64, typ domain.TransactionType, page domain.PageRequest) (domain.Page[domain.PointsTransaction], error) {
	page = page.Normalize()
	var rows []transactionRow
	query := q.db.NewSelect().Model(&rows).Where("pt.user_id = ?", userID)
	if typ != "" {
		query = query.Where("pt.type = ?", string(typ))
	}
	total, err := query.OrderExpr("pt.created_at DESC, pt.id DESC").
		Limit(page.Size).Offset(page.Offset()).
		ScanAndCount(ctx)
	if err != nil {
		return domain.Page[domain.PointsTransaction]{}, err
	}
	return domain.NewPage(mapRows(rows, (*transactionRow).domain), page, total), nil
}

func (q *queries) TransactionTotals(ctx context.Context, userID int64) (domain.PointsTotals, error) {
	var totals domain.PointsTotals
	err := q.db.NewSelect().Model((*transactionRow)(nil)).
		ColumnExpr("COALESCE(sum(pt.points) FILTER (WHERE pt.type <> ?), 0)::bigint", string(domain.TransactionRedeemed)).
		ColumnExpr("COALESCE(sum(pt.points) FILTER (WHERE pt.type = ?), 0)::bigint", string(domain.TransactionRedeemed)).
		Where("pt.user_id = ?", userID).
		Scan(ctx, &totals.Earned, &totals.Redeemed)
	return totals, err
}

func (q *queries) GetReward(ctx context.Context, id int64) (domain.CryptoReward, error) {
	row := new(rewardRow)
	if err := q.db.NewSelect().Model(row).Where("r.id = ?", id).Scan(ctx); err != nil {
		return domain.CryptoReward{}, notFound(err, domain.ErrRewardNotFound)
	}
	return row.domain(), nil
}

func (q *queries) AvailableRewards(ctx context.Context) ([]domain.CryptoReward, error) {
	var rows []rewardRow
	err := q.db.NewSelect().Model(&rows).
		Where("r.available").
		OrderExpr("r.min_points ASC, r.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return mapRows(rows, (*rewardRow).domain), nil
}

func (q *queries) CreateReward(ctx context.Context, reward *domain.CryptoReward) error {
	row := &rewardRow{
		Name:        reward.Name,
		Icon:        reward.Icon,
		MinPoints:   reward.MinPoints,
		Value:       reward.Value,
		Color:       reward.Color,
		Available:   reward.Available,
		Description: reward.Description,
		CreatedAt:   reward.CreatedAt,
	}
	if _, err := q.db.NewInsert().Model(row).Returning("id, created_at").Exec(ctx); err != nil {
		return mapWriteErr(err, domain.ErrConflict)
	}
	reward.ID = row.ID
	reward.CreatedAt = row.CreatedAt
	return nil
}

func (q *queries) InsertRedemption(ctx context.Context, redemption *domain.RewardRedemption) error {
	row := &redemptionRow{
		UserID:            redemption.UserID,
		RewardID:          redemption.RewardID,
		RewardName:        redemption.RewardName,
		PointsUsed:        redemption.PointsUsed,
		Value:             redemption.Value,
		Status:            string(redemption.Status),
		WalletAddress:     redemption.WalletAddress,
		TransactionID:     redemption.TransactionID,
		EstimatedDelivery: redemption.EstimatedDelivery,
		CompletedAt:       redemption.CompletedAt,
		CreatedAt:         redemption.CreatedAt,
	}
	if _, err := q.db.NewInsert().Model(row).Returning("id, created_at").Exec(ctx); err != nil {
		return mapWriteErr(err, domain.ErrConflict)
	}
	redemption.ID = row.ID
	redemption.CreatedAt = row.CreatedAt
	return nil
}

func (q *queries) ListRedemptions(ctx context.Context, userID int64, page domain.PageRequest) (domain.Page[domain.RewardRedemption], error) {
	page = page.Normalize()
	var rows []redemptionRow
	total, err := q.db.NewSelect().Model(&rows).
		Where("rr.user_id = ?", userID).
		OrderExpr("rr.created_at DESC, rr.id DESC").
		Limit(page.Size).Offset(page.Offset()).
		ScanAndCount(ctx)
	if err != nil {
		return domain.Page[domain.RewardRedemption]{}, err
	}
	return domain.NewPage(mapRows(rows, (*redemptionRow).domain), page, total), nil
}

func (q *queries) InsertPost(ctx context.Context, post *domain.CommunityPost) error {
	row := &postRow{
		AuthorID:   post.AuthorID,
		CategoryID: post.CategoryID,
		Title:      post.Title,
		Content:    post.Content,
		Likes:      post.Likes,
		Replies:    post.Replies,
		Views:      post.Views,
		Pinned:     post.Pinned,
		Tags:       post.Tags,
		CreatedAt:  post.CreatedAt,
	}
	if _, err := q.db.NewInsert().Model(row).Returning("id, created_at").Exec(ctx); err != nil {
		return mapWriteErr(err, domain.ErrConflict)
	}
	post.ID = row.ID
	post.CreatedAt = row.CreatedAt
	if author, err := q.GetUser(ctx, post.AuthorID); err == nil {
		post.AuthorName = author.Name
	}
	return nil
}

func (q *queries) selectPosts(rows *[]postRow) *bun.SelectQuery {
	return q.db.NewSelect().Model(rows).
		ColumnExpr("p.*").
		ColumnExpr("u.name AS author_name").
		Join("LEFT JOIN users AS u ON u.id = p.author_id")
}

func (q *queries) GetPost(ctx context.Context, id int64) (domain.CommunityPost, error) {
	var rows []postRow
	if err := q.selectPosts(&rows).Where("p.id = ?", id).Scan(ctx); err != nil {
		return domain.CommunityPost{}, err
	}
	if len(rows) == 0 {
		return domain.CommunityPost{}, domain.ErrPostNotFound
	}
	return rows[0].domain(), nil
}

func (q *queries) IncrementPostViews(ctx context.Context, id int64) error {
	res, err := q.db.NewUpdate().Model((*postRow)(nil)).
		Set("views = views + 1").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	return expectRow(res, domain.ErrPostNotFound)
}

var postOrders = map[domain.PostSort]string{
	domain.SortRecent:  "p.created_at DESC, p.id DESC",
	domain.SortPopular: "p.likes DESC, p.created_at DESC, p.id DESC",
	domain.SortReplies: "p.replies DESC, p.created_at DESC, p.id DESC",
}

func (q *queries) ListPosts(ctx context.Context, categoryID int64, order domain.PostSort, page domain.PageRequest) (domain.Page[domain.CommunityPost], error) {
	page = page.Normalize()
	orderBy, ok := postOrders[order]
	if !ok {
		orderBy = postOrders[domain.SortRecent]
	}
	var rows []postRow
	total, err := q.selectPosts(&rows).
		Where("p.category_id = ?", categoryID).
		OrderExpr(orderBy).
		Limit(page.Size).Offset(page.Offset()).
		ScanAndCount(ctx)
	if err != nil {
		return domain.Page[domain.CommunityPost]{}, err
	}
	return domain.NewPage(mapRows(rows, (*postRow).domain), page, total), nil
}

func (q *queries) CountPosts(ctx context.Context, categoryID int64) (int64, error) {
	query := q.db.NewSelect().Model((*postRow)(nil))
	if categoryID != 0 {
		query = query.Where("p.category_id = ?", categoryID)
	}
	n, err := query.Count(ctx)
	return int64(n), err
}

func notFound(err, target error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return target
	}
	return err
}

func expectRow(res sql.Result, target error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return target
	}
	return nil
}

// mapWriteErr translates constraint violations into domain errors. A unique
// violation maps to onUnique so callers can tell which key collided.
func mapWriteErr(err, onUnique error) error {
	var pgErr pgdriver.Error
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Field('C') {
	case pgUniqueViolation:
		return onUnique
	case pgCheckViolation:
		if pgErr.Field('n') == usersPointsCheck {
			return domain.ErrInsufficientBalance
		}
		return fmt.Errorf("%s: %w", pgErr.Field('n'), domain.ErrInvalidArgument)
	case pgForeignKeyViolation:
		return fmt.Errorf("%s: %w", pgErr.Field('n'), domain.ErrNotFound)
	}
	return err
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
