package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"mindquest-service/internal/app"
	"mindquest-service/internal/domain"
)

// PoolLoader reads a category and its active questions straight from Postgres.
// It feeds the question pool cache and bypasses the ORM for the hot read.
type PoolLoader struct {
	pool *pgxpool.Pool
}

var _ app.PoolLoader = (*PoolLoader)(nil)

func NewPoolLoader(pool *pgxpool.Pool) *PoolLoader {
	return &PoolLoader{pool: pool}
}

func (l *PoolLoader) LoadPool(ctx context.Context, categoryID int64) (domain.QuestionPool, error) {
	var (
		category   domain.QuizCategory
		difficulty string
	)
	err := l.pool.QueryRow(ctx, `
		SELECT id, title, description, icon, difficulty, color, active, created_at
		FROM quiz_categories WHERE id = $1`, categoryID).
		Scan(&category.ID, &category.Title, &category.Description, &category.Icon,
			&difficulty, &category.Color, &category.Active, &category.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.QuestionPool{}, domain.ErrCategoryNotFound
	}
	if err != nil {
		return domain.QuestionPool{}, fmt.Errorf("load category: %w", err)
	}
	if !category.Active {
		return domain.QuestionPool{}, domain.ErrCategoryNotFound
	}
	category.Difficulty = domain.Difficulty(difficulty)

	rows, err := l.pool.Query(ctx, `
		SELECT id, prompt, options, correct_answer, explanation, points, time_limit, difficulty, tags, times_used
		FROM questions WHERE category_id = $1 AND active ORDER BY id`, categoryID)
	if err != nil {
		return domain.QuestionPool{}, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	questions := make([]domain.Question, 0)
	for rows.Next() {
		q := domain.Question{CategoryID: categoryID, Active: true}
		var qDifficulty string
		if err := rows.Scan(&q.ID, &q.Prompt, &q.Options, &q.CorrectAnswer, &q.Explanation,
			&q.Points, &q.TimeLimit, &qDifficulty, &q.Tags, &q.TimesUsed); err != nil {
			return domain.QuestionPool{}, fmt.Errorf("scan question: %w", err)
		}
		q.Difficulty = domain.Difficulty(qDifficulty)
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return domain.QuestionPool{}, fmt.Errorf("load questions: %w", err)
	}
	category.QuestionCount = len(questions)
	return domain.QuestionPool{Category: category, Questions: questions}, nil
}
