package app

import (
	"context"

	"mindquest-service/internal/domain"
)

// StorePoolLoader loads question pools through the Store. It backs the pool
// cache when no dedicated read path is configured.
type StorePoolLoader struct {
	store Store
}

var _ PoolLoader = (*StorePoolLoader)(nil)

func NewStorePoolLoader(store Store) *StorePoolLoader {
	return &StorePoolLoader{store: store}
}

func (l *StorePoolLoader) LoadPool(ctx context.Context, categoryID int64) (domain.QuestionPool, error) {
	category, err := l.store.GetCategory(ctx, categoryID)
	if err != nil {
		return domain.QuestionPool{}, err
	}
	if !category.Active {
		return domain.QuestionPool{}, domain.ErrCategoryNotFound
	}
	questions, err := l.store.ActiveQuestions(ctx, categoryID)
	if err != nil {
		return domain.QuestionPool{}, err
	}
	return domain.QuestionPool{Category: category, Questions: questions}, nil
}
