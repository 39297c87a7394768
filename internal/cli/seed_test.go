package cli

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"mindquest-service/internal/app"
	"mindquest-service/internal/domain"
	"mindquest-service/internal/infra/memory"
)

func TestSeedCatalogIsIdempotent(t *testing.T) {
	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.NewStore()

	require.NoError(t, seedCatalog(ctx, store, log))
	require.NoError(t, seedCatalog(ctx, store, log))

	categories, err := store.AllCategories(ctx)
	require.NoError(t, err)
	require.Len(t, categories, len(sampleCatalog()))

	rewards, err := store.AvailableRewards(ctx)
	require.NoError(t, err)
	require.Len(t, rewards, len(sampleRewards()))

	pool, err := app.NewStorePoolLoader(store).LoadPool(ctx, categories[0].ID)
	require.NoError(t, err)
	require.Len(t, pool.Questions, 1)
}

func TestWarmLeaderboardCopiesBalances(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	board := memory.NewLeaderboard()

	for _, u := range []domain.User{
		{Name: "Alice", Email: "alice@example.com", Points: 120},
		{Name: "Bob", Email: "bob@example.com", Points: 340},
	} {
		require.NoError(t, store.CreateUser(ctx, &u))
	}

	require.NoError(t, warmLeaderboard(ctx, store, board, 10))
	top, err := board.Top(ctx, 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	require.Equal(t, "Bob", top[0].Name)
	require.Equal(t, int64(340), top[0].Points)
}
