package app_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mindquest-service/internal/app"
	"mindquest-service/internal/domain"
)

func TestRedeemExactBalanceThenInsufficient(t *testing.T) {
	h := newHarness(t)
	u := h.user(t, "alice", 500)
	r := domain.CryptoReward{Name: "Ethereum", MinPoints: 500, Value: decimal.RequireFromString("0.0025"), Available: true}
	require.NoError(t, h.store.CreateReward(h.ctx, &r))

	red, err := h.rewards.Redeem(h.ctx, u.ID, r.ID, "  0xabc  ")
	require.NoError(t, err)
	assert.Equal(t, int64(500), red.PointsUsed)
	assert.Equal(t, "Ethereum", red.RewardName)
	assert.True(t, red.Value.Equal(decimal.RequireFromString("0.0025")))
	assert.Equal(t, domain.RedemptionPending, red.Status)
	assert.Equal(t, "0xabc", red.WalletAddress)
	assert.Equal(t, epoch.Add(24*time.Hour), red.EstimatedDelivery)
	assert.Zero(t, h.balance(t, u.ID))

	txs, err := h.store.ListTransactions(h.ctx, u.ID, domain.TransactionRedeemed, domain.PageRequest{})
	require.NoError(t, err)
	require.Len(t, txs.Items, 1)
	assert.Equal(t, app.SourceRewardRedemption, txs.Items[0].Source)
	assert.Equal(t, "Redeemed Ethereum", txs.Items[0].Description)

	_, err = h.rewards.Redeem(h.ctx, u.ID, r.ID, "0xabc")
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
	assert.Zero(t, h.balance(t, u.ID))

	history, err := h.rewards.History(h.ctx, u.ID, domain.PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, history.Total)
	assert.Equal(t, h.balance(t, u.ID), h.ledgerSum(t, u.ID))
}

func TestConcurrentRedeemsNeverOverdraw(t *testing.T) {
	h := newHarness(t)
	u := h.user(t, "alice", 350)
	r := h.reward(t, "Starter Pack", 100, true)

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.rewards.Redeem(h.ctx, u.ID, r.ID, "0xabc")
		}(i)
	}
	wg.Wait()

	ok, insufficient := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrInsufficientBalance):
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 3, ok)
	assert.Equal(t, n-3, insufficient)
	assert.Equal(t, int64(50), h.balance(t, u.ID))
	assert.Equal(t, h.balance(t, u.ID), h.ledgerSum(t, u.ID))

	history, err := h.rewards.History(h.ctx, u.ID, domain.PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, 3, history.Total)
}

func TestRedeemFailuresLeaveStateUnchanged(t *testing.T) {
	h := newHarness(t)
	u := h.user(t, "alice", 300)
	off := h.reward(t, "Retired", 100, false)
	pricey := h.reward(t, "Bitcoin", 1000, true)

	cases := []struct {
		name     string
		rewardID int64
		wallet   string
		want     error
	}{
		{"blank wallet", pricey.ID, "   ", domain.ErrInvalidArgument},
		{"unknown reward", 31337, "w", domain.ErrRewardNotFound},
		{"unavailable", off.ID, "w", domain.ErrInvalidState},
		{"underfunded", pricey.ID, "w", domain.ErrInsufficientBalance},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.rewards.Redeem(h.ctx, u.ID, tc.rewardID, tc.wallet)
			assert.ErrorIs(t, err, tc.want)
			assert.Equal(t, int64(300), h.balance(t, u.ID))
			history, err := h.rewards.History(h.ctx, u.ID, domain.PageRequest{})
			require.NoError(t, err)
			assert.Zero(t, history.Total)
		})
	}
}

func TestAvailableRewardsFlagsAffordability(t *testing.T) {
	h := newHarness(t)
	u := h.user(t, "alice", 250)
	h.reward(t, "Bitcoin", 1000, true)
	h.reward(t, "Dogecoin", 100, true)
	h.reward(t, "Hidden", 1, false)

	offers, err := h.rewards.Available(h.ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, offers, 2)
	assert.Equal(t, "Dogecoin", offers[0].Name)
	assert.True(t, offers[0].CanRedeem)
	assert.Equal(t, "Bitcoin", offers[1].Name)
	assert.False(t, offers[1].CanRedeem)
}
