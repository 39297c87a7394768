package app_test

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mindquest-service/internal/app"
	"mindquest-service/internal/domain"
)

type plainHasher struct{}

func (plainHasher) Hash(pw string) (string, error) { return "h:" + pw, nil }

func (plainHasher) Compare(hash, pw string) error {
	if hash != "h:"+pw {
		return errors.New("mismatch")
	}
	return nil
}

type fakeTokens struct{}

func (fakeTokens) Issue(userID int64) (app.TokenPair, error) {
	return app.TokenPair{
		AccessToken:  fmt.Sprintf("access-%d", userID),
		RefreshToken: fmt.Sprintf("refresh-%d", userID),
		ExpiresIn:    3600,
	}, nil
}

func (fakeTokens) ParseRefresh(token string) (int64, error) {
	raw, ok := strings.CutPrefix(token, "refresh-")
	if !ok {
		return 0, errors.New("not a refresh token")
	}
	return strconv.ParseInt(raw, 10, 64)
}

type fakeGoogle map[string]app.GoogleIdentity

func (g fakeGoogle) Verify(_ context.Context, token string) (app.GoogleIdentity, error) {
	id, ok := g[token]
	if !ok {
		return app.GoogleIdentity{}, errors.New("bad token")
	}
	return id, nil
}

func newAuth(h *harness) *app.AuthService {
	google := fakeGoogle{"tok-bob": {Subject: "g-1", Email: "Bob@Example.com", Name: "Bob"}}
	return app.NewAuthService(h.store, fakeTokens{}, plainHasher{}, google, []string{"root@example.com"}, h.log)
}

func TestRegisterAndLogin(t *testing.T) {
	h := newHarness(t)
	auth := newAuth(h)

	reg, err := auth.Register(h.ctx, "Alice", "Alice@Example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", reg.User.Email)
	assert.Equal(t, domain.RoleUser, reg.User.Role)
	assert.Equal(t, 1, reg.User.Level)
	assert.Equal(t, fmt.Sprintf("access-%d", reg.User.ID), reg.Tokens.AccessToken)

	_, err = auth.Register(h.ctx, "Alice", "alice@example.com", "secret1")
	assert.ErrorIs(t, err, domain.ErrConflict)

	login, err := auth.Login(h.ctx, "alice@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, login.User.ID)

	_, err = auth.Login(h.ctx, "alice@example.com", "wrong")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
	_, err = auth.Login(h.ctx, "nobody@example.com", "secret1")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestRegisterValidation(t *testing.T) {
	h := newHarness(t)
	auth := newAuth(h)

	_, err := auth.Register(h.ctx, "", "a@example.com", "secret1")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	_, err = auth.Register(h.ctx, "A", "not-an-email", "secret1")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	_, err = auth.Register(h.ctx, "A", "a@example.com", "short")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestAdminEmailGetsAdminRole(t *testing.T) {
	h := newHarness(t)
	res, err := newAuth(h).Register(h.ctx, "Root", "root@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, res.User.Role)
	assert.ElementsMatch(t, domain.AllPermissions(), res.User.Permissions)
}

func TestLoginGoogleCreatesUserOnce(t *testing.T) {
	h := newHarness(t)
	auth := newAuth(h)

	first, err := auth.LoginGoogle(h.ctx, "tok-bob")
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderGoogle, first.User.Provider)
	assert.Equal(t, "bob@example.com", first.User.Email)

	second, err := auth.LoginGoogle(h.ctx, "tok-bob")
	require.NoError(t, err)
	assert.Equal(t, first.User.ID, second.User.ID)

	_, err = auth.LoginGoogle(h.ctx, "forged")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	// Google accounts have no password.
	_, err = auth.Login(h.ctx, "bob@example.com", "")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestRefresh(t *testing.T) {
	h := newHarness(t)
	auth := newAuth(h)
	reg, err := auth.Register(h.ctx, "Alice", "alice@example.com", "secret1")
	require.NoError(t, err)

	res, err := auth.Refresh(h.ctx, reg.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, res.User.ID)

	_, err = auth.Refresh(h.ctx, reg.Tokens.AccessToken)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
	_, err = auth.Refresh(h.ctx, "refresh-987654")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}
