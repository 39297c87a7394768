package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"mindquest-service/internal/domain"
)

func TestTokensRoundTrip(t *testing.T) {
	tokens, err := NewTokens("access-secret", "refresh-secret", time.Hour, 2*time.Hour)
	if err != nil {
		t.Fatalf("new tokens: %v", err)
	}
	pair, err := tokens.Issue(42)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if pair.ExpiresIn != 3600 {
		t.Fatalf("expected expiresIn 3600, got %d", pair.ExpiresIn)
	}

	if id, err := tokens.ParseAccess(pair.AccessToken); err != nil || id != 42 {
		t.Fatalf("parse access: id=%d err=%v", id, err)
	}
	if id, err := tokens.ParseRefresh(pair.RefreshToken); err != nil || id != 42 {
		t.Fatalf("parse refresh: id=%d err=%v", id, err)
	}
}

func TestTokensRejectWrongKind(t *testing.T) {
	tokens, _ := NewTokens("access-secret", "refresh-secret", time.Hour, time.Hour)
	pair, _ := tokens.Issue(7)

	if _, err := tokens.ParseRefresh(pair.AccessToken); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("access token accepted as refresh: %v", err)
	}
	if _, err := tokens.ParseAccess(pair.RefreshToken); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("refresh token accepted as access: %v", err)
	}
	if _, err := tokens.ParseAccess("garbage"); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("garbage accepted: %v", err)
	}
}

func TestTokensRejectOtherSecretAndExpired(t *testing.T) {
	issuer, _ := NewTokens("one", "", time.Hour, time.Hour)
	other, _ := NewTokens("two", "", time.Hour, time.Hour)
	pair, _ := issuer.Issue(1)
	if _, err := other.ParseAccess(pair.AccessToken); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("token signed with another secret accepted: %v", err)
	}

	issuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	stale, _ := issuer.Issue(1)
	if _, err := issuer.ParseAccess(stale.AccessToken); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expired token accepted: %v", err)
	}
}

func TestNewTokensRequiresSecret(t *testing.T) {
	if _, err := NewTokens("", "", 0, 0); err == nil {
		t.Fatalf("expected error for empty secret")
	}
}

func TestHasher(t *testing.T) {
	h := NewHasher(4)
	hash, err := h.Hash("s3cret!")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !strings.HasPrefix(hash, "$2a$04$") {
		t.Fatalf("unexpected hash format %q", hash)
	}
	if err := h.Compare(hash, "s3cret!"); err != nil {
		t.Fatalf("compare: %v", err)
	}
	if err := h.Compare(hash, "wrong"); err == nil {
		t.Fatalf("expected mismatch")
	}
}

func TestGoogleVerifierUnconfigured(t *testing.T) {
	_, err := NewGoogleVerifier("").Verify(context.Background(), "token")
	if !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
}
