package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"mindquest-service/internal/app"
	"mindquest-service/internal/domain"
)

const (
	DefaultAccessTTL  = 24 * time.Hour
	DefaultRefreshTTL = 7 * 24 * time.Hour

	typeAccess  = "access"
	typeRefresh = "refresh"
)

var errBadToken = fmt.Errorf("invalid token: %w", domain.ErrUnauthenticated)

type claims struct {
	jwt.RegisteredClaims
	Type string `json:"typ"`
}

// Tokens issues HS256 access and refresh tokens. The two kinds are signed
// with different secrets and carry a typ claim so one cannot stand in for
// the other.
type Tokens struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

var _ app.TokenIssuer = (*Tokens)(nil)

func NewTokens(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) (*Tokens, error) {
	if accessSecret == "" {
		return nil, errors.New("jwt secret is required")
	}
	if refreshSecret == "" {
		refreshSecret = accessSecret + ".refresh"
	}
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTTL
	}
	return &Tokens{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}, nil
}

func (t *Tokens) Issue(userID int64) (app.TokenPair, error) {
	access, err := t.sign(userID, typeAccess, t.accessTTL, t.accessSecret)
	if err != nil {
		return app.TokenPair{}, err
	}
	refresh, err := t.sign(userID, typeRefresh, t.refreshTTL, t.refreshSecret)
	if err != nil {
		return app.TokenPair{}, err
	}
	return app.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(t.accessTTL / time.Second),
	}, nil
}

// ParseAccess returns the user id carried by a valid access token.
func (t *Tokens) ParseAccess(token string) (int64, error) {
	return t.parse(token, typeAccess, t.accessSecret)
}

func (t *Tokens) ParseRefresh(token string) (int64, error) {
	return t.parse(token, typeRefresh, t.refreshSecret)
}

func (t *Tokens) sign(userID int64, typ string, ttl time.Duration, secret []byte) (string, error) {
	now := t.now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Type: typ,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", typ, err)
	}
	return signed, nil
}

func (t *Tokens) parse(raw, typ string, secret []byte) (int64, error) {
	var c claims
	tok, err := jwt.ParseWithClaims(raw, &c, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", tok.Header["alg"])
		}
		return secret, nil
	})
	if err != nil || !tok.Valid || c.Type != typ {
		return 0, errBadToken
	}
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, errBadToken
	}
	return id, nil
}
