package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"mindquest-service/internal/domain"
)

const minPasswordLength = 6

// TokenPair is an access token and the refresh token that renews it.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// TokenIssuer signs and parses identity tokens.
type TokenIssuer interface {
	Issue(userID int64) (TokenPair, error)
	// ParseRefresh returns the user id of a valid refresh token.
	ParseRefresh(token string) (int64, error)
}

// PasswordHasher hashes and checks passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

// GoogleIdentity is the verified subject of a Google ID token.
type GoogleIdentity struct {
	Subject string
	Email   string
	Name    string
}

// GoogleVerifier validates Google ID tokens.
type GoogleVerifier interface {
	Verify(ctx context.Context, idToken string) (GoogleIdentity, error)
}

// AuthResult is returned by every sign-in path.
type AuthResult struct {
	User   domain.User `json:"user"`
	Tokens TokenPair   `json:"tokens"`
}

// AuthService registers and signs in users.
type AuthService struct {
	store  Store
	tokens TokenIssuer
	hasher PasswordHasher
	google GoogleVerifier
	admins map[string]bool
	log    *slog.Logger
	now    func() time.Time
}

func NewAuthService(store Store, tokens TokenIssuer, hasher PasswordHasher, google GoogleVerifier, adminEmails []string, log *slog.Logger) *AuthService {
	admins := make(map[string]bool, len(adminEmails))
	for _, e := range adminEmails {
		admins[strings.ToLower(strings.TrimSpace(e))] = true
	}
	return &AuthService{
		store:  store,
		tokens: tokens,
		hasher: hasher,
		google: google,
		admins: admins,
		log:    log,
		now:    time.Now,
	}
}

func (s *AuthService) Register(ctx context.Context, name, email, password string) (AuthResult, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" {
		return AuthResult{}, fmt.Errorf("name is required: %w", domain.ErrInvalidArgument)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return AuthResult{}, fmt.Errorf("invalid email: %w", domain.ErrInvalidArgument)
	}
	if len(password) < minPasswordLength {
		return AuthResult{}, fmt.Errorf("password must have at least %d characters: %w", minPasswordLength, domain.ErrInvalidArgument)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return AuthResult{}, fmt.Errorf("hash password: %w", err)
	}
	user := s.newUser(name, email, domain.ProviderEmail)
	user.PasswordHash = hash
	if err := s.store.CreateUser(ctx, &user); err != nil {
		return AuthResult{}, err
	}
	s.log.Info("user registered", "user", user.ID, "provider", user.Provider)
	return s.issue(user)
}

func (s *AuthService) Login(ctx context.Context, email, password string) (AuthResult, error) {
	user, err := s.store.GetUserByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, domain.ErrUserNotFound) {
		return AuthResult{}, domain.ErrInvalidCredentials
	}
	if err != nil {
		return AuthResult{}, err
	}
	if user.PasswordHash == "" || s.hasher.Compare(user.PasswordHash, password) != nil {
		return AuthResult{}, domain.ErrInvalidCredentials
	}
	if user.Status != domain.UserActive {
		return AuthResult{}, fmt.Errorf("account suspended: %w", domain.ErrUnauthenticated)
	}
	return s.touchAndIssue(ctx, user)
}

// LoginGoogle signs in with a Google ID token, creating the user on first use.
func (s *AuthService) LoginGoogle(ctx context.Context, idToken string) (AuthResult, error) {
	identity, err := s.google.Verify(ctx, idToken)
	if err != nil {
		return AuthResult{}, fmt.Errorf("google token: %v: %w", err, domain.ErrUnauthenticated)
	}
	email := strings.ToLower(identity.Email)

	user, err := s.store.GetUserByEmail(ctx, email)
	switch {
	case errors.Is(err, domain.ErrUserNotFound):
		name := identity.Name
		if name == "" {
			name = strings.SplitN(email, "@", 2)[0]
		}
		user = s.newUser(name, email, domain.ProviderGoogle)
		if err := s.store.CreateUser(ctx, &user); err != nil {
			return AuthResult{}, err
		}
		s.log.Info("user registered", "user", user.ID, "provider", user.Provider)
		return s.issue(user)
	case err != nil:
		return AuthResult{}, err
	}
	if user.Status != domain.UserActive {
		return AuthResult{}, fmt.Errorf("account suspended: %w", domain.ErrUnauthenticated)
	}
	return s.touchAndIssue(ctx, user)
}

// Refresh exchanges a refresh token for a new pair.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (AuthResult, error) {
	userID, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return AuthResult{}, fmt.Errorf("refresh token: %v: %w", err, domain.ErrUnauthenticated)
	}
	user, err := s.store.GetUser(ctx, userID)
	if errors.Is(err, domain.ErrUserNotFound) {
		return AuthResult{}, fmt.Errorf("refresh token: %w", domain.ErrUnauthenticated)
	}
	if err != nil {
		return AuthResult{}, err
	}
	return s.issue(user)
}

func (s *AuthService) newUser(name, email string, provider domain.AuthProvider) domain.User {
	now := s.now()
	user := domain.User{
		Name:       name,
		Email:      email,
		Role:       domain.RoleUser,
		Level:      1,
		Provider:   provider,
		Status:     domain.UserActive,
		LastActive: now,
		CreatedAt:  now,
	}
	if s.admins[email] {
		user.Role = domain.RoleAdmin
		user.Permissions = domain.AllPermissions()
	}
	return user
}

func (s *AuthService) touchAndIssue(ctx context.Context, user domain.User) (AuthResult, error) {
	now := s.now()
	if err := s.store.TouchUser(ctx, user.ID, now); err != nil {
		return AuthResult{}, err
	}
	user.LastActive = now
	return s.issue(user)
}

func (s *AuthService) issue(user domain.User) (AuthResult, error) {
	pair, err := s.tokens.Issue(user.ID)
	if err != nil {
		return AuthResult{}, fmt.Errorf("issue tokens: %w", err)
	}
	return AuthResult{User: user, Tokens: pair}, nil
}
