package auth

import (
	"context"
	"fmt"

	googleAuthIDTokenVerifier "github.com/futurenda/google-auth-id-token-verifier"

	"mindquest-service/internal/app"
	"mindquest-service/internal/domain"
)

// GoogleVerifier checks Google ID tokens against Google's published certs
// for a single OAuth client id.
type GoogleVerifier struct {
	clientID string
	verifier googleAuthIDTokenVerifier.Verifier
}

var _ app.GoogleVerifier = (*GoogleVerifier)(nil)

func NewGoogleVerifier(clientID string) *GoogleVerifier {
	return &GoogleVerifier{clientID: clientID}
}

func (g *GoogleVerifier) Verify(ctx context.Context, idToken string) (app.GoogleIdentity, error) {
	if g.clientID == "" {
		return app.GoogleIdentity{}, fmt.Errorf("google sign-in is not configured: %w", domain.ErrUnauthenticated)
	}
	if err := ctx.Err(); err != nil {
		return app.GoogleIdentity{}, err
	}
	if err := g.verifier.VerifyIDToken(idToken, []string{g.clientID}); err != nil {
		return app.GoogleIdentity{}, fmt.Errorf("verify google token: %v: %w", err, domain.ErrUnauthenticated)
	}
	claimSet, err := googleAuthIDTokenVerifier.Decode(idToken)
	if err != nil {
		return app.GoogleIdentity{}, fmt.Errorf("decode google token: %v: %w", err, domain.ErrUnauthenticated)
	}
	if claimSet.Email == "" || claimSet.Sub == "" {
		return app.GoogleIdentity{}, fmt.Errorf("google token has no email: %w", domain.ErrUnauthenticated)
	}
	return app.GoogleIdentity{Subject: claimSet.Sub, Email: claimSet.Email, Name: claimSet.Name}, nil
}
