package session

import (
	"context"
	"fmt"
	"time"

	"github.com/go-identity-api/internal/domain"
	jwtinfra "github.com/go-identity-api/internal/infrastructure/jwt"
)

// TokenProvider signs and verifies session tokens.
type TokenProvider interface {
	Sign(userID, email string) (string, time.Time, error)
	Verify(token string) (*jwtinfra.Claims, error)
}

// Issuer mints session tokens for identities and authenticates inbound ones.
// No session state is kept server-side.
type Issuer struct {
	tokens TokenProvider
}

func NewIssuer(tokens TokenProvider) *Issuer {
	return &Issuer{tokens: tokens}
}

func (i *Issuer) Issue(_ context.Context, u *domain.User) (*domain.Session, error) {
	if u == nil || u.UserID == "" {
		return nil, fmt.Errorf("issue session: identity has no id")
	}
	tok, exp, err := i.tokens.Sign(u.UserID, u.Email)
	if err != nil {
		return nil, fmt.Errorf("sign session token: %w", err)
	}
	return &domain.Session{Token: tok, ExpiresAt: exp, User: u}, nil
}

// Authenticate verifies token and returns its claims. Missing, malformed,
// expired and wrongly signed tokens all yield domain.ErrUnauthenticated.
func (i *Issuer) Authenticate(_ context.Context, token string) (*jwtinfra.Claims, error) {
	if token == "" {
		return nil, fmt.Errorf("missing session token: %w", domain.ErrUnauthenticated)
	}
	claims, err := i.tokens.Verify(token)
	if err != nil {
		return nil, fmt.Errorf("invalid session token: %w", domain.ErrUnauthenticated)
	}
	return claims, nil
}
