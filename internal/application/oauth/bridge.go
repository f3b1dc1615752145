// Package oauth signs in identities asserted by an external provider.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-identity-api/internal/domain"
)

// ExternalProfile is what a provider vouches for once its assertion has been
// verified.
type ExternalProfile struct {
	Provider  string
	Subject   string
	Email     string
	FirstName string
	LastName  string
	PhotoURL  string
}

type UserLookup interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

type AccountCreator interface {
	Create(ctx context.Context, u *domain.User) error
}

type SessionIssuer interface {
	Issue(ctx context.Context, u *domain.User) (*domain.Session, error)
}

type Bridge struct {
	users    UserLookup
	accounts AccountCreator
	sessions SessionIssuer
}

func NewBridge(users UserLookup, accounts AccountCreator, sessions SessionIssuer) *Bridge {
	return &Bridge{users: users, accounts: accounts, sessions: sessions}
}

// CompleteExternalSignIn finds the identity for the verified email, creating
// it without a password on first sign-in, and issues a session. OTP state is
// never consulted.
func (b *Bridge) CompleteExternalSignIn(ctx context.Context, p ExternalProfile) (*domain.Session, error) {
	email := strings.ToLower(strings.TrimSpace(p.Email))
	if email == "" {
		return nil, fmt.Errorf("%s profile has no email: %w", p.Provider, domain.ErrUnauthenticated)
	}

	u, err := b.users.GetByEmail(ctx, email)
	if err == nil {
		return b.sessions.Issue(ctx, u)
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	firstName := strings.TrimSpace(p.FirstName)
	if firstName == "" {
		firstName, _, _ = strings.Cut(email, "@")
	}
	u = &domain.User{
		Email:         email,
		FirstName:     firstName,
		LastName:      strings.TrimSpace(p.LastName),
		ProfileImgURL: p.PhotoURL,
		AuthProvider:  p.Provider,
	}
	if err := b.accounts.Create(ctx, u); err != nil {
		if !errors.Is(err, domain.ErrEmailTaken) {
			return nil, err
		}
		// Another first sign-in for the same email won the insert.
		if u, err = b.users.GetByEmail(ctx, email); err != nil {
			return nil, err
		}
	}
	return b.sessions.Issue(ctx, u)
}
