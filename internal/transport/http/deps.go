package http

import (
	"context"

	"github.com/go-identity-api/internal/application/onboarding"
	"github.com/go-identity-api/internal/application/otp"
	"github.com/go-identity-api/internal/application/session"
	"github.com/go-identity-api/internal/domain"
	"github.com/go-identity-api/internal/transport/http/handler"
)

// UserRepository is the minimal interface the router requires from an identity store.
type UserRepository interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	// Create must reject a duplicate email or username with
	// domain.ErrEmailTaken or domain.ErrHandleTaken.
	Create(ctx context.Context, u *domain.User) error
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
}

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	Users        UserRepository
	State        onboarding.StateStore
	OTPTransport otp.Transport
	Hasher       onboarding.Hasher
	Tokens       session.TokenProvider
	// Google is nil when Google sign-in is not configured.
	Google handler.GoogleAuth
}
