// Package account creates identities and resolves their usernames.
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-identity-api/internal/domain"
	"github.com/go-identity-api/internal/pkg/avatar"
	"github.com/go-identity-api/internal/pkg/handle"
	"github.com/go-identity-api/internal/pkg/id"
)

const maxHandleAttempts = 8

// UserStore is the subset of the identity repository used on creation.
type UserStore interface {
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
}

type Creator struct {
	users  UserStore
	suffix func(base string) string
	now    func() time.Time
}

func NewCreator(users UserStore) *Creator {
	return &Creator{users: users, suffix: handle.WithSuffix, now: time.Now}
}

// Create fills in id, timestamps, a fallback avatar and a unique username,
// then inserts u. The username probe only skips obvious collisions; a
// domain.ErrHandleTaken from the store triggers another suffixed attempt.
// domain.ErrEmailTaken is returned as is.
func (c *Creator) Create(ctx context.Context, u *domain.User) error {
	if u.UserID == "" {
		u.UserID = id.New()
	}
	now := c.now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	if u.ProfileImgURL == "" {
		u.ProfileImgURL = avatar.RandomDarkColor()
	}

	base := handle.Base(u.FirstName, u.LastName)
	candidate := base
	for attempt := 0; attempt < maxHandleAttempts; attempt++ {
		if attempt > 0 {
			candidate = c.suffix(base)
		}
		_, err := c.users.GetByUsername(ctx, candidate)
		if err == nil {
			continue
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		u.Username = candidate
		err = c.users.Create(ctx, u)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrHandleTaken) {
			return err
		}
		slog.Debug("username claimed concurrently, retrying", "username", candidate)
	}
	u.Username = ""
	return fmt.Errorf("no free username for %q after %d attempts", base, maxHandleAttempts)
}
