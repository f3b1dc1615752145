package password

import (
	"errors"
	"fmt"

	"github.com/go-identity-api/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

// Bcrypt hashes and verifies passwords. The comparison cost is dominated by
// the key derivation, so a wrong password takes as long as a right one.
type Bcrypt struct {
	cost int
}

// NewBcrypt returns a hasher with the given cost, clamped to bcrypt's bounds.
func NewBcrypt(cost int) *Bcrypt {
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &Bcrypt{cost: cost}
}

// Hash rejects passwords over bcrypt's 72-byte input limit with
// domain.ErrBadRequest. Request validation counts characters, not bytes.
func (b *Bcrypt) Hash(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), b.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", fmt.Errorf("password must not exceed 72 bytes: %w", domain.ErrBadRequest)
	}
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func (b *Bcrypt) Verify(plain, hash string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
