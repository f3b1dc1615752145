package password

import (
	"strings"
	"testing"

	"github.com/go-identity-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcrypt_RoundTrip(t *testing.T) {
	h := NewBcrypt(bcrypt.MinCost)
	hash, err := h.Hash("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", hash)
	assert.True(t, h.Verify("correct horse", hash))
	assert.False(t, h.Verify("wrong horse", hash))
}

func TestBcrypt_SaltedHashesDiffer(t *testing.T) {
	h := NewBcrypt(bcrypt.MinCost)
	a, err := h.Hash("same")
	require.NoError(t, err)
	b, err := h.Hash("same")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestBcrypt_EmptyHashNeverVerifies(t *testing.T) {
	assert.False(t, NewBcrypt(bcrypt.MinCost).Verify("", ""))
}

func TestNewBcrypt_ClampsCost(t *testing.T) {
	assert.Equal(t, bcrypt.DefaultCost, NewBcrypt(0).cost)
	assert.Equal(t, bcrypt.MaxCost, NewBcrypt(99).cost)
}

func TestBcrypt_MultibyteOverLimitIsBadRequest(t *testing.T) {
	// 40 characters, 80 bytes.
	_, err := NewBcrypt(bcrypt.MinCost).Hash(strings.Repeat("é", 40))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrBadRequest)
	assert.NotErrorIs(t, err, bcrypt.ErrPasswordTooLong)
}

func TestBcrypt_ExactlySeventyTwoBytes(t *testing.T) {
	_, err := NewBcrypt(bcrypt.MinCost).Hash(strings.Repeat("é", 36))
	assert.NoError(t, err)
}
