package token

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
)

// NewOTP returns a uniformly random code in [0, 10^digits).
func NewOTP(digits int) (int, error) {
	if digits < 1 || digits > 9 {
		return 0, fmt.Errorf("otp digits out of range: %d", digits)
	}
	limit := big.NewInt(1)
	for i := 0; i < digits; i++ {
		limit.Mul(limit, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return 0, fmt.Errorf("generate otp: %w", err)
	}
	return int(n.Int64()), nil
}

// FormatOTP renders code zero-padded to digits characters.
func FormatOTP(code, digits int) string {
	return fmt.Sprintf("%0*d", digits, code)
}

// NewState generates a cryptographically random 64-character hex token used
// as the OAuth state parameter.
func NewState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	return hex.EncodeToString(b), nil
}
