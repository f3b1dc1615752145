// Package handle derives usernames from profile names.
package handle

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"unicode"
)

// Base is last name followed by first name with anything but letters and
// digits removed, e.g. "Smith", "John" -> "SmithJohn". A missing last name is
// replaced by an underscore.
func Base(firstName, lastName string) string {
	last := clean(lastName)
	if last == "" {
		last = "_"
	}
	return last + clean(firstName)
}

// WithSuffix appends a random 2-4 digit number to base.
func WithSuffix(base string) string {
	n, err := rand.Int(rand.Reader, big.NewInt(9990))
	if err != nil {
		// crypto/rand does not fail on supported platforms
		panic(fmt.Sprintf("handle suffix: %v", err))
	}
	return fmt.Sprintf("%s%d", base, n.Int64()+10)
}

func clean(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}
