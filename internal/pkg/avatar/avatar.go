package avatar

import (
	"crypto/rand"
	"fmt"
)

// RandomDarkColor returns a "#rrggbb" colour with every channel below 0x80.
// Accounts without a picture use it as their profile image.
func RandomDarkColor() string {
	var b [3]byte
	_, _ = rand.Read(b[:])
	return fmt.Sprintf("#%02x%02x%02x", b[0]&0x7f, b[1]&0x7f, b[2]&0x7f)
}
