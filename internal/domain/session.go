package domain

import "time"

// Session is the outcome of a successful sign-in. Token is never serialised
// into a response body; it travels in the session cookie.
type Session struct {
	Token     string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
	User      *User     `json:"user"`
}
