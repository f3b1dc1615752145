package domain

import (
	"fmt"
	"time"
)

// Flow names an OTP-gated flow. Ephemeral keys are namespaced by flow so state
// staged for one flow is never visible to another.
type Flow string

const (
	FlowSignup Flow = "createaccount"
	FlowReset  Flow = "forgotpass"
)

// AuthTypeLogin is accepted by the identify step only; password login does not
// go through an OTP.
const AuthTypeLogin = "login"

// ParseFlow maps a client supplied auth type to a Flow. Empty means signup.
func ParseFlow(s string) (Flow, error) {
	switch Flow(s) {
	case "", FlowSignup:
		return FlowSignup, nil
	case FlowReset:
		return FlowReset, nil
	}
	return "", fmt.Errorf("unknown auth type %q: %w", s, ErrBadRequest)
}

// Next page identifiers returned to the client after each step.
const (
	NextPageVerifyOTP      = "verifyotp"
	NextPagePassword       = "password"
	NextPageNewPassword    = "newpass"
	NextPageVerifyPassword = "verifypassword"
	NextPageConfirmYou     = "confirmyou"
	NextPageSignin         = "signin"
)

// StateKind is the second segment of an ephemeral key.
type StateKind string

const (
	StateUnverified StateKind = "unverified"
	StateOTP        StateKind = "otp"
	StateVerified   StateKind = "verified"
)

// StateKey builds the ephemeral store key for one piece of flow state.
func StateKey(flow Flow, kind StateKind, email string) string {
	return fmt.Sprintf("%s:%s:%s", flow, kind, email)
}

// PendingSignup holds the profile fields claimed for an email while it awaits
// OTP verification. The same payload, with Verified set, is copied to the
// verified key once the code matches.
type PendingSignup struct {
	Email       string `json:"email"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	DateOfBirth string `json:"date_of_birth,omitempty"`
	Verified    bool   `json:"verified"`
}

// OneTimeCode is the staged OTP for an email.
type OneTimeCode struct {
	Code     int   `json:"otp"`
	Digits   int   `json:"digits"`
	IssuedAt int64 `json:"issued_at"` // Unix seconds
}

type VerifyOTPRequest struct {
	Email    string `json:"email" validate:"required,email"`
	OTP      string `json:"otp" validate:"required"`
	AuthType string `json:"auth_type"`
}

type ResendOTPRequest struct {
	Email    string `json:"email" validate:"required,email"`
	AuthType string `json:"auth_type"`
}

type ConfirmMailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// StepResult is returned by every flow step that does not issue a session.
type StepResult struct {
	Email    string `json:"email"`
	NextPage string `json:"next_page"`
}

// ParseDateOfBirth accepts YYYY-MM-DD and MM/DD/YYYY. Empty input yields nil.
func ParseDateOfBirth(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{"2006-01-02", "01/02/2006", "1/2/2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("date_of_birth must be YYYY-MM-DD or MM/DD/YYYY: %w", ErrBadRequest)
}
