package onboarding

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-identity-api/internal/domain"
	pkgtoken "github.com/go-identity-api/internal/pkg/token"
	"github.com/go-identity-api/internal/pkg/validate"
)

// UserStore is the identity repository as seen by the onboarding flows.
type UserStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
}

// StateStore holds TTL-bound flow state. A missing or expired key is
// reported as ok == false, not as an error.
type StateStore interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, key string) error
}

type OTPSender interface {
	Send(ctx context.Context, flow domain.Flow, email string) error
}

type Hasher interface {
	Hash(plain string) (string, error)
	Verify(plain, hash string) bool
}

type SessionIssuer interface {
	Issue(ctx context.Context, u *domain.User) (*domain.Session, error)
}

type AccountCreator interface {
	Create(ctx context.Context, u *domain.User) error
}

type Service interface {
	RequestSignup(ctx context.Context, req domain.SignupRequest) (*domain.StepResult, error)
	GetLoginCreds(ctx context.Context, req domain.LoginCredsRequest) (*domain.StepResult, error)
	ConfirmMail(ctx context.Context, req domain.ConfirmMailRequest) (*domain.StepResult, error)
	VerifyOTP(ctx context.Context, req domain.VerifyOTPRequest) (*domain.StepResult, error)
	ResendOTP(ctx context.Context, req domain.ResendOTPRequest) (*domain.StepResult, error)
	CreateAccount(ctx context.Context, req domain.CreateAccountRequest) (*domain.Session, error)
	CheckLoginPassword(ctx context.Context, req domain.PasswordLoginRequest) (*domain.Session, error)
	ResetPassword(ctx context.Context, req domain.ResetPasswordRequest) (*domain.Session, error)
	EditProfile(ctx context.Context, userID string, req domain.EditProfileRequest) (*domain.User, error)
	CurrentUser(ctx context.Context, userID string) (*domain.User, error)
}

// ServiceDeps groups the collaborators required by the onboarding service.
type ServiceDeps struct {
	Users         UserStore
	State         StateStore
	OTP           OTPSender
	Hasher        Hasher
	Sessions      SessionIssuer
	Accounts      AccountCreator
	UnverifiedTTL time.Duration
	VerifiedTTL   time.Duration
}

type service struct {
	users         UserStore
	state         StateStore
	otp           OTPSender
	hasher        Hasher
	sessions      SessionIssuer
	accounts      AccountCreator
	unverifiedTTL time.Duration
	verifiedTTL   time.Duration
}

func NewService(deps ServiceDeps) Service {
	return &service{
		users:         deps.Users,
		state:         deps.State,
		otp:           deps.OTP,
		hasher:        deps.Hasher,
		sessions:      deps.Sessions,
		accounts:      deps.Accounts,
		unverifiedTTL: deps.UnverifiedTTL,
		verifiedTTL:   deps.VerifiedTTL,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func badRequest(err error) error {
	return fmt.Errorf("%s: %w", err.Error(), domain.ErrBadRequest)
}

// RequestSignup stages the claimed profile for email and sends a code.
func (s *service) RequestSignup(ctx context.Context, req domain.SignupRequest) (*domain.StepResult, error) {
	req.Email = normalizeEmail(req.Email)
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	if err := validate.Struct(req); err != nil {
		return nil, badRequest(err)
	}
	dob, err := domain.ParseDateOfBirth(strings.TrimSpace(req.DateOfBirth))
	if err != nil {
		return nil, err
	}
	if err := s.ensureNoAccount(ctx, req.Email); err != nil {
		return nil, err
	}
	pending := domain.PendingSignup{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	}
	if dob != nil {
		pending.DateOfBirth = dob.Format("2006-01-02")
	}
	if err := s.putJSON(ctx, domain.StateKey(domain.FlowSignup, domain.StateUnverified, req.Email), pending, s.unverifiedTTL); err != nil {
		return nil, err
	}
	if err := s.otp.Send(ctx, domain.FlowSignup, req.Email); err != nil {
		return nil, err
	}
	return &domain.StepResult{Email: req.Email, NextPage: domain.NextPageVerifyOTP}, nil
}

// GetLoginCreds resolves an email or username to the account's email and
// tells the client which step comes next. Nothing is staged or sent.
func (s *service) GetLoginCreds(ctx context.Context, req domain.LoginCredsRequest) (*domain.StepResult, error) {
	req.Identifier = strings.TrimSpace(req.Identifier)
	if err := validate.Struct(req); err != nil {
		return nil, badRequest(err)
	}
	u, err := s.findByIdentifier(ctx, req.Identifier)
	if err != nil {
		return nil, err
	}
	next := domain.NextPageVerifyPassword
	if req.AuthType == string(domain.FlowReset) {
		next = domain.NextPageConfirmYou
	}
	return &domain.StepResult{Email: u.Email, NextPage: next}, nil
}

// ConfirmMail starts the reset flow for an existing account by staging its
// profile and sending a code.
func (s *service) ConfirmMail(ctx context.Context, req domain.ConfirmMailRequest) (*domain.StepResult, error) {
	req.Email = normalizeEmail(req.Email)
	if err := validate.Struct(req); err != nil {
		return nil, badRequest(err)
	}
	u, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	pending := domain.PendingSignup{
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
	if u.DateOfBirth != nil {
		pending.DateOfBirth = u.DateOfBirth.Format("2006-01-02")
	}
	if err := s.putJSON(ctx, domain.StateKey(domain.FlowReset, domain.StateUnverified, u.Email), pending, s.unverifiedTTL); err != nil {
		return nil, err
	}
	if err := s.otp.Send(ctx, domain.FlowReset, u.Email); err != nil {
		return nil, err
	}
	return &domain.StepResult{Email: u.Email, NextPage: domain.NextPageVerifyOTP}, nil
}

// VerifyOTP checks the submitted code against the one staged for the flow.
// On a match the code is consumed and the pending state is promoted to
// verified.
func (s *service) VerifyOTP(ctx context.Context, req domain.VerifyOTPRequest) (*domain.StepResult, error) {
	flow, err := domain.ParseFlow(req.AuthType)
	if err != nil {
		return nil, err
	}
	req.Email = normalizeEmail(req.Email)
	req.OTP = strings.TrimSpace(req.OTP)
	if err := validate.Struct(req); err != nil {
		return nil, badRequest(err)
	}
	if !isDigits(req.OTP) {
		return nil, fmt.Errorf("otp must be numeric: %w", domain.ErrBadRequest)
	}

	otpKey := domain.StateKey(flow, domain.StateOTP, req.Email)
	var staged domain.OneTimeCode
	found, err := s.getJSON(ctx, otpKey, &staged)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("otp expired or was never requested: %w", domain.ErrBadRequest)
	}
	want := pkgtoken.FormatOTP(staged.Code, staged.Digits)
	if subtle.ConstantTimeCompare([]byte(req.OTP), []byte(want)) != 1 {
		return nil, fmt.Errorf("incorrect otp: %w", domain.ErrBadRequest)
	}
	if flow == domain.FlowSignup {
		if err := s.ensureNoAccount(ctx, req.Email); err != nil {
			return nil, err
		}
	}

	unverifiedKey := domain.StateKey(flow, domain.StateUnverified, req.Email)
	var pending domain.PendingSignup
	found, err = s.getJSON(ctx, unverifiedKey, &pending)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("verification session expired, start again: %w", domain.ErrBadRequest)
	}
	pending.Verified = true
	if err := s.putJSON(ctx, domain.StateKey(flow, domain.StateVerified, req.Email), pending, s.verifiedTTL); err != nil {
		return nil, err
	}
	s.discard(ctx, otpKey)
	s.discard(ctx, unverifiedKey)

	next := domain.NextPagePassword
	if flow == domain.FlowReset {
		next = domain.NextPageNewPassword
	}
	return &domain.StepResult{Email: req.Email, NextPage: next}, nil
}

// ResendOTP replaces the staged code for a flow that is still awaiting
// verification.
func (s *service) ResendOTP(ctx context.Context, req domain.ResendOTPRequest) (*domain.StepResult, error) {
	flow, err := domain.ParseFlow(req.AuthType)
	if err != nil {
		return nil, err
	}
	req.Email = normalizeEmail(req.Email)
	if err := validate.Struct(req); err != nil {
		return nil, badRequest(err)
	}
	_, found, err := s.state.Get(ctx, domain.StateKey(flow, domain.StateUnverified, req.Email))
	if err != nil {
		return nil, fmt.Errorf("read pending state: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("no verification in progress for this email: %w", domain.ErrBadRequest)
	}
	if err := s.otp.Send(ctx, flow, req.Email); err != nil {
		return nil, err
	}
	return &domain.StepResult{Email: req.Email, NextPage: domain.NextPageVerifyOTP}, nil
}

// CreateAccount turns a verified signup into an identity and signs it in.
// The verified state is not consumed; it expires on its own, so a repeated
// call for the same email fails with a conflict.
func (s *service) CreateAccount(ctx context.Context, req domain.CreateAccountRequest) (*domain.Session, error) {
	req.Email = normalizeEmail(req.Email)
	if err := validate.Struct(req); err != nil {
		return nil, badRequest(err)
	}
	var pending domain.PendingSignup
	found, err := s.getJSON(ctx, domain.StateKey(domain.FlowSignup, domain.StateVerified, req.Email), &pending)
	if err != nil {
		return nil, err
	}
	if !found || !pending.Verified {
		return nil, fmt.Errorf("email is not verified: %w", domain.ErrBadRequest)
	}
	if err := s.ensureNoAccount(ctx, req.Email); err != nil {
		return nil, err
	}
	dob, err := domain.ParseDateOfBirth(pending.DateOfBirth)
	if err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}
	u := &domain.User{
		Email:        req.Email,
		FirstName:    pending.FirstName,
		LastName:     pending.LastName,
		DateOfBirth:  dob,
		PasswordHash: hash,
		AuthProvider: domain.ProviderLocal,
	}
	if err := s.accounts.Create(ctx, u); err != nil {
		return nil, err
	}
	return s.sessions.Issue(ctx, u)
}

func (s *service) CheckLoginPassword(ctx context.Context, req domain.PasswordLoginRequest) (*domain.Session, error) {
	req.Email = normalizeEmail(req.Email)
	if err := validate.Struct(req); err != nil {
		return nil, badRequest(err)
	}
	u, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if !u.HasPassword() {
		return nil, fmt.Errorf("account has no password, sign in with %s: %w", u.AuthProvider, domain.ErrValidation)
	}
	if !s.hasher.Verify(req.Password, u.PasswordHash) {
		return nil, fmt.Errorf("incorrect password: %w", domain.ErrBadRequest)
	}
	return s.sessions.Issue(ctx, u)
}

// ResetPassword sets a new password once the reset code has been verified and
// signs the account in. The verified reset state is consumed.
func (s *service) ResetPassword(ctx context.Context, req domain.ResetPasswordRequest) (*domain.Session, error) {
	req.Email = normalizeEmail(req.Email)
	if err := validate.Struct(req); err != nil {
		return nil, badRequest(err)
	}
	u, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	verifiedKey := domain.StateKey(domain.FlowReset, domain.StateVerified, req.Email)
	var pending domain.PendingSignup
	found, err := s.getJSON(ctx, verifiedKey, &pending)
	if err != nil {
		return nil, err
	}
	if !found || !pending.Verified {
		return nil, fmt.Errorf("password reset was not verified: %w", domain.ErrBadRequest)
	}
	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}
	if err := s.users.Update(ctx, u.UserID, map[string]interface{}{"password_hash": hash}); err != nil {
		return nil, err
	}
	s.discard(ctx, verifiedKey)

	updated, err := s.users.Get(ctx, u.UserID)
	if err != nil {
		return nil, err
	}
	return s.sessions.Issue(ctx, updated)
}

// EditProfile replaces the editable fields of the caller's profile. Optional
// fields left out of the request keep their stored value.
func (s *service) EditProfile(ctx context.Context, userID string, req domain.EditProfileRequest) (*domain.User, error) {
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.ProfileImgURL = strings.TrimSpace(req.ProfileImgURL)
	if err := validate.Struct(req); err != nil {
		return nil, badRequest(err)
	}
	if _, err := s.users.Get(ctx, userID); err != nil {
		return nil, err
	}
	updates := map[string]interface{}{
		"first_name":      req.FirstName,
		"profile_img_url": req.ProfileImgURL,
	}
	if req.LastName != nil {
		updates["last_name"] = strings.TrimSpace(*req.LastName)
	}
	if req.CoverImgURL != nil {
		updates["cover_img_url"] = *req.CoverImgURL
	}
	if req.Bio != nil {
		updates["bio"] = *req.Bio
	}
	if req.Location != nil {
		updates["location"] = *req.Location
	}
	if err := s.users.Update(ctx, userID, updates); err != nil {
		return nil, err
	}
	return s.users.Get(ctx, userID)
}

// CurrentUser loads the identity behind an authenticated session. A token
// whose subject no longer exists is treated as unauthenticated.
func (s *service) CurrentUser(ctx context.Context, userID string) (*domain.User, error) {
	u, err := s.users.Get(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("session identity no longer exists: %w", domain.ErrUnauthenticated)
	}
	return u, err
}

func (s *service) ensureNoAccount(ctx context.Context, email string) error {
	_, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return fmt.Errorf("an account already exists for this email: %w", domain.ErrConflict)
	case errors.Is(err, domain.ErrNotFound):
		return nil
	default:
		return err
	}
}

func (s *service) findByIdentifier(ctx context.Context, identifier string) (*domain.User, error) {
	if strings.Contains(identifier, "@") {
		return s.users.GetByEmail(ctx, normalizeEmail(identifier))
	}
	return s.users.GetByUsername(ctx, identifier)
}

func (s *service) putJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := s.state.Set(ctx, key, raw, ttl); err != nil {
		return fmt.Errorf("write flow state: %w", err)
	}
	return nil
}

func (s *service) getJSON(ctx context.Context, key string, v interface{}) (bool, error) {
	raw, found, err := s.state.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("read flow state: %w", err)
	}
	if !found {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("decode flow state %s: %w", key, err)
	}
	return true, nil
}

// discard deletes consumed state. Failures are logged only: the entry still
// expires through its TTL.
func (s *service) discard(ctx context.Context, key string) {
	if err := s.state.Delete(ctx, key); err != nil {
		slog.Warn("failed to discard flow state", "key", key, "err", err)
	}
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
