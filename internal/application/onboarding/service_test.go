package onboarding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-identity-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ctx = context.Background()

func signupReq(email string) domain.SignupRequest {
	return domain.SignupRequest{Email: email, FirstName: "John", LastName: "Smith", DateOfBirth: "04/21/1990"}
}

// verifiedSignup drives signup through OTP verification.
func (h *harness) verifiedSignup(t *testing.T, email string) {
	t.Helper()
	_, err := h.svc.RequestSignup(ctx, signupReq(email))
	require.NoError(t, err)
	res, err := h.svc.VerifyOTP(ctx, domain.VerifyOTPRequest{Email: email, OTP: h.transport.last(t, email)})
	require.NoError(t, err)
	require.Equal(t, domain.NextPagePassword, res.NextPage)
}

// verifiedReset drives the reset flow through OTP verification.
func (h *harness) verifiedReset(t *testing.T, email string) {
	t.Helper()
	_, err := h.svc.ConfirmMail(ctx, domain.ConfirmMailRequest{Email: email})
	require.NoError(t, err)
	res, err := h.svc.VerifyOTP(ctx, domain.VerifyOTPRequest{
		Email: email, OTP: h.transport.last(t, email), AuthType: string(domain.FlowReset),
	})
	require.NoError(t, err)
	require.Equal(t, domain.NextPageNewPassword, res.NextPage)
}

func otherCode(t *testing.T, code string) string {
	n, err := strconv.Atoi(code)
	require.NoError(t, err)
	return fmt.Sprintf("%06d", (n+1)%1000000)
}

// --- signup ---

func TestRequestSignup_ReturnsVerifyPage(t *testing.T) {
	h := newHarness(t)
	res, err := h.svc.RequestSignup(ctx, signupReq("  John@Example.com "))

	require.NoError(t, err)
	assert.Equal(t, "john@example.com", res.Email)
	assert.Equal(t, domain.NextPageVerifyOTP, res.NextPage)
	assert.Len(t, h.transport.last(t, "john@example.com"), 6)
}

func TestRequestSignup_MissingFirstName(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.RequestSignup(ctx, domain.SignupRequest{Email: "a@b.com"})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrBadRequest)
	assert.Contains(t, err.Error(), "first_name is required")
}

func TestRequestSignup_BadDateOfBirth(t *testing.T) {
	h := newHarness(t)
	req := signupReq("a@b.com")
	req.DateOfBirth = "21st April"
	_, err := h.svc.RequestSignup(ctx, req)
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestRequestSignup_ExistingEmail(t *testing.T) {
	h := newHarness(t)
	h.seedUser(t, domain.User{Email: "a@b.com", Username: "taken"}, "password1")

	_, err := h.svc.RequestSignup(ctx, signupReq("a@b.com"))
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestRequestSignup_DeliveryFailure(t *testing.T) {
	h := newHarness(t)
	h.transport.err = errors.New("smtp unavailable")

	_, err := h.svc.RequestSignup(ctx, signupReq("a@b.com"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDelivery)
}

func TestVerifyOTP_DispatchedCodeSucceeds(t *testing.T) {
	h := newHarness(t)
	h.verifiedSignup(t, "a@b.com")
}

func TestVerifyOTP_WrongCode(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.RequestSignup(ctx, signupReq("a@b.com"))
	require.NoError(t, err)

	wrong := otherCode(t, h.transport.last(t, "a@b.com"))
	_, err = h.svc.VerifyOTP(ctx, domain.VerifyOTPRequest{Email: "a@b.com", OTP: wrong})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrBadRequest)
	assert.Contains(t, err.Error(), "incorrect otp")
}

func TestVerifyOTP_NonNumeric(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.VerifyOTP(ctx, domain.VerifyOTPRequest{Email: "a@b.com", OTP: "12ab56"})
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestVerifyOTP_FixedWidth(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.RequestSignup(ctx, signupReq("a@b.com"))
	require.NoError(t, err)

	// Restage with a leading zero so integer equality would accept shorter forms.
	raw, err := json.Marshal(domain.OneTimeCode{Code: 12345, Digits: 6})
	require.NoError(t, err)
	key := domain.StateKey(domain.FlowSignup, domain.StateOTP, "a@b.com")
	require.NoError(t, h.store.Set(ctx, key, raw, 10*time.Minute))

	for _, code := range []string{"12345", "+12345", "0000012345", "0012345"} {
		_, err := h.svc.VerifyOTP(ctx, domain.VerifyOTPRequest{Email: "a@b.com", OTP: code})
		require.Error(t, err, code)
		assert.ErrorIs(t, err, domain.ErrBadRequest, code)
	}

	res, err := h.svc.VerifyOTP(ctx, domain.VerifyOTPRequest{Email: "a@b.com", OTP: "012345"})
	require.NoError(t, err)
	assert.Equal(t, domain.NextPagePassword, res.NextPage)
}

func TestVerifyOTP_ExpiredCode(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.RequestSignup(ctx, signupReq("a@b.com"))
	require.NoError(t, err)
	code := h.transport.last(t, "a@b.com")

	h.clock.Advance(11 * time.Minute)
	_, err = h.svc.VerifyOTP(ctx, domain.VerifyOTPRequest{Email: "a@b.com", OTP: code})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrBadRequest)
	assert.Contains(t, err.Error(), "expired")
	assert.NotContains(t, err.Error(), "incorrect")
}

func TestVerifyOTP_CodeIsSingleUse(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.RequestSignup(ctx, signupReq("a@b.com"))
	require.NoError(t, err)
	code := h.transport.last(t, "a@b.com")

	_, err = h.svc.VerifyOTP(ctx, domain.VerifyOTPRequest{Email: "a@b.com", OTP: code})
	require.NoError(t, err)
	_, err = h.svc.VerifyOTP(ctx, domain.VerifyOTPRequest{Email: "a@b.com", OTP: code})
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestVerifyOTP_AccountCreatedMeanwhile(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.RequestSignup(ctx, signupReq("a@b.com"))
	require.NoError(t, err)
	h.seedUser(t, domain.User{Email: "a@b.com", Username: "other"}, "")

	_, err = h.svc.VerifyOTP(ctx, domain.VerifyOTPRequest{Email: "a@b.com", OTP: h.transport.last(t, "a@b.com")})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestVerifyOTP_FlowsDoNotShareCodes(t *testing.T) {
	h := newHarness(t)
	h.seedUser(t, domain.User{Email: "a@b.com", Username: "a", FirstName: "A"}, "password1")
	_, err := h.svc.ConfirmMail(ctx, domain.ConfirmMailRequest{Email: "a@b.com"})
	require.NoError(t, err)

	_, err = h.svc.VerifyOTP(ctx, domain.VerifyOTPRequest{Email: "a@b.com", OTP: h.transport.last(t, "a@b.com")})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestVerifyOTP_UnknownAuthType(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.VerifyOTP(ctx, domain.VerifyOTPRequest{Email: "a@b.com", OTP: "123456", AuthType: "login"})
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestResendOTP_InvalidatesPreviousCode(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.RequestSignup(ctx, signupReq("a@b.com"))
	require.NoError(t, err)
	first := h.transport.last(t, "a@b.com")

	res, err := h.svc.ResendOTP(ctx, domain.ResendOTPRequest{Email: "a@b.com"})
	require.NoError(t, err)
	assert.Equal(t, domain.NextPageVerifyOTP, res.NextPage)
	second := h.transport.last(t, "a@b.com")

	if first != second {
		_, err = h.svc.VerifyOTP(ctx, domain.VerifyOTPRequest{Email: "a@b.com", OTP: first})
		assert.ErrorIs(t, err, domain.ErrBadRequest)
	}
	_, err = h.svc.VerifyOTP(ctx, domain.VerifyOTPRequest{Email: "a@b.com", OTP: second})
	assert.NoError(t, err)
}

func TestResendOTP_NothingPending(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.ResendOTP(ctx, domain.ResendOTPRequest{Email: "a@b.com"})
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

// --- createAccount ---

func TestCreateAccount_WithoutVerification(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.RequestSignup(ctx, signupReq("a@b.com"))
	require.NoError(t, err)

	_, err = h.svc.CreateAccount(ctx, domain.CreateAccountRequest{Email: "a@b.com", Password: "password1"})
	assert.ErrorIs(t, err, domain.ErrBadRequest)
	assert.Equal(t, 0, h.users.count())
}

func TestCreateAccount_MultibytePasswordOverByteLimit(t *testing.T) {
	h := newHarness(t)
	h.verifiedSignup(t, "a@b.com")

	_, err := h.svc.CreateAccount(ctx, domain.CreateAccountRequest{Email: "a@b.com", Password: strings.Repeat("é", 40)})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrBadRequest)
	assert.True(t, domain.IsDomainError(err))
	assert.Equal(t, 0, h.users.count())
}

func TestCreateAccount_IssuesSession(t *testing.T) {
	h := newHarness(t)
	h.verifiedSignup(t, "a@b.com")

	sess, err := h.svc.CreateAccount(ctx, domain.CreateAccountRequest{Email: "a@b.com", Password: "password1"})
	require.NoError(t, err)
	assert.NotEmpty(t, sess.Token)
	assert.Equal(t, "SmithJohn", sess.User.Username)
	assert.Equal(t, domain.ProviderLocal, sess.User.AuthProvider)
	require.NotNil(t, sess.User.DateOfBirth)
	assert.Equal(t, "1990-04-21", sess.User.DateOfBirth.Format("2006-01-02"))

	claims, err := h.issuer.Authenticate(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, sess.User.UserID, claims.UserID)
}

func TestCreateAccount_ExistingIdentity(t *testing.T) {
	h := newHarness(t)
	h.verifiedSignup(t, "a@b.com")
	h.seedUser(t, domain.User{Email: "a@b.com", Username: "someone"}, "")

	_, err := h.svc.CreateAccount(ctx, domain.CreateAccountRequest{Email: "a@b.com", Password: "password1"})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestCreateAccount_RepeatedCallConflicts(t *testing.T) {
	h := newHarness(t)
	h.verifiedSignup(t, "a@b.com")

	_, err := h.svc.CreateAccount(ctx, domain.CreateAccountRequest{Email: "a@b.com", Password: "password1"})
	require.NoError(t, err)
	_, err = h.svc.CreateAccount(ctx, domain.CreateAccountRequest{Email: "a@b.com", Password: "password1"})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestCreateAccount_ConcurrentSameEmail(t *testing.T) {
	h := newHarness(t)
	h.verifiedSignup(t, "a@b.com")

	const callers = 2
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.svc.CreateAccount(ctx, domain.CreateAccountRequest{Email: "a@b.com", Password: "password1"})
		}(i)
	}
	wg.Wait()

	var ok, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, conflicts)
	assert.Equal(t, 1, h.users.count())
}

func TestCreateAccount_HandleCollision(t *testing.T) {
	h := newHarness(t)
	h.seedUser(t, domain.User{Email: "first@b.com", Username: "SmithJohn", FirstName: "John", LastName: "Smith"}, "")
	h.verifiedSignup(t, "second@b.com")

	sess, err := h.svc.CreateAccount(ctx, domain.CreateAccountRequest{Email: "second@b.com", Password: "password1"})
	require.NoError(t, err)
	assert.NotEqual(t, "SmithJohn", sess.User.Username)
	assert.Contains(t, sess.User.Username, "SmithJohn")

	owner, err := h.users.GetByUsername(ctx, sess.User.Username)
	require.NoError(t, err)
	assert.Equal(t, "second@b.com", owner.Email)
}

// --- login ---

func TestGetLoginCreds(t *testing.T) {
	h := newHarness(t)
	h.seedUser(t, domain.User{Email: "a@b.com", Username: "SmithJohn"}, "password1")

	tests := []struct {
		name       string
		identifier string
		authType   string
		wantPage   string
		wantErr    error
	}{
		{"by email", "A@B.com", "login", domain.NextPageVerifyPassword, nil},
		{"by username", "SmithJohn", "login", domain.NextPageVerifyPassword, nil},
		{"reset", "a@b.com", "forgotpass", domain.NextPageConfirmYou, nil},
		{"unknown", "nobody@b.com", "login", "", domain.ErrNotFound},
		{"bad auth type", "a@b.com", "createaccount", "", domain.ErrBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res, err := h.svc.GetLoginCreds(ctx, domain.LoginCredsRequest{Identifier: tc.identifier, AuthType: tc.authType})
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "a@b.com", res.Email)
			assert.Equal(t, tc.wantPage, res.NextPage)
		})
	}
	assert.Empty(t, h.transport.codes)
}

func TestCheckLoginPassword_TokenResolvesToIdentity(t *testing.T) {
	h := newHarness(t)
	u := h.seedUser(t, domain.User{Email: "a@b.com", Username: "a"}, "password1")

	sess, err := h.svc.CheckLoginPassword(ctx, domain.PasswordLoginRequest{Email: "a@b.com", Password: "password1"})
	require.NoError(t, err)

	claims, err := h.issuer.Authenticate(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, u.UserID, claims.UserID)

	me, err := h.svc.CurrentUser(ctx, claims.UserID)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", me.Email)
}

func TestCheckLoginPassword_WrongPassword(t *testing.T) {
	h := newHarness(t)
	h.seedUser(t, domain.User{Email: "a@b.com", Username: "a"}, "password1")

	sess, err := h.svc.CheckLoginPassword(ctx, domain.PasswordLoginRequest{Email: "a@b.com", Password: "password2"})
	assert.ErrorIs(t, err, domain.ErrBadRequest)
	assert.Nil(t, sess)
}

func TestCheckLoginPassword_ExternalAccount(t *testing.T) {
	h := newHarness(t)
	h.seedUser(t, domain.User{Email: "a@b.com", Username: "a", AuthProvider: domain.ProviderGoogle}, "")

	_, err := h.svc.CheckLoginPassword(ctx, domain.PasswordLoginRequest{Email: "a@b.com", Password: "password1"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestCheckLoginPassword_UnknownEmail(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.CheckLoginPassword(ctx, domain.PasswordLoginRequest{Email: "a@b.com", Password: "password1"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// --- reset ---

func TestConfirmMail_UnknownEmail(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.ConfirmMail(ctx, domain.ConfirmMailRequest{Email: "a@b.com"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestResetPassword_RoundTrip(t *testing.T) {
	h := newHarness(t)
	h.seedUser(t, domain.User{Email: "a@b.com", Username: "a", FirstName: "A"}, "OldPass99")
	h.verifiedReset(t, "a@b.com")

	sess, err := h.svc.ResetPassword(ctx, domain.ResetPasswordRequest{Email: "a@b.com", Password: "NewPass1"})
	require.NoError(t, err)
	assert.NotEmpty(t, sess.Token)

	_, err = h.svc.CheckLoginPassword(ctx, domain.PasswordLoginRequest{Email: "a@b.com", Password: "NewPass1"})
	assert.NoError(t, err)
	_, err = h.svc.CheckLoginPassword(ctx, domain.PasswordLoginRequest{Email: "a@b.com", Password: "OldPass99"})
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestResetPassword_RequiresVerifiedCode(t *testing.T) {
	h := newHarness(t)
	h.seedUser(t, domain.User{Email: "a@b.com", Username: "a"}, "OldPass99")

	_, err := h.svc.ResetPassword(ctx, domain.ResetPasswordRequest{Email: "a@b.com", Password: "NewPass1"})
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestResetPassword_MultibytePasswordOverByteLimit(t *testing.T) {
	h := newHarness(t)
	h.seedUser(t, domain.User{Email: "a@b.com", Username: "a"}, "OldPass99")
	h.verifiedReset(t, "a@b.com")

	_, err := h.svc.ResetPassword(ctx, domain.ResetPasswordRequest{Email: "a@b.com", Password: strings.Repeat("é", 40)})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrBadRequest)

	_, err = h.svc.CheckLoginPassword(ctx, domain.PasswordLoginRequest{Email: "a@b.com", Password: "OldPass99"})
	assert.NoError(t, err)
}

func TestResetPassword_VerificationIsConsumed(t *testing.T) {
	h := newHarness(t)
	h.seedUser(t, domain.User{Email: "a@b.com", Username: "a"}, "OldPass99")
	h.verifiedReset(t, "a@b.com")

	_, err := h.svc.ResetPassword(ctx, domain.ResetPasswordRequest{Email: "a@b.com", Password: "NewPass1"})
	require.NoError(t, err)
	_, err = h.svc.ResetPassword(ctx, domain.ResetPasswordRequest{Email: "a@b.com", Password: "NewPass2"})
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

// --- profile ---

func TestEditProfile_MissingImageLeavesIdentityUnchanged(t *testing.T) {
	h := newHarness(t)
	u := h.seedUser(t, domain.User{Email: "a@b.com", Username: "a", FirstName: "Ann", ProfileImgURL: "#112233"}, "")

	_, err := h.svc.EditProfile(ctx, u.UserID, domain.EditProfileRequest{FirstName: "Changed"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrBadRequest)

	stored, err := h.users.Get(ctx, u.UserID)
	require.NoError(t, err)
	assert.Equal(t, "Ann", stored.FirstName)
	assert.Equal(t, "#112233", stored.ProfileImgURL)
}

func TestEditProfile_OmittedFieldsKeepStoredValue(t *testing.T) {
	h := newHarness(t)
	bio := "hello"
	u := h.seedUser(t, domain.User{Email: "a@b.com", Username: "a", FirstName: "Ann", LastName: "Lee", Bio: &bio}, "")

	loc := "Lisbon"
	got, err := h.svc.EditProfile(ctx, u.UserID, domain.EditProfileRequest{
		FirstName: "Anna", ProfileImgURL: "https://img/a.png", Location: &loc,
	})
	require.NoError(t, err)
	assert.Equal(t, "Anna", got.FirstName)
	assert.Equal(t, "Lee", got.LastName)
	require.NotNil(t, got.Bio)
	assert.Equal(t, "hello", *got.Bio)
	require.NotNil(t, got.Location)
	assert.Equal(t, "Lisbon", *got.Location)
}

func TestEditProfile_UnknownUser(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.EditProfile(ctx, "missing", domain.EditProfileRequest{FirstName: "A", ProfileImgURL: "#000000"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCurrentUser_DeletedIdentity(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.CurrentUser(ctx, "gone")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}
