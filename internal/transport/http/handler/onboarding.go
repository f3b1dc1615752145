package handler

import (
	"net/http"

	"github.com/go-identity-api/internal/application/onboarding"
	"github.com/go-identity-api/internal/domain"
)

// OnboardingHandler serves the signup, login and password reset steps.
type OnboardingHandler struct {
	svc     onboarding.Service
	cookies *SessionCookies
}

func NewOnboardingHandler(svc onboarding.Service, cookies *SessionCookies) *OnboardingHandler {
	return &OnboardingHandler{svc: svc, cookies: cookies}
}

func (h *OnboardingHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req domain.SignupRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	res, err := h.svc.RequestSignup(r.Context(), req)
	h.writeStep(w, r, res, err)
}

func (h *OnboardingHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req domain.VerifyOTPRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	res, err := h.svc.VerifyOTP(r.Context(), req)
	h.writeStep(w, r, res, err)
}

func (h *OnboardingHandler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	var req domain.ResendOTPRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	res, err := h.svc.ResendOTP(r.Context(), req)
	h.writeStep(w, r, res, err)
}

func (h *OnboardingHandler) Identify(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginCredsRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	res, err := h.svc.GetLoginCreds(r.Context(), req)
	h.writeStep(w, r, res, err)
}

func (h *OnboardingHandler) ConfirmMail(w http.ResponseWriter, r *http.Request) {
	var req domain.ConfirmMailRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	res, err := h.svc.ConfirmMail(r.Context(), req)
	h.writeStep(w, r, res, err)
}

func (h *OnboardingHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateAccountRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sess, err := h.svc.CreateAccount(r.Context(), req)
	h.writeSession(w, r, http.StatusCreated, sess, err)
}

func (h *OnboardingHandler) PasswordLogin(w http.ResponseWriter, r *http.Request) {
	var req domain.PasswordLoginRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sess, err := h.svc.CheckLoginPassword(r.Context(), req)
	h.writeSession(w, r, http.StatusOK, sess, err)
}

func (h *OnboardingHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req domain.ResetPasswordRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sess, err := h.svc.ResetPassword(r.Context(), req)
	h.writeSession(w, r, http.StatusOK, sess, err)
}

// Logout clears the session cookie. Tokens are not revoked server-side.
func (h *OnboardingHandler) Logout(w http.ResponseWriter, _ *http.Request) {
	h.cookies.Clear(w)
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "logged out"})
}

func (h *OnboardingHandler) writeStep(w http.ResponseWriter, r *http.Request, res *domain.StepResult, err error) {
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *OnboardingHandler) writeSession(w http.ResponseWriter, r *http.Request, status int, sess *domain.Session, err error) {
	if err != nil {
		httpError(w, r, err)
		return
	}
	h.cookies.Set(w, sess)
	writeJSON(w, status, SessionEnvelope{User: sess.User, ExpiresAt: sess.ExpiresAt, NextPage: domain.NextPageSignin})
}
