package handler

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-identity-api/internal/application/oauth"
	"github.com/go-identity-api/internal/domain"
	"github.com/go-identity-api/internal/infrastructure/google"
	pkgtoken "github.com/go-identity-api/internal/pkg/token"
)

const (
	oauthStateCookie = "oauth_state"
	oauthStateTTL    = 10 * time.Minute
)

// GoogleAuth is the Google client as used by the handler.
type GoogleAuth interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*google.Payload, error)
	Verify(ctx context.Context, idToken string) (*google.Payload, error)
}

type ExternalSignIn interface {
	CompleteExternalSignIn(ctx context.Context, p oauth.ExternalProfile) (*domain.Session, error)
}

// OAuthHandler serves Google sign-in, both as a browser redirect flow and as
// an ID token exchange for clients that run the Google SDK themselves.
type OAuthHandler struct {
	google    GoogleAuth
	bridge    ExternalSignIn
	cookies   *SessionCookies
	clientURL string
}

func NewOAuthHandler(g GoogleAuth, bridge ExternalSignIn, cookies *SessionCookies, clientURL string) *OAuthHandler {
	return &OAuthHandler{google: g, bridge: bridge, cookies: cookies, clientURL: strings.TrimRight(clientURL, "/")}
}

type googleTokenRequest struct {
	IDToken string `json:"id_token"`
}

func (h *OAuthHandler) Redirect(w http.ResponseWriter, r *http.Request) {
	state, err := pkgtoken.NewState()
	if err != nil {
		httpError(w, r, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/v1/auth/google",
		MaxAge:   int(oauthStateTTL.Seconds()),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.google.AuthCodeURL(state), http.StatusFound)
}

// Callback finishes the redirect flow. Failures send the browser back to the
// client's login page instead of rendering JSON.
func (h *OAuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{Name: oauthStateCookie, Path: "/v1/auth/google", MaxAge: -1, HttpOnly: true, Secure: true})

	c, err := r.Cookie(oauthStateCookie)
	state := r.URL.Query().Get("state")
	if err != nil || state == "" || subtle.ConstantTimeCompare([]byte(c.Value), []byte(state)) != 1 {
		slog.Warn("google callback with invalid state")
		http.Redirect(w, r, h.clientURL+"/login?error=state", http.StatusFound)
		return
	}
	code := r.URL.Query().Get("code")
	if code == "" {
		http.Redirect(w, r, h.clientURL+"/login?error=denied", http.StatusFound)
		return
	}
	payload, err := h.google.Exchange(r.Context(), code)
	if err != nil {
		slog.Warn("google code exchange failed", "err", err)
		http.Redirect(w, r, h.clientURL+"/login?error=google", http.StatusFound)
		return
	}
	sess, err := h.bridge.CompleteExternalSignIn(r.Context(), profileFromGoogle(payload))
	if err != nil {
		slog.Error("google sign-in failed", "err", err)
		http.Redirect(w, r, h.clientURL+"/login?error=signin", http.StatusFound)
		return
	}
	h.cookies.Set(w, sess)
	http.Redirect(w, r, h.clientURL+"/", http.StatusFound)
}

func (h *OAuthHandler) TokenSignIn(w http.ResponseWriter, r *http.Request) {
	var req googleTokenRequest
	if err := decode(r, &req); err != nil || req.IDToken == "" {
		writeError(w, http.StatusBadRequest, "id_token is required")
		return
	}
	payload, err := h.google.Verify(r.Context(), req.IDToken)
	if err != nil {
		httpError(w, r, err)
		return
	}
	sess, err := h.bridge.CompleteExternalSignIn(r.Context(), profileFromGoogle(payload))
	if err != nil {
		httpError(w, r, err)
		return
	}
	h.cookies.Set(w, sess)
	writeJSON(w, http.StatusOK, SessionEnvelope{User: sess.User, ExpiresAt: sess.ExpiresAt, NextPage: domain.NextPageSignin})
}

func profileFromGoogle(p *google.Payload) oauth.ExternalProfile {
	return oauth.ExternalProfile{
		Provider:  domain.ProviderGoogle,
		Subject:   p.Sub,
		Email:     p.Email,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		PhotoURL:  p.Picture,
	}
}
