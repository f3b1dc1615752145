package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-identity-api/internal/application/account"
	"github.com/go-identity-api/internal/application/oauth"
	"github.com/go-identity-api/internal/application/onboarding"
	"github.com/go-identity-api/internal/application/otp"
	"github.com/go-identity-api/internal/application/session"
	"github.com/go-identity-api/internal/config"
	"github.com/go-identity-api/internal/transport/http/handler"
	appmiddleware "github.com/go-identity-api/internal/transport/http/middleware"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) (http.Handler, error) {
	cookies, err := handler.NewSessionCookies(cfg)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		// The session cookie must be sent on cross-origin requests.
		AllowCredentials: true,
		MaxAge:           300,
	}))

	issuer := session.NewIssuer(deps.Tokens)
	accounts := account.NewCreator(deps.Users)
	dispatcher := otp.NewDispatcher(deps.State, deps.OTPTransport, cfg.OTPTTL, cfg.OTPDigits)
	onboardingSvc := onboarding.NewService(onboarding.ServiceDeps{
		Users:         deps.Users,
		State:         deps.State,
		OTP:           dispatcher,
		Hasher:        deps.Hasher,
		Sessions:      issuer,
		Accounts:      accounts,
		UnverifiedTTL: cfg.UnverifiedTTL,
		VerifiedTTL:   cfg.VerifiedTTL,
	})

	healthH := handler.NewHealthHandler()
	onboardingH := handler.NewOnboardingHandler(onboardingSvc, cookies)
	profileH := handler.NewProfileHandler(onboardingSvc)
	authMw := appmiddleware.Auth(issuer, cookies.Name())

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check/{action}", healthH.Ping)

		r.Post("/signup", onboardingH.Signup)
		r.Post("/otp/verify", onboardingH.VerifyOTP)
		r.Post("/otp/resend", onboardingH.ResendOTP)
		r.Post("/accounts", onboardingH.CreateAccount)

		r.Post("/login/identify", onboardingH.Identify)
		r.Post("/login/confirm-mail", onboardingH.ConfirmMail)
		r.Post("/login/password", onboardingH.PasswordLogin)
		r.Post("/password/reset", onboardingH.ResetPassword)
		r.Post("/logout", onboardingH.Logout)

		if deps.Google != nil {
			bridge := oauth.NewBridge(deps.Users, accounts, issuer)
			oauthH := handler.NewOAuthHandler(deps.Google, bridge, cookies, cfg.ClientURL)
			r.Get("/auth/google", oauthH.Redirect)
			r.Get("/auth/google/callback", oauthH.Callback)
			r.Post("/auth/google/token", oauthH.TokenSignIn)
		}

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Get("/me", profileH.Me)
			r.Put("/me/profile", profileH.Edit)
		})
	})

	return r, nil
}
