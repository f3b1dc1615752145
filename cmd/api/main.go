package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/go-identity-api/internal/application/onboarding"
	"github.com/go-identity-api/internal/application/otp"
	"github.com/go-identity-api/internal/config"
	"github.com/go-identity-api/internal/infrastructure/dynamo"
	"github.com/go-identity-api/internal/infrastructure/google"
	jwtinfra "github.com/go-identity-api/internal/infrastructure/jwt"
	"github.com/go-identity-api/internal/infrastructure/memstore"
	"github.com/go-identity-api/internal/infrastructure/smtp"
	"github.com/go-identity-api/internal/infrastructure/sns"
	"github.com/go-identity-api/internal/pkg/password"
	transporthttp "github.com/go-identity-api/internal/transport/http"
	"github.com/joho/godotenv"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, reading from environment")
	}

	cfg := config.Load()
	if err := run(cfg); err != nil {
		slog.Error("startup failed", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx := context.Background()

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient, err := dynamo.NewClient(ctx, cfg)
	if err != nil {
		return err
	}
	dynamo.Bootstrap(ctx, dynamoClient, cfg.DynamoTables)

	// Sessions cannot be issued without signing keys.
	tokens, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		return fmt.Errorf("jwt provider: %w", err)
	}

	state, err := newStateStore(cfg, dynamoClient)
	if err != nil {
		return err
	}
	transport, err := newOTPTransport(ctx, cfg)
	if err != nil {
		return err
	}

	deps := &transporthttp.Deps{
		Users:        dynamo.NewUserRepo(dynamoClient, cfg.DynamoTables.Users, cfg.DynamoTables.UserUniques),
		State:        state,
		OTPTransport: transport,
		Hasher:       password.NewBcrypt(cfg.BcryptCost),
		Tokens:       tokens,
	}
	if cfg.GoogleClientID != "" {
		deps.Google = google.NewClient(cfg)
	} else {
		slog.Warn("GOOGLE_CLIENT_ID not set, google sign-in disabled")
	}

	router, err := transporthttp.NewRouter(cfg, deps)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.AppPort, "env", cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-quit:
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	slog.Info("server stopped")
	return nil
}

func newStateStore(cfg *config.Config, client *dynamodb.Client) (onboarding.StateStore, error) {
	switch cfg.EphemeralBackend {
	case "dynamo":
		return dynamo.NewEphemeralStore(client, cfg.DynamoTables.EphemeralState), nil
	case "memory":
		slog.Warn("ephemeral state kept in process memory, do not run more than one replica")
		maxTTL := max(cfg.UnverifiedTTL, cfg.VerifiedTTL, cfg.OTPTTL)
		return memstore.New(cfg.MemstoreSize, maxTTL), nil
	}
	return nil, fmt.Errorf("unknown EPHEMERAL_BACKEND %q", cfg.EphemeralBackend)
}

func newOTPTransport(ctx context.Context, cfg *config.Config) (otp.Transport, error) {
	switch cfg.OTPTransport {
	case "smtp":
		return otp.NewEmailTransport(smtp.NewMailer(cfg), cfg.OTPTTL), nil
	case "sns":
		return sns.NewOTPPublisher(ctx, cfg)
	}
	return nil, fmt.Errorf("unknown OTP_TRANSPORT %q", cfg.OTPTransport)
}
