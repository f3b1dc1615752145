package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort string
	AppEnv  string

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables

	// EphemeralBackend selects where OTP and signup state lives: "dynamo" or "memory".
	EphemeralBackend string
	MemstoreSize     int

	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	SessionTTL        time.Duration

	OTPTTL        time.Duration
	OTPDigits     int
	UnverifiedTTL time.Duration
	VerifiedTTL   time.Duration
	BcryptCost    int

	// OTPTransport selects how codes leave the service: "smtp" or "sns".
	OTPTransport   string
	SMTPHost       string
	SMTPPort       string
	SMTPFrom       string
	SMTPUsername   string
	SMTPPassword   string
	SNSRegion      string
	SNSOTPTopicARN string

	SessionCookieName      string
	SessionCookieDomain    string // empty = apex of ClientURL
	SessionCookieCrossSite bool

	ClientURL      string
	AllowedOrigins []string // CORS allowed origins

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Users          string
	UserUniques    string
	EphemeralState string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	clientURL := getEnv("CLIENT_URL", "http://localhost:5173")
	return &Config{
		AppPort: getEnv("APP_PORT", "3000"),
		AppEnv:  getEnv("APP_ENV", "development"),

		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Users:          getEnv("DYNAMO_TABLE_USERS", "users"),
			UserUniques:    getEnv("DYNAMO_TABLE_USER_UNIQUES", "user_uniques"),
			EphemeralState: getEnv("DYNAMO_TABLE_EPHEMERAL_STATE", "ephemeral_state"),
		},

		EphemeralBackend: getEnv("EPHEMERAL_BACKEND", "dynamo"),
		MemstoreSize:     getEnvInt("MEMSTORE_SIZE", 100000),

		JWTPrivateKeyPath: getEnv("JWT_PRIVATE_KEY_PATH", "./private_key.pem"),
		JWTPublicKeyPath:  getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		SessionTTL:        time.Duration(getEnvInt("SESSION_TTL_DAYS", 7)) * 24 * time.Hour,

		OTPTTL:        time.Duration(getEnvInt("OTP_TTL_MINUTES", 10)) * time.Minute,
		OTPDigits:     getEnvInt("OTP_DIGITS", 6),
		UnverifiedTTL: time.Duration(getEnvInt("UNVERIFIED_TTL_HOURS", 24)) * time.Hour,
		VerifiedTTL:   time.Duration(getEnvInt("VERIFIED_TTL_MINUTES", 60)) * time.Minute,
		BcryptCost:    getEnvInt("BCRYPT_COST", 10),

		OTPTransport:   getEnv("OTP_TRANSPORT", "smtp"),
		SMTPHost:       getEnv("SMTP_HOST", "localhost"),
		SMTPPort:       getEnv("SMTP_PORT", "1025"),
		SMTPFrom:       getEnv("SMTP_FROM", "noreply@example.com"),
		SMTPUsername:   getEnv("SMTP_USERNAME", ""),
		SMTPPassword:   getEnv("SMTP_PASSWORD", ""),
		SNSRegion:      getEnv("SNS_REGION", "us-east-1"),
		SNSOTPTopicARN: getEnv("SNS_OTP_TOPIC_ARN", ""),

		SessionCookieName:      getEnv("SESSION_COOKIE_NAME", "token"),
		SessionCookieDomain:    getEnv("SESSION_COOKIE_DOMAIN", ""),
		SessionCookieCrossSite: getEnvBool("SESSION_COOKIE_CROSS_SITE", true),

		ClientURL:      clientURL,
		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", clientURL), ","),

		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:  getEnv("GOOGLE_REDIRECT_URL", ""),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
