package otp

import (
	"context"
	"fmt"
	"time"

	"github.com/go-identity-api/internal/infrastructure/smtp"
)

// EmailTransport delivers codes over SMTP.
type EmailTransport struct {
	mailer smtp.Mailer
	ttl    time.Duration
}

func NewEmailTransport(mailer smtp.Mailer, ttl time.Duration) *EmailTransport {
	return &EmailTransport{mailer: mailer, ttl: ttl}
}

func (t *EmailTransport) DeliverOTP(_ context.Context, email, code string) error {
	body := fmt.Sprintf("Your verification code is %s.\n\nIt expires in %d minutes. If you did not request it, ignore this email.\n",
		code, int(t.ttl.Minutes()))
	return t.mailer.SendEmail(email, "Your verification code", body)
}
