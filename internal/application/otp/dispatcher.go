package otp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-identity-api/internal/domain"
	pkgtoken "github.com/go-identity-api/internal/pkg/token"
)

// CodeStore is the subset of the ephemeral store the dispatcher writes to.
type CodeStore interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Transport delivers a formatted code to an email address.
type Transport interface {
	DeliverOTP(ctx context.Context, email, code string) error
}

// Dispatcher generates one-time codes, stages them and hands them to a
// Transport. A new Send for the same flow and email overwrites the previous
// code.
type Dispatcher struct {
	store     CodeStore
	transport Transport
	ttl       time.Duration
	digits    int
	now       func() time.Time
}

func NewDispatcher(store CodeStore, transport Transport, ttl time.Duration, digits int) *Dispatcher {
	return &Dispatcher{
		store:     store,
		transport: transport,
		ttl:       ttl,
		digits:    digits,
		now:       time.Now,
	}
}

// Send stages a fresh code for email under flow and delivers it. Delivery
// failures wrap domain.ErrDelivery; the staged code stays valid until it
// expires or is replaced.
func (d *Dispatcher) Send(ctx context.Context, flow domain.Flow, email string) error {
	code, err := pkgtoken.NewOTP(d.digits)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(domain.OneTimeCode{Code: code, Digits: d.digits, IssuedAt: d.now().Unix()})
	if err != nil {
		return err
	}
	if err := d.store.Set(ctx, domain.StateKey(flow, domain.StateOTP, email), raw, d.ttl); err != nil {
		return fmt.Errorf("stage otp: %w", err)
	}
	if err := d.transport.DeliverOTP(ctx, email, pkgtoken.FormatOTP(code, d.digits)); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrDelivery, err)
	}
	return nil
}
