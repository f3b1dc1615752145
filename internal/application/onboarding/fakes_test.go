package onboarding

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-identity-api/internal/application/account"
	"github.com/go-identity-api/internal/application/otp"
	"github.com/go-identity-api/internal/application/session"
	"github.com/go-identity-api/internal/config"
	"github.com/go-identity-api/internal/domain"
	"github.com/go-identity-api/internal/infrastructure/memstore"
	jwtinfra "github.com/go-identity-api/internal/infrastructure/jwt"
	"github.com/go-identity-api/internal/pkg/password"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// fakeUsers is an in-memory identity repository enforcing unique email and
// username on Create, like the DynamoDB guard items do.
type fakeUsers struct {
	mu        sync.Mutex
	byID      map[string]domain.User
	emails    map[string]string
	usernames map[string]string
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{
		byID:      map[string]domain.User{},
		emails:    map[string]string{},
		usernames: map[string]string{},
	}
}

func (f *fakeUsers) Create(_ context.Context, u *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.emails[u.Email]; ok {
		return domain.ErrEmailTaken
	}
	if _, ok := f.usernames[u.Username]; ok {
		return domain.ErrHandleTaken
	}
	f.byID[u.UserID] = *u
	f.emails[u.Email] = u.UserID
	f.usernames[u.Username] = u.UserID
	return nil
}

func (f *fakeUsers) Get(_ context.Context, userID string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[userID]
	if !ok {
		return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	return &u, nil
}

func (f *fakeUsers) lookup(index map[string]string, key string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := index[key]
	if !ok {
		return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	u := f.byID[id]
	return &u, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	return f.lookup(f.emails, email)
}

func (f *fakeUsers) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	return f.lookup(f.usernames, username)
}

func (f *fakeUsers) Update(_ context.Context, userID string, updates map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[userID]
	if !ok {
		return fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	for k, v := range updates {
		s, _ := v.(string)
		switch k {
		case "password_hash":
			u.PasswordHash = s
		case "first_name":
			u.FirstName = s
		case "last_name":
			u.LastName = s
		case "profile_img_url":
			u.ProfileImgURL = s
		case "cover_img_url":
			u.CoverImgURL = &s
		case "bio":
			u.Bio = &s
		case "location":
			u.Location = &s
		default:
			return fmt.Errorf("unexpected update field %q", k)
		}
	}
	u.UpdatedAt = time.Now().UTC()
	f.byID[userID] = u
	return nil
}

func (f *fakeUsers) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byID)
}

// captureTransport records the last code delivered per email.
type captureTransport struct {
	mu    sync.Mutex
	codes map[string]string
	err   error
}

func (c *captureTransport) DeliverOTP(_ context.Context, email, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	if c.codes == nil {
		c.codes = map[string]string{}
	}
	c.codes[email] = code
	return nil
}

func (c *captureTransport) last(t *testing.T, email string) string {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	code, ok := c.codes[email]
	require.True(t, ok, "no code delivered to %s", email)
	return code
}

var (
	keyOnce sync.Once
	testKey *rsa.PrivateKey
)

func newTokenProvider(t *testing.T) *jwtinfra.Provider {
	t.Helper()
	keyOnce.Do(func() {
		k, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}
		testKey = k
	})
	dir := t.TempDir()
	privPath := filepath.Join(dir, "private.pem")
	pubPath := filepath.Join(dir, "public.pem")
	require.NoError(t, os.WriteFile(privPath,
		pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(testKey)}), 0600))
	pubBytes, err := x509.MarshalPKIXPublicKey(&testKey.PublicKey)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(pubPath,
		pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubBytes}), 0600))

	p, err := jwtinfra.NewProvider(&config.Config{
		JWTPrivateKeyPath: privPath,
		JWTPublicKeyPath:  pubPath,
		SessionTTL:        7 * 24 * time.Hour,
	})
	require.NoError(t, err)
	return p
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	svc       Service
	users     *fakeUsers
	transport *captureTransport
	clock     *fakeClock
	issuer    *session.Issuer
	hasher    *password.Bcrypt
	store     *memstore.Store
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		users:     newFakeUsers(),
		transport: &captureTransport{},
		clock:     &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)},
		hasher:    password.NewBcrypt(bcrypt.MinCost),
	}
	store := memstore.New(1024, 48*time.Hour, memstore.WithClock(h.clock.Now))
	h.store = store
	h.issuer = session.NewIssuer(newTokenProvider(t))
	h.svc = NewService(ServiceDeps{
		Users:         h.users,
		State:         store,
		OTP:           otp.NewDispatcher(store, h.transport, 10*time.Minute, 6),
		Hasher:        h.hasher,
		Sessions:      h.issuer,
		Accounts:      account.NewCreator(h.users),
		UnverifiedTTL: 24 * time.Hour,
		VerifiedTTL:   time.Hour,
	})
	return h
}

// seedUser inserts an identity directly, bypassing the signup flow.
func (h *harness) seedUser(t *testing.T, u domain.User, plainPassword string) *domain.User {
	t.Helper()
	if plainPassword != "" {
		hash, err := h.hasher.Hash(plainPassword)
		require.NoError(t, err)
		u.PasswordHash = hash
	}
	if u.UserID == "" {
		u.UserID = "seed-" + u.Email
	}
	require.NoError(t, h.users.Create(context.Background(), &u))
	return &u
}
