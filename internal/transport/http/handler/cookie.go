package handler

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/go-identity-api/internal/config"
	"github.com/go-identity-api/internal/domain"
	"golang.org/x/net/publicsuffix"
)

// SessionCookies applies one cookie policy to every flow that issues or
// clears a session: HttpOnly, always Secure, SameSite=None for cross-site
// deployments, scoped to the client's apex domain and living exactly as long
// as the token.
type SessionCookies struct {
	name     string
	domain   string
	sameSite http.SameSite
	now      func() time.Time
}

func NewSessionCookies(cfg *config.Config) (*SessionCookies, error) {
	d := cfg.SessionCookieDomain
	if d == "" {
		apex, err := apexDomain(cfg.ClientURL)
		if err != nil {
			return nil, err
		}
		d = apex
	}
	sameSite := http.SameSiteLaxMode
	if cfg.SessionCookieCrossSite {
		sameSite = http.SameSiteNoneMode
	}
	return &SessionCookies{name: cfg.SessionCookieName, domain: d, sameSite: sameSite, now: time.Now}, nil
}

// apexDomain returns the registrable domain of rawURL's host. Hosts without
// one (localhost, IP addresses) yield "" so the cookie stays host-only.
func apexDomain(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse CLIENT_URL: %w", err)
	}
	host := u.Hostname()
	if host == "" || net.ParseIP(host) != nil {
		return "", nil
	}
	apex, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return "", nil
	}
	return apex, nil
}

func (c *SessionCookies) Name() string { return c.name }

func (c *SessionCookies) Set(w http.ResponseWriter, s *domain.Session) {
	maxAge := int(s.ExpiresAt.Sub(c.now()).Seconds())
	if maxAge < 1 {
		maxAge = 1
	}
	http.SetCookie(w, c.cookie(s.Token, s.ExpiresAt, maxAge))
}

func (c *SessionCookies) Clear(w http.ResponseWriter) {
	http.SetCookie(w, c.cookie("", time.Unix(0, 0), -1))
}

func (c *SessionCookies) cookie(value string, expires time.Time, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     c.name,
		Value:    value,
		Path:     "/",
		Domain:   c.domain,
		Expires:  expires.UTC(),
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   true,
		SameSite: c.sameSite,
	}
}
