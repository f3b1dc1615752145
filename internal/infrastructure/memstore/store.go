// Package memstore is an in-process ephemeral state store for single-node
// deployments and tests.
package memstore

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

// Store is a size-bounded map with per-key expiry. The underlying LRU evicts
// anything older than maxTTL; shorter per-key TTLs are enforced on read.
type Store struct {
	cache  *expirable.LRU[string, entry]
	maxTTL time.Duration
	now    func() time.Time
}

type Option func(*Store)

// WithClock overrides the time source used for per-key expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(size int, maxTTL time.Duration, opts ...Option) *Store {
	s := &Store{
		cache:  expirable.NewLRU[string, entry](size, nil, maxTTL),
		maxTTL: maxTTL,
		now:    time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 || ttl > s.maxTTL {
		ttl = s.maxTTL
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	s.cache.Add(key, entry{value: cp, expiresAt: s.now().Add(ttl)})
	return nil
}

func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	e, ok := s.cache.Get(key)
	if !ok {
		return nil, false, nil
	}
	// Expired entries are left for the LRU to evict; removing here could
	// drop a value written concurrently under the same key.
	if !s.now().Before(e.expiresAt) {
		return nil, false, nil
	}
	return e.value, true, nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.cache.Remove(key)
	return nil
}
