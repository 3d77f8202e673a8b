// Package nonce issues and verifies short-lived tokens that bind an admin
// request to an action and the API key that asked for it.
package nonce

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/block-inventory/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/block-inventory/pkg/redis"
)

// Action names used by the dashboard.
const (
	ActionBlocks = "bl_blocks_nonce"
	ActionExport = "bl_export_blocks_nonce"
)

// ValidAction reports whether action is usable as a key segment: lowercase
// letters and underscores only, so it can never carry a separator or a
// Redis glob character into RevokeAll's pattern.
func ValidAction(action string) bool {
	if action == "" {
		return false
	}
	for _, r := range action {
		if (r < 'a' || r > 'z') && r != '_' {
			return false
		}
	}
	return true
}

// Store issues and verifies tokens. A token stays valid for every request
// until it expires or is revoked.
type Store interface {
	Issue(ctx context.Context, action, subject string) (string, error)
	Verify(ctx context.Context, action, subject, token string) (bool, error)
	RevokeAll(ctx context.Context, subject string) error
}

// NewToken returns 16 random bytes, hex encoded.
func NewToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func key(action, subject, token string) string {
	return "nonce:" + action + ":" + subject + ":" + token
}

// RedisStore keeps tokens as TTL-bound Redis keys.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisStore returns a Redis-backed store.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		ttl:    ttl,
		logger: slog.Default().With("component", "nonce-redis"),
	}
}

func (s *RedisStore) Issue(ctx context.Context, action, subject string) (string, error) {
	token, err := NewToken()
	if err != nil {
		return "", err
	}
	if err := s.client.Set(ctx, key(action, subject, token), 1, s.ttl); err != nil {
		return "", fmt.Errorf("storing nonce: %w", err)
	}
	return token, nil
}

func (s *RedisStore) Verify(ctx context.Context, action, subject, token string) (bool, error) {
	if !wellFormed(token) {
		return false, nil
	}
	ok, err := s.client.Exists(ctx, key(action, subject, token))
	if err != nil {
		return false, fmt.Errorf("checking nonce: %w", err)
	}
	return ok, nil
}

func (s *RedisStore) RevokeAll(ctx context.Context, subject string) error {
	n, err := s.client.FlushByPattern(ctx, "nonce:*:"+subject+":*")
	if err != nil {
		return fmt.Errorf("revoking nonces: %w", err)
	}
	s.logger.Info("nonces revoked", "subject", subject, "count", n)
	return nil
}

type memEntry struct {
	action, subject string
	expires         time.Time
}

// MemoryStore keeps tokens in process. It serves tests and single-instance
// deployments without Redis.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memEntry
}

// NewMemoryStore returns an in-process store.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, now: time.Now, entries: make(map[string]memEntry)}
}

// SetClock replaces the clock used for expiry.
func (s *MemoryStore) SetClock(now func() time.Time) { s.now = now }

func (s *MemoryStore) Issue(_ context.Context, action, subject string) (string, error) {
	token, err := NewToken()
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, e := range s.entries {
		if !now.Before(e.expires) {
			delete(s.entries, k)
		}
	}
	s.entries[key(action, subject, token)] = memEntry{action: action, subject: subject, expires: now.Add(s.ttl)}
	return token, nil
}

func (s *MemoryStore) Verify(_ context.Context, action, subject, token string) (bool, error) {
	if !wellFormed(token) {
		return false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key(action, subject, token)]
	return ok && s.now().Before(e.expires), nil
}

func (s *MemoryStore) RevokeAll(_ context.Context, subject string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, e := range s.entries {
		if e.subject == subject {
			delete(s.entries, k)
		}
	}
	return nil
}

// wellFormed rejects tokens that could widen a key pattern.
func wellFormed(token string) bool {
	return len(token) == 32 && !strings.ContainsAny(token, ":*?[]")
}

// Instrumented counts verification results.
type Instrumented struct {
	Store
	metrics *metrics.Metrics
}

// WithMetrics wraps store so every Verify is counted by action and result.
func WithMetrics(store Store, m *metrics.Metrics) Store {
	if m == nil {
		return store
	}
	return &Instrumented{Store: store, metrics: m}
}

func (s *Instrumented) Verify(ctx context.Context, action, subject, token string) (bool, error) {
	ok, err := s.Store.Verify(ctx, action, subject, token)
	result := "valid"
	switch {
	case err != nil:
		result = "error"
	case !ok:
		result = "invalid"
	}
	s.metrics.NonceChecksTotal.WithLabelValues(action, result).Inc()
	return ok, err
}
