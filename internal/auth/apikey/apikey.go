// Package apikey provides SHA-256-based API key validation against PostgreSQL.
// Raw keys are generated with crypto/rand, hashed before storage, and validated
// by comparing the hash of the presented key with the stored hash. Each key
// carries the capabilities it grants on the admin surface.
package apikey

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/Adithya-Monish-Kumar-K/block-inventory/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/block-inventory/pkg/postgres"
	"github.com/lib/pq"
)

var (
	ErrInvalidKey = errors.New("invalid api key")
	ErrExpiredKey = errors.New("api key expired")
)

// DefaultRateLimit is the per-minute request budget of keys created without one.
const DefaultRateLimit = 100

// KeyInfo holds metadata about a validated API key.
type KeyInfo struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Capabilities []string   `json:"capabilities"`
	RateLimit    int        `json:"rate_limit"`
	IsActive     bool       `json:"is_active"`
	CreatedAt    time.Time  `json:"created_at"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

// Can reports whether the key grants capability.
func (k *KeyInfo) Can(capability string) bool {
	if k == nil {
		return false
	}
	return slices.Contains(k.Capabilities, capability)
}

// Validator validates API keys against the api_keys table in PostgreSQL.
type Validator struct {
	db     *postgres.Client
	logger *slog.Logger
}

// NewValidator creates a new API key validator backed by PostgreSQL.
func NewValidator(db *postgres.Client) *Validator {
	return &Validator{
		db:     db,
		logger: slog.Default().With("component", "apikey-validator"),
	}
}

// Validate checks a raw API key against the database.
// Returns KeyInfo on success, or ErrInvalidKey / ErrExpiredKey on failure.
func (v *Validator) Validate(ctx context.Context, rawKey string) (*KeyInfo, error) {
	var info KeyInfo
	var expiresAt sql.NullTime

	err := v.db.DB.QueryRowContext(ctx,
		`SELECT id, name, capabilities, rate_limit, is_active, created_at, expires_at
		 FROM api_keys
		 WHERE key_hash = $1 AND is_active = true`,
		HashKey(rawKey),
	).Scan(&info.ID, &info.Name, pq.Array(&info.Capabilities), &info.RateLimit, &info.IsActive, &info.CreatedAt, &expiresAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidKey
	}
	if err != nil {
		return nil, fmt.Errorf("querying api key: %w", err)
	}

	if expiresAt.Valid {
		if expiresAt.Time.Before(time.Now()) {
			return nil, ErrExpiredKey
		}
		info.ExpiresAt = &expiresAt.Time
	}
	return &info, nil
}

// CreateKey generates a new API key, stores its hash, and returns the raw key.
// The raw key is returned only once and cannot be retrieved again.
func (v *Validator) CreateKey(ctx context.Context, name string, capabilities []string, rateLimit int, expiresAt *time.Time) (string, error) {
	if rateLimit <= 0 {
		rateLimit = DefaultRateLimit
	}
	if capabilities == nil {
		capabilities = []string{}
	}
	rawKey := generateRawKey()

	var expiry sql.NullTime
	if expiresAt != nil {
		expiry = sql.NullTime{Time: *expiresAt, Valid: true}
	}

	_, err := v.db.DB.ExecContext(ctx,
		`INSERT INTO api_keys (key_hash, name, capabilities, rate_limit, expires_at) VALUES ($1, $2, $3, $4, $5)`,
		HashKey(rawKey), name, pq.Array(capabilities), rateLimit, expiry,
	)
	if err != nil {
		return "", fmt.Errorf("creating api key: %w", err)
	}

	v.logger.Info("api key created", "name", name, "capabilities", capabilities, "rate_limit", rateLimit)
	return rawKey, nil
}

// RevokeKey deactivates an API key by id so it can no longer be used.
func (v *Validator) RevokeKey(ctx context.Context, id string) error {
	result, err := v.db.DB.ExecContext(ctx,
		`UPDATE api_keys SET is_active = false WHERE id = $1 AND is_active = true`,
		id,
	)
	if err != nil {
		return fmt.Errorf("revoking api key: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrInvalidKey
	}

	v.logger.Info("api key revoked", "id", id)
	return nil
}

// ListKeys returns all active API keys (without the raw key / hash).
func (v *Validator) ListKeys(ctx context.Context) ([]KeyInfo, error) {
	rows, err := v.db.DB.QueryContext(ctx,
		`SELECT id, name, capabilities, rate_limit, is_active, created_at, expires_at
		 FROM api_keys WHERE is_active = true ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing api keys: %w", err)
	}
	defer rows.Close()

	var keys []KeyInfo
	for rows.Next() {
		var k KeyInfo
		var expiresAt sql.NullTime
		if err := rows.Scan(&k.ID, &k.Name, pq.Array(&k.Capabilities), &k.RateLimit, &k.IsActive, &k.CreatedAt, &expiresAt); err != nil {
			return nil, fmt.Errorf("scanning api key row: %w", err)
		}
		if expiresAt.Valid {
			k.ExpiresAt = &expiresAt.Time
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Static validates keys declared in configuration. Lookups compare hashes so
// raw keys are not kept in memory after construction.
type Static struct {
	byHash map[string]KeyInfo
}

// NewStatic builds a validator for configured keys.
func NewStatic(keys []config.StaticKey) *Static {
	s := &Static{byHash: make(map[string]KeyInfo, len(keys))}
	for _, k := range keys {
		limit := k.RateLimit
		if limit <= 0 {
			limit = DefaultRateLimit
		}
		hash := HashKey(k.Key)
		s.byHash[hash] = KeyInfo{
			ID:           "static-" + hash[:12],
			Name:         k.Name,
			Capabilities: slices.Clone(k.Capabilities),
			RateLimit:    limit,
			IsActive:     true,
		}
	}
	return s
}

func (s *Static) Validate(_ context.Context, rawKey string) (*KeyInfo, error) {
	info, ok := s.byHash[HashKey(rawKey)]
	if !ok {
		return nil, ErrInvalidKey
	}
	return &info, nil
}

// Source validates a raw key.
type Source interface {
	Validate(ctx context.Context, rawKey string) (*KeyInfo, error)
}

// Chain tries each source in order. ErrInvalidKey moves on to the next
// source; any other result is final.
type Chain []Source

func (c Chain) Validate(ctx context.Context, rawKey string) (*KeyInfo, error) {
	for _, src := range c {
		info, err := src.Validate(ctx, rawKey)
		if errors.Is(err, ErrInvalidKey) {
			continue
		}
		return info, err
	}
	return nil, ErrInvalidKey
}

// HashKey returns the SHA-256 hex digest of a raw API key.
func HashKey(raw string) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(raw)))
}

// generateRawKey returns a cryptographically random 32-byte hex-encoded string
// suitable for use as an API key.
func generateRawKey() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
