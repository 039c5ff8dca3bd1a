// Package settings provides runtime-editable configuration. Values live in
// the runtime_settings table so operators can rotate provider keys or switch
// the active provider without a restart; reads go through a short-lived cache
// and fall back to environment-derived defaults when no row exists.
package settings

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"server/internal/infra"
)

// Keys editable at runtime.
const (
	KeyGeminiGenAPIKey  = "GEMINIGEN_API_KEY"
	KeyKieAPIKey        = "KIE_API_KEY"
	KeyKieWebhookSecret = "KIE_WEBHOOK_HMAC_KEY"
	KeyProvider         = "TIME_MACHINE_PROVIDER"
	KeyDefaultMode      = "TIME_MACHINE_MODE"
)

const cacheKeyPrefix = "settings:"

// Store resolves setting values: DB override first, env fallback second.
// The redis cache is optional; a nil client degrades to direct DB reads.
type Store struct {
	sql      infra.SQLExecutor
	cache    *redis.Client
	ttl      time.Duration
	fallback map[string]string
}

// New creates a settings store. fallback maps setting keys to the values
// loaded from the environment at startup.
func New(sql infra.SQLExecutor, cache *redis.Client, ttl time.Duration, fallback map[string]string) *Store {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Store{sql: sql, cache: cache, ttl: ttl, fallback: fallback}
}

// Get returns the effective value for key. A cached or stored empty string
// means "no override": the env fallback wins.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	if s.cache != nil {
		if v, err := s.cache.Get(ctx, cacheKeyPrefix+key).Result(); err == nil {
			return s.orFallback(key, v), nil
		}
	}

	var value string
	row := s.sql.QueryRow(ctx, `SELECT value FROM runtime_settings WHERE key = $1`, key)
	if err := row.Scan(&value); err != nil {
		if !infra.IsNoRows(err) {
			return "", err
		}
		value = ""
	}
	value = strings.TrimSpace(value)

	if s.cache != nil {
		// Negative results are cached too, so a missing row does not
		// turn every request into a DB read.
		_ = s.cache.Set(ctx, cacheKeyPrefix+key, value, s.ttl).Err()
	}
	return s.orFallback(key, value), nil
}

// Set upserts an override and refreshes the cache entry.
func (s *Store) Set(ctx context.Context, key, value string) error {
	value = strings.TrimSpace(value)
	_, err := s.sql.Exec(ctx, `
INSERT INTO runtime_settings (key, value, updated_at)
VALUES ($1, $2, NOW())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW();
`, key, value)
	if err != nil {
		return err
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, cacheKeyPrefix+key, value, s.ttl).Err()
	}
	return nil
}

func (s *Store) orFallback(key, value string) string {
	if value != "" {
		return value
	}
	return s.fallback[key]
}
