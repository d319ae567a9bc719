package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/queueup/queueup/internal/model"
)

const (
	// authCachePrefix is the Redis key prefix for auth context cache.
	authCachePrefix = "auth:ctx:"
	// authCacheTTL bounds how long a revoked key keeps authenticating
	// from cache.
	authCacheTTL = 5 * time.Minute
)

// cachedAuthContext is the Redis representation of an auth context.
// Kept separate from model.AuthContext so the stored shape does not
// change when the in-memory type grows fields.
type cachedAuthContext struct {
	KeyID         string   `json:"key_id"`
	KeyPrefix     string   `json:"key_prefix"`
	UserID        int64    `json:"user_id"`
	Scopes        []string `json:"scopes"`
	RateLimitTier string   `json:"rate_limit_tier"`
}

// GetAuthContext retrieves a cached auth context. A miss, a Redis
// error, and a corrupted entry all return (nil, nil); the caller falls
// back to Postgres and Argon2 verification either way.
func (c *Cache) GetAuthContext(ctx context.Context, cacheKey string) (*model.AuthContext, error) {
	data, err := c.client.Get(ctx, authCachePrefix+cacheKey).Bytes()
	if err != nil {
		return nil, nil //nolint:nilerr
	}

	var cached cachedAuthContext
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, nil //nolint:nilerr
	}

	return &model.AuthContext{
		KeyID:         cached.KeyID,
		KeyPrefix:     cached.KeyPrefix,
		UserID:        cached.UserID,
		Scopes:        cached.Scopes,
		RateLimitTier: cached.RateLimitTier,
	}, nil
}

// SetAuthContext caches an auth context under the hashed plaintext key.
func (c *Cache) SetAuthContext(ctx context.Context, cacheKey string, auth *model.AuthContext) error {
	data, err := json.Marshal(cachedAuthContext{
		KeyID:         auth.KeyID,
		KeyPrefix:     auth.KeyPrefix,
		UserID:        auth.UserID,
		Scopes:        auth.Scopes,
		RateLimitTier: auth.RateLimitTier,
	})
	if err != nil {
		return fmt.Errorf("marshal auth context: %w", err)
	}

	return c.client.Set(ctx, authCachePrefix+cacheKey, data, authCacheTTL).Err()
}

// DeleteAuthContext removes a cached auth context after revocation.
func (c *Cache) DeleteAuthContext(ctx context.Context, cacheKey string) error {
	return c.client.Del(ctx, authCachePrefix+cacheKey).Err()
}

// InvalidateUserAuthContexts would remove every cached context for a
// user. Doing that needs a SCAN or a per-user key set; revocation of a
// single key calls DeleteAuthContext instead, and the short TTL covers
// the rest. TODO: maintain a per-user set if bulk revocation lands.
func (c *Cache) InvalidateUserAuthContexts(ctx context.Context, userID int64) error {
	return nil
}
