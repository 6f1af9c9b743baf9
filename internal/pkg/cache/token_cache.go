package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const tokenKeyPrefix = "provider_token"

// TokenCache holds plaintext access tokens keyed by owner and provider.
// Entries expire a safety margin before the token itself does.
type TokenCache struct {
	rdb *redis.Client
}

func NewTokenCache(rdb *redis.Client) *TokenCache {
	return &TokenCache{rdb: rdb}
}

func TokenKey(ownerKind string, ownerID uint, providerCode string) string {
	return fmt.Sprintf("%s:%s:%d:%s", tokenKeyPrefix, ownerKind, ownerID, providerCode)
}

// Get returns the cached token and whether it was present.
func (c *TokenCache) Get(ctx context.Context, ownerKind string, ownerID uint, providerCode string) (string, bool, error) {
	val, err := c.rdb.Get(ctx, TokenKey(ownerKind, ownerID, providerCode)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// Set stores token for ttl. A non-positive ttl is a no-op.
func (c *TokenCache) Set(ctx context.Context, ownerKind string, ownerID uint, providerCode, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return c.rdb.Set(ctx, TokenKey(ownerKind, ownerID, providerCode), token, ttl).Err()
}

func (c *TokenCache) Delete(ctx context.Context, ownerKind string, ownerID uint, providerCode string) error {
	return c.rdb.Del(ctx, TokenKey(ownerKind, ownerID, providerCode)).Err()
}
