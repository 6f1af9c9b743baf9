package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

const (
	assignmentKeyPrefix = "proxy_assignment"
	// assignmentIndexPrefix tracks every assignment key of a member so all
	// of them can be dropped at once.
	assignmentIndexPrefix = "proxy_assignment_index"

	DefaultAssignmentTTL = time.Hour
)

// CachedAssignment is the cached view of a member's proxy account on a platform.
// ProviderCode names the provider app the account belongs to.
type CachedAssignment struct {
	AccountCode  string `json:"proxy_account_code"`
	ProviderCode string `json:"provider_code"`
}

// ProxyAssignmentCache maps (platform, member) to the assigned proxy account.
type ProxyAssignmentCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewProxyAssignmentCache(rdb *redis.Client, ttl time.Duration) *ProxyAssignmentCache {
	if ttl <= 0 {
		ttl = DefaultAssignmentTTL
	}
	return &ProxyAssignmentCache{rdb: rdb, ttl: ttl}
}

func AssignmentKey(platform string, memberID uint) string {
	return fmt.Sprintf("%s:%s:%d", assignmentKeyPrefix, platform, memberID)
}

func assignmentIndexKey(memberID uint) string {
	return fmt.Sprintf("%s:%d", assignmentIndexPrefix, memberID)
}

func (c *ProxyAssignmentCache) Get(ctx context.Context, platform string, memberID uint) (*CachedAssignment, bool, error) {
	raw, err := c.rdb.Get(ctx, AssignmentKey(platform, memberID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var a CachedAssignment
	if err := json.Unmarshal(raw, &a); err != nil || a.AccountCode == "" {
		// unreadable entries count as a miss
		return nil, false, nil
	}
	return &a, true, nil
}

func (c *ProxyAssignmentCache) Set(ctx context.Context, platform string, memberID uint, a CachedAssignment) error {
	raw, err := json.Marshal(a)
	if err != nil {
		return err
	}
	key := AssignmentKey(platform, memberID)
	idx := assignmentIndexKey(memberID)

	_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, raw, c.ttl)
		pipe.SAdd(ctx, idx, key)
		pipe.Expire(ctx, idx, c.ttl)
		return nil
	})
	return err
}

func (c *ProxyAssignmentCache) Delete(ctx context.Context, platform string, memberID uint) error {
	key := AssignmentKey(platform, memberID)
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.SRem(ctx, assignmentIndexKey(memberID), key)
		return nil
	})
	return err
}

// DeleteAllForMember drops every assignment entry of memberID across platforms.
func (c *ProxyAssignmentCache) DeleteAllForMember(ctx context.Context, memberID uint) error {
	idx := assignmentIndexKey(memberID)
	keys, err := c.rdb.SMembers(ctx, idx).Result()
	if err != nil && err != redis.Nil {
		return err
	}
	keys = append(keys, idx)
	return c.rdb.Del(ctx, keys...).Err()
}
