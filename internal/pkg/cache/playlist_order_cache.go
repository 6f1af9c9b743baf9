package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

const (
	playlistOrderKeyPrefix = "spotify_playlist_order"

	DefaultPlaylistOrderTTL = 30 * time.Minute
)

// PlaylistOrderCache remembers the validated track order between validate and import.
type PlaylistOrderCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewPlaylistOrderCache(rdb *redis.Client, ttl time.Duration) *PlaylistOrderCache {
	if ttl <= 0 {
		ttl = DefaultPlaylistOrderTTL
	}
	return &PlaylistOrderCache{rdb: rdb, ttl: ttl}
}

func PlaylistOrderKey(memberID uint, playlistType string) string {
	return fmt.Sprintf("%s:%d:%s", playlistOrderKeyPrefix, memberID, playlistType)
}

func (c *PlaylistOrderCache) Set(ctx context.Context, memberID uint, playlistType string, trackIDs []string) error {
	if trackIDs == nil {
		trackIDs = []string{}
	}
	payload, err := json.Marshal(trackIDs)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, PlaylistOrderKey(memberID, playlistType), payload, c.ttl).Err()
}

// Get returns the cached order; ok is false when the entry is missing or expired.
func (c *PlaylistOrderCache) Get(ctx context.Context, memberID uint, playlistType string) ([]string, bool, error) {
	raw, err := c.rdb.Get(ctx, PlaylistOrderKey(memberID, playlistType)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, false, fmt.Errorf("decode playlist order: %w", err)
	}
	return ids, true, nil
}

func (c *PlaylistOrderCache) Delete(ctx context.Context, memberID uint, playlistType string) error {
	return c.rdb.Del(ctx, PlaylistOrderKey(memberID, playlistType)).Err()
}
