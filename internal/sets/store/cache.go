package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"geoset/internal/sets"
)

// MemberCache is a read-through Redis cache over a Store's member snapshots.
// A (set, version) snapshot is immutable once written, so cached entries are
// never stale; only whole-set deletion and overwrite restores evict. Cache
// failures degrade to the inner store, never to an error.
type MemberCache struct {
	Store
	redis  *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewMemberCache decorates inner with a Redis member cache.
func NewMemberCache(inner Store, client *redis.Client, ttl time.Duration, logger *slog.Logger) *MemberCache {
	return &MemberCache{Store: inner, redis: client, ttl: ttl, logger: logger}
}

func memberKey(name string, version int) string {
	return fmt.Sprintf("geoset:members:%s:%d", name, version)
}

func (c *MemberCache) Members(ctx context.Context, name string, version int) ([]string, error) {
	key := memberKey(name, version)
	raw, err := c.redis.Get(ctx, key).Result()
	if err == nil {
		var members []string
		if jsonErr := json.Unmarshal([]byte(raw), &members); jsonErr == nil {
			return members, nil
		}
		// Unreadable entry: drop it and fall through to the store.
		c.redis.Del(ctx, key)
	} else if !errors.Is(err, redis.Nil) {
		c.logger.WarnContext(ctx, "member cache read failed", "key", key, "error", err)
	}

	members, err := c.Store.Members(ctx, name, version)
	if err != nil {
		return nil, err
	}

	if encoded, jsonErr := json.Marshal(members); jsonErr == nil {
		if setErr := c.redis.Set(ctx, key, encoded, c.ttl).Err(); setErr != nil {
			c.logger.WarnContext(ctx, "member cache write failed", "key", key, "error", setErr)
		}
	}
	return members, nil
}

// DeleteSet evicts every cached version of the set before deleting, so a
// recreated set of the same name cannot serve the old chain's snapshots.
func (c *MemberCache) DeleteSet(ctx context.Context, name string) (bool, error) {
	c.evictPrefix(ctx, fmt.Sprintf("geoset:members:%s:*", name))
	return c.Store.DeleteSet(ctx, name)
}

// RestoreAll flushes the whole member cache when overwriting, since an
// overwrite restore may reassign any (set, version) pair.
func (c *MemberCache) RestoreAll(ctx context.Context, versions []sets.Version, members []sets.Member, changes []sets.Change, overwrite bool) error {
	if overwrite {
		c.evictPrefix(ctx, "geoset:members:*")
	}
	return c.Store.RestoreAll(ctx, versions, members, changes, overwrite)
}

func (c *MemberCache) evictPrefix(ctx context.Context, pattern string) {
	iter := c.redis.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		if err := c.redis.Del(ctx, iter.Val()).Err(); err != nil {
			c.logger.WarnContext(ctx, "member cache eviction failed", "key", iter.Val(), "error", err)
		}
	}
	if err := iter.Err(); err != nil {
		c.logger.WarnContext(ctx, "member cache scan failed", "pattern", pattern, "error", err)
	}
}
