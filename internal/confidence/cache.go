package confidence

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	id "waypost/pkg/domain"
	"waypost/pkg/platform/sentinel"
)

// cacheTTL bounds staleness if an invalidation is ever lost. Writes always
// invalidate, so the TTL is a backstop, not the consistency mechanism.
const cacheTTL = 15 * time.Minute

// Cache stores computed levels per venue. Get returns sentinel.ErrNotFound
// on a miss.
type Cache interface {
	Get(ctx context.Context, venueID id.VenueID) (id.Level, error)
	Set(ctx context.Context, venueID id.VenueID, level id.Level) error
	Invalidate(ctx context.Context, venueID id.VenueID) error
}

// MemoryCache is the dev and test cache.
type MemoryCache struct {
	mu     sync.RWMutex
	levels map[id.VenueID]id.Level
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{levels: make(map[id.VenueID]id.Level)}
}

func (c *MemoryCache) Get(_ context.Context, venueID id.VenueID) (id.Level, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	level, ok := c.levels[venueID]
	if !ok {
		return 0, fmt.Errorf("level not cached: %w", sentinel.ErrNotFound)
	}
	return level, nil
}

func (c *MemoryCache) Set(_ context.Context, venueID id.VenueID, level id.Level) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.levels[venueID] = level
	return nil
}

func (c *MemoryCache) Invalidate(_ context.Context, venueID id.VenueID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.levels, venueID)
	return nil
}

// RedisCache shares computed levels across instances.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func levelKey(venueID id.VenueID) string {
	return "confidence:level:" + venueID.String()
}

func (c *RedisCache) Get(ctx context.Context, venueID id.VenueID) (id.Level, error) {
	raw, err := c.client.Get(ctx, levelKey(venueID)).Int()
	if err != nil {
		if err == redis.Nil {
			return 0, fmt.Errorf("level not cached: %w", sentinel.ErrNotFound)
		}
		return 0, fmt.Errorf("get cached level: %w", err)
	}
	if raw < int(id.LevelReported) || raw > int(id.LevelMaintained) {
		return 0, fmt.Errorf("corrupt cached level %d: %w", raw, sentinel.ErrNotFound)
	}
	return id.Level(raw), nil
}

func (c *RedisCache) Set(ctx context.Context, venueID id.VenueID, level id.Level) error {
	if err := c.client.Set(ctx, levelKey(venueID), int(level), cacheTTL).Err(); err != nil {
		return fmt.Errorf("cache level: %w", err)
	}
	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context, venueID id.VenueID) error {
	if err := c.client.Del(ctx, levelKey(venueID)).Err(); err != nil {
		return fmt.Errorf("invalidate cached level: %w", err)
	}
	return nil
}
