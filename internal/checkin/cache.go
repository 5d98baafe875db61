package checkin

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

const checkedInKey = "ticketly:v1:checkin:seen"

// KeyCheckedIn is the redis set holding ticket ids seen at the door.
func KeyCheckedIn() string {
	return checkedInKey
}

// Cache remembers ticket ids already admitted. The ledger stays the
// authority: the cache only answers while the ledger cannot.
type Cache interface {
	Seen(ctx context.Context, ticketID string) (bool, error)
	Add(ctx context.Context, ticketIDs ...string) error
	Remove(ctx context.Context, ticketIDs ...string) error
	Clear(ctx context.Context) error
}

type RedisCache struct {
	rdb *redis.Client
	key string
	ttl time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: client, key: KeyCheckedIn(), ttl: ttl}
}

func (c *RedisCache) Seen(ctx context.Context, ticketID string) (bool, error) {
	return c.rdb.SIsMember(ctx, c.key, ticketID).Result()
}

func (c *RedisCache) Add(ctx context.Context, ticketIDs ...string) error {
	if len(ticketIDs) == 0 {
		return nil
	}

	members := make([]interface{}, len(ticketIDs))
	for i, id := range ticketIDs {
		members[i] = id
	}

	pipe := c.rdb.TxPipeline()
	pipe.SAdd(ctx, c.key, members...)
	if c.ttl > 0 {
		pipe.Expire(ctx, c.key, c.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (c *RedisCache) Remove(ctx context.Context, ticketIDs ...string) error {
	if len(ticketIDs) == 0 {
		return nil
	}
	members := make([]interface{}, len(ticketIDs))
	for i, id := range ticketIDs {
		members[i] = id
	}
	return c.rdb.SRem(ctx, c.key, members...).Err()
}

func (c *RedisCache) Clear(ctx context.Context) error {
	return c.rdb.Del(ctx, c.key).Err()
}

// MemoryCache is the in-process cache used when no redis is configured.
type MemoryCache struct {
	mu   sync.RWMutex
	seen map[string]struct{}
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{seen: make(map[string]struct{})}
}

func (c *MemoryCache) Seen(_ context.Context, ticketID string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.seen[ticketID]
	return ok, nil
}

func (c *MemoryCache) Add(_ context.Context, ticketIDs ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ticketIDs {
		c.seen[id] = struct{}{}
	}
	return nil
}

func (c *MemoryCache) Remove(_ context.Context, ticketIDs ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ticketIDs {
		delete(c.seen, id)
	}
	return nil
}

func (c *MemoryCache) Clear(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen = make(map[string]struct{})
	return nil
}
