package research

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores successful search results keyed by normalized query.
type Cache interface {
	Get(ctx context.Context, key string) (Search, bool)
	Set(ctx context.Context, key string, s Search, ttl time.Duration)
}

func cacheKey(query string) string {
	norm := strings.ToLower(strings.Join(strings.Fields(query), " "))
	sum := sha256.Sum256([]byte(norm))
	return hex.EncodeToString(sum[:])
}

// MemoryCache is an in-process TTL cache.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	search  Search
	expires time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry), now: time.Now}
}

func (c *MemoryCache) Get(_ context.Context, key string) (Search, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return Search{}, false
	}
	if !e.expires.IsZero() && c.now().After(e.expires) {
		delete(c.entries, key)
		return Search{}, false
	}
	return e.search, true
}

func (c *MemoryCache) Set(_ context.Context, key string, s Search, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var expires time.Time
	if ttl > 0 {
		expires = c.now().Add(ttl)
	}
	c.entries[key] = memoryEntry{search: s, expires: expires}
}

// RedisCache stores searches as JSON under "<prefix>:<hash>".
type RedisCache struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

// NewRedisCache connects to addr and verifies the connection with PING.
func NewRedisCache(ctx context.Context, addr, password string, db int) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}
	return NewRedisCacheWithClient(client), nil
}

func NewRedisCacheWithClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client, prefix: "legitcheck:research", logger: slog.Default()}
}

func (c *RedisCache) Get(ctx context.Context, key string) (Search, bool) {
	raw, err := c.client.Get(ctx, c.prefix+":"+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("research cache read failed", "error", err)
		}
		return Search{}, false
	}
	var s Search
	if err := json.Unmarshal(raw, &s); err != nil {
		c.logger.Warn("research cache entry corrupt", "error", err)
		return Search{}, false
	}
	return s, true
}

func (c *RedisCache) Set(ctx context.Context, key string, s Search, ttl time.Duration) {
	data, err := json.Marshal(s)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, c.prefix+":"+key, data, ttl).Err(); err != nil {
		c.logger.Warn("research cache write failed", "error", err)
	}
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
