package permcache

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// LRUCache is a bounded in-process cache with per-entry TTL
type LRUCache struct {
	mu    sync.Mutex
	epoch int64
	cache *lru.LRU[string, []byte]
}

// NewLRUCache creates an LRU cache holding at most maxEntries entries
func NewLRUCache(maxEntries int, ttl time.Duration) *LRUCache {
	return &LRUCache{
		cache: lru.NewLRU[string, []byte](maxEntries, nil, ttl),
	}
}

func (c *LRUCache) Get(ctx context.Context, key string) ([]byte, error) {
	value, ok := c.cache.Get(key)
	if !ok {
		return nil, ErrCacheMiss
	}
	return value, nil
}

func (c *LRUCache) Generation(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch, nil
}

// Set drops the value when an Invalidate ran after gen was read
func (c *LRUCache) Set(ctx context.Context, gen int64, key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.epoch {
		return nil
	}
	c.cache.Add(key, value)
	return nil
}

// Invalidate purges every entry; an LRU cannot pattern-match keys
func (c *LRUCache) Invalidate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	c.cache.Purge()
	return nil
}

// Len returns the number of live entries
func (c *LRUCache) Len() int {
	return c.cache.Len()
}

func (c *LRUCache) Close() error {
	c.cache.Purge()
	return nil
}
