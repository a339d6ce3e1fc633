package cache

import (
	"context"
	"hash/fnv"
	"sync"
	"time"
)

const (
	// Default settings
	defaultShardCount      = 16
	defaultTTL             = 15 * time.Minute
	defaultCleanupInterval = 1 * time.Minute
)

// CacheItem represents a cached item with expiration
type CacheItem[V any] struct {
	Value     V
	CreatedAt time.Time
	ExpiresAt time.Time
}

// IsExpired checks if the cache item has expired
func (item *CacheItem[V]) IsExpired(now time.Time) bool {
	return now.After(item.ExpiresAt)
}

// CacheShard represents a single shard of the cache with its own lock
type CacheShard[V any] struct {
	mu    sync.RWMutex
	items map[string]*CacheItem[V]
}

// ShardedCache is a thread-safe sharded TTL cache.
// The HTTP layer keeps one rate limiter per client in it; entries expire
// after the TTL of inactivity.
type ShardedCache[V any] struct {
	shards          []*CacheShard[V]
	shardCount      int
	ttl             time.Duration
	cleanupInterval time.Duration
	now             func() time.Time

	// Cleanup worker management
	cleanupWorkerRunning bool
	cleanupWorkerMu      sync.Mutex
	cleanupWorkerStop    chan struct{}
	cleanupWorkerWg      sync.WaitGroup
}

// NewShardedCache creates a new sharded cache; ttl is in seconds
func NewShardedCache[V any](shardCount int, ttl int) *ShardedCache[V] {
	if shardCount < 1 {
		shardCount = defaultShardCount
	}

	ttlDuration := time.Duration(ttl) * time.Second
	if ttlDuration <= 0 {
		ttlDuration = defaultTTL
	}

	shards := make([]*CacheShard[V], shardCount)
	for i := range shards {
		shards[i] = &CacheShard[V]{
			items: make(map[string]*CacheItem[V]),
		}
	}

	return &ShardedCache[V]{
		shards:            shards,
		shardCount:        shardCount,
		ttl:               ttlDuration,
		cleanupInterval:   defaultCleanupInterval,
		now:               time.Now,
		cleanupWorkerStop: make(chan struct{}),
	}
}

// getShard returns the shard for a given key using FNV hash
func (c *ShardedCache[V]) getShard(key string) *CacheShard[V] {
	hash := fnv.New32a()
	hash.Write([]byte(key))
	return c.shards[hash.Sum32()%uint32(c.shardCount)]
}

// GetOrCreate returns the live value for key, creating it under the shard
// lock when absent or expired. Every access extends the TTL.
func (c *ShardedCache[V]) GetOrCreate(key string, create func() V) V {
	shard := c.getShard(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	now := c.now()
	item, exists := shard.items[key]
	if !exists || item.IsExpired(now) {
		item = &CacheItem[V]{Value: create(), CreatedAt: now}
		shard.items[key] = item
	}
	item.ExpiresAt = now.Add(c.ttl)
	return item.Value
}

// CleanExpired removes all expired items
func (c *ShardedCache[V]) CleanExpired(ctx context.Context) error {
	for _, shard := range c.shards {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		now := c.now()
		shard.mu.Lock()
		for key, item := range shard.items {
			if item.IsExpired(now) {
				delete(shard.items, key)
			}
		}
		shard.mu.Unlock()
	}
	return nil
}

// StartCleanupWorker starts a background goroutine that periodically removes expired items
func (c *ShardedCache[V]) StartCleanupWorker() {
	c.cleanupWorkerMu.Lock()
	defer c.cleanupWorkerMu.Unlock()

	if c.cleanupWorkerRunning {
		return
	}

	c.cleanupWorkerRunning = true
	c.cleanupWorkerStop = make(chan struct{})

	c.cleanupWorkerWg.Add(1)
	go c.cleanupWorker()
}

// StopCleanupWorker stops the background cleanup worker gracefully
func (c *ShardedCache[V]) StopCleanupWorker() {
	c.cleanupWorkerMu.Lock()
	defer c.cleanupWorkerMu.Unlock()

	if !c.cleanupWorkerRunning {
		return
	}

	close(c.cleanupWorkerStop)
	c.cleanupWorkerWg.Wait()
	c.cleanupWorkerRunning = false
}

func (c *ShardedCache[V]) cleanupWorker() {
	defer c.cleanupWorkerWg.Done()

	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.cleanupWorkerStop:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = c.CleanExpired(ctx)
			cancel()
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			_ = c.CleanExpired(ctx)
			cancel()
		}
	}
}

// Len returns the number of stored items, expired ones included
func (c *ShardedCache[V]) Len() int {
	total := 0
	for _, shard := range c.shards {
		shard.mu.RLock()
		total += len(shard.items)
		shard.mu.RUnlock()
	}
	return total
}

// GetStats returns cache statistics
func (c *ShardedCache[V]) GetStats() CacheStats {
	stats := CacheStats{
		ShardCount: c.shardCount,
		ShardStats: make([]ShardStat, c.shardCount),
	}

	now := c.now()
	for i, shard := range c.shards {
		shard.mu.RLock()
		itemCount := len(shard.items)
		expiredCount := 0
		for _, item := range shard.items {
			if item.IsExpired(now) {
				expiredCount++
			}
		}
		shard.mu.RUnlock()

		stats.ShardStats[i] = ShardStat{
			Index:        i,
			ItemCount:    itemCount,
			ExpiredCount: expiredCount,
		}
		stats.TotalItems += itemCount
		stats.TotalExpired += expiredCount
	}

	return stats
}

// CacheStats represents cache statistics
type CacheStats struct {
	ShardCount   int
	TotalItems   int
	TotalExpired int // expired but not yet cleaned
	ShardStats   []ShardStat
}

// ShardStat represents statistics for a single shard
type ShardStat struct {
	Index        int
	ItemCount    int
	ExpiredCount int
}
