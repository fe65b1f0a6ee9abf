package cache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mikey/mail-risk-analyzer/internal/core"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Default cache parameters
const (
	DefaultTTL            = 300 * time.Second
	DefaultCapacity       = 100
	DefaultComputeTimeout = 2 * time.Minute
)

// ErrNilResult is returned when a compute function yields neither a result nor an error
var ErrNilResult = errors.New("compute returned no result")

// MemoryCache is an in-memory analysis cache bounded by TTL and capacity.
// When full, the entry with the smallest creation time is evicted, regardless
// of how recently it was read.
type MemoryCache struct {
	entries        map[string]*core.CacheEntry
	mu             sync.RWMutex
	group          singleflight.Group
	ttl            time.Duration
	capacity       int
	computeTimeout time.Duration
	seq         uint64
	logger      *zap.Logger
	now         func() time.Time
	cleanupFreq time.Duration
	stopCh      chan struct{}
	stopOnce    sync.Once
}

// NewMemoryCache creates a new in-memory cache. A positive cleanupFreq starts
// a background purge of expired entries.
func NewMemoryCache(logger *zap.Logger, ttl time.Duration, capacity int, cleanupFreq time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	cache := &MemoryCache{
		entries:        make(map[string]*core.CacheEntry),
		ttl:            ttl,
		capacity:       capacity,
		computeTimeout: DefaultComputeTimeout,
		logger:         logger,
		now:            time.Now,
		cleanupFreq:    cleanupFreq,
		stopCh:         make(chan struct{}),
	}

	if cleanupFreq > 0 {
		go cache.startCleanupTask()
	}

	return cache
}

// SetClock replaces the time source, for tests
func (c *MemoryCache) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// SetComputeTimeout bounds a shared computation once it is detached from its callers
func (c *MemoryCache) SetComputeTimeout(d time.Duration) {
	if d > 0 {
		c.computeTimeout = d
	}
}

// GetOrCompute returns the fresh entry for id, or runs compute and stores its result.
// Concurrent misses for the same id share one computation, which runs detached
// from the caller that started it: a caller whose ctx ends stops waiting but
// does not cancel the computation for the others.
func (c *MemoryCache) GetOrCompute(ctx context.Context, id string, compute core.ComputeFunc) (*core.AnalysisResult, bool, error) {
	if result, ok := c.lookup(id); ok {
		return result, true, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(id, func() (interface{}, error) {
		// Another caller may have stored the entry while we waited
		if result, ok := c.lookup(id); ok {
			return result, nil
		}

		computeCtx, cancel := context.WithTimeout(shared, c.computeTimeout)
		defer cancel()

		result, err := c.run(computeCtx, id, compute)
		if err != nil {
			return nil, err
		}
		c.store(id, result)
		return result, nil
	})

	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		return res.Val.(*core.AnalysisResult), false, nil
	}
}

// run calls compute, turning a panic into an error so it cannot escape the
// singleflight goroutine
func (c *MemoryCache) run(ctx context.Context, id string, compute core.ComputeFunc) (result *core.AnalysisResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Analysis panicked", zap.String("uid", id), zap.Any("panic", r))
			result, err = nil, fmt.Errorf("analysis of %s panicked: %v", id, r)
		}
	}()

	result, err = compute(ctx)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, ErrNilResult
	}
	return result, nil
}

func (c *MemoryCache) lookup(id string) (*core.AnalysisResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[id]
	if !ok || !c.fresh(entry, c.now()) {
		return nil, false
	}
	return entry.Result, true
}

func (c *MemoryCache) fresh(entry *core.CacheEntry, now time.Time) bool {
	return now.Sub(entry.CreatedAt) < c.ttl
}

// store inserts a new entry and evicts the oldest one if over capacity
func (c *MemoryCache) store(id string, result *core.AnalysisResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	c.entries[id] = core.NewCacheEntry(id, result, c.now(), c.seq)

	if len(c.entries) <= c.capacity {
		return
	}

	var oldest *core.CacheEntry
	for _, entry := range c.entries {
		if oldest == nil || entry.Before(oldest) {
			oldest = entry
		}
	}
	delete(c.entries, oldest.MessageID)
	c.logger.Debug("Evicted oldest cache entry",
		zap.String("uid", oldest.MessageID),
		zap.Time("created_at", oldest.CreatedAt))
}

// Invalidate removes the entry for id
func (c *MemoryCache) Invalidate(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
}

// Entries returns the fresh entries, oldest first
func (c *MemoryCache) Entries() []*core.CacheEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.now()
	out := make([]*core.CacheEntry, 0, len(c.entries))
	for _, entry := range c.entries {
		if c.fresh(entry, now) {
			out = append(out, entry)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// Len returns the number of stored entries, including expired ones not yet purged
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Cleanup removes expired entries
func (c *MemoryCache) Cleanup(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	expiredCount := 0

	for key, entry := range c.entries {
		if !c.fresh(entry, now) {
			delete(c.entries, key)
			expiredCount++
		}
	}

	c.logger.Debug("Cleaned up expired cache entries", zap.Int("expired_count", expiredCount))
	return nil
}

// startCleanupTask starts a background task to clean up expired entries
func (c *MemoryCache) startCleanupTask() {
	ticker := time.NewTicker(c.cleanupFreq)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.Cleanup(context.Background()); err != nil {
				c.logger.Error("Failed to clean up cache", zap.Error(err))
			}
		case <-c.stopCh:
			return
		}
	}
}

// Stop stops the background cleanup task
func (c *MemoryCache) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}
