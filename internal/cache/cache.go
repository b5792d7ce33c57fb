// Package cache provides the read-through cache in front of task reads.
//
// Entries expire after a TTL and the whole cache is flushed after every
// mutation. The cache is never consulted for cycle checks; disabling it
// only changes latency.
package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"

	"github.com/khoitran3172/todo-list/internal/types"
)

// DefaultTTL is applied when Config.TTL is zero.
const DefaultTTL = 5 * time.Minute

// Config configures a Cache.
type Config struct {
	Enabled bool
	TTL     time.Duration

	// Registerer receives the cache metrics. Nil skips registration.
	Registerer prometheus.Registerer
}

// Cache is a TTL cache with generation-checked fills.
//
// Every Flush bumps the generation. A load that started before a flush
// completes without storing its result, so a read issued after a mutation
// never observes a value filled from pre-mutation state.
type Cache struct {
	enabled bool
	items   *gocache.Cache
	group   singleflight.Group
	metrics *metrics

	// mu orders fills against flushes.
	mu  sync.Mutex
	gen atomic.Uint64
}

// New creates a cache.
func New(cfg Config) *Cache {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		enabled: cfg.Enabled,
		items:   gocache.New(ttl, 2*ttl),
		metrics: newMetrics(cfg.Registerer),
	}
}

// Disabled returns a cache that always loads.
func Disabled() *Cache {
	return New(Config{Enabled: false})
}

// TaskKey is the key for a single task read.
func TaskKey(id int64) string {
	return fmt.Sprintf("task:%d", id)
}

// ListKey is the key for one page of a filtered task listing.
func ListKey(page, pageSize int, filter types.TaskFilter) string {
	return fmt.Sprintf("tasks:%d:%d:%s", page, pageSize, filter.Key())
}

// Enabled reports whether reads are cached.
func (c *Cache) Enabled() bool { return c.enabled }

// Len returns the number of live entries.
func (c *Cache) Len() int { return c.items.ItemCount() }

// Generation returns the number of flushes so far.
func (c *Cache) Generation() uint64 { return c.gen.Load() }

// Flush drops every entry and invalidates in-flight loads.
func (c *Cache) Flush() {
	c.mu.Lock()
	c.gen.Add(1)
	c.items.Flush()
	c.mu.Unlock()
	c.metrics.flushes.Inc()
}

// Stats is a point-in-time view of the cache counters.
type Stats struct {
	Entries    int
	Generation uint64
}

// Stats returns the entry count and generation.
func (c *Cache) Stats() Stats {
	return Stats{Entries: c.Len(), Generation: c.Generation()}
}

func (c *Cache) get(key string) (any, bool) {
	v, ok := c.items.Get(key)
	if ok {
		c.metrics.hits.Inc()
	} else {
		c.metrics.misses.Inc()
	}
	return v, ok
}

// fill stores v under key unless a flush happened after gen was read.
func (c *Cache) fill(key string, gen uint64, v any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen.Load() != gen {
		c.metrics.discarded.Inc()
		return false
	}
	c.items.SetDefault(key, v)
	return true
}

// Fetch returns the cached value for key or loads, caches and returns it.
//
// Concurrent misses for the same key within one generation share a single
// load, and a caller whose ctx ends stops waiting without failing the
// others. clone is applied to everything handed out of or into the cache so
// callers may mutate what they receive. Load errors are never cached.
func Fetch[T any](ctx context.Context, c *Cache, key string, clone func(T) T, load func(context.Context) (T, error)) (T, error) {
	if !c.enabled {
		return load(ctx)
	}

	if v, ok := c.get(key); ok {
		return clone(v.(T)), nil
	}

	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	// The shared load outlives any one caller, so it runs detached from the
	// caller's cancellation; each caller stops waiting on its own ctx.
	gen := c.gen.Load()
	ch := c.group.DoChan(fmt.Sprintf("%d:%s", gen, key), func() (any, error) {
		loaded, err := load(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		c.fill(key, gen, clone(loaded))
		return loaded, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return clone(res.Val.(T)), nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
