// Package cache memoizes diff results keyed by blob identities.
//
// Concurrent GetOrCompute calls for one key share a single computation
// (golang.org/x/sync/singleflight). A caller whose context is canceled stops
// waiting, but the computation keeps running for the others and its result
// is still stored. Failed computations are returned to every waiter wrapped
// as erruser.ErrCacheComputationFailed and are never stored.
//
// Entries are evicted least-recently-used first (github.com/golang/groupcache/lru)
// once their total estimated size exceeds MaxBytes, and expire TTL after they
// were stored.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang/groupcache/lru"
	"golang.org/x/sync/singleflight"

	"revdiff/cli/internal/diff"
	"revdiff/cli/internal/erruser"
	"revdiff/cli/internal/resolve"
	"revdiff/cli/internal/trace"
)

// Defaults used when Options leaves a field zero.
const (
	DefaultMaxBytes = 64 << 20
	DefaultTTL      = 10 * time.Minute
)

// Options configures a Cache.
type Options struct {
	MaxBytes int64         // byte budget; zero means DefaultMaxBytes, negative means unbounded
	TTL      time.Duration // zero means DefaultTTL, negative means no expiry
	Tracer   *trace.Tracer // optional
	Now      func() time.Time
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Hits         uint64 `json:"hits"`
	Misses       uint64 `json:"misses"`
	Computations uint64 `json:"computations"`
	Evictions    uint64 `json:"evictions"`
	Expirations  uint64 `json:"expirations"`
	Entries      int    `json:"entries"`
	Bytes        int64  `json:"bytes"`
}

// ComputeFunc produces the result for a key on a miss.
type ComputeFunc func(ctx context.Context) (diff.Result, error)

type entry struct {
	key      Key
	result   diff.Result
	size     int64
	stored   time.Time
	accessed time.Time
}

// Cache is a concurrency-safe diff result cache. The zero value is not usable;
// call New.
type Cache struct {
	group singleflight.Group

	maxBytes int64
	ttl      time.Duration
	tracer   *trace.Tracer
	now      func() time.Time

	mu      sync.Mutex
	entries *lru.Cache
	bytes   int64
	byPath  map[resolve.RepoPath]map[string]struct{}
	gen     uint64 // bumped by invalidation; flights started earlier do not store
	waiting map[string]int
	stats   Stats
}

// New returns an empty Cache.
func New(opts Options) *Cache {
	c := &Cache{
		maxBytes: opts.MaxBytes,
		ttl:      opts.TTL,
		tracer:   opts.Tracer,
		now:      opts.Now,
		entries:  lru.New(0),
		byPath:   make(map[resolve.RepoPath]map[string]struct{}),
		waiting:  make(map[string]int),
	}
	if c.maxBytes == 0 {
		c.maxBytes = DefaultMaxBytes
	}
	if c.ttl == 0 {
		c.ttl = DefaultTTL
	}
	if c.now == nil {
		c.now = time.Now
	}
	c.entries.OnEvicted = c.onEvicted
	return c
}

// GetOrCompute returns the cached result for key, or runs compute once for all
// concurrent callers of the same key. Results are shared: callers must not
// modify the returned Lines.
func (c *Cache) GetOrCompute(ctx context.Context, key Key, compute ComputeFunc) (diff.Result, error) {
	id := key.Fingerprint()
	if r, ok := c.get(id, true); ok {
		c.tracer.Event("cache hit", "path", key.Path, "mode", key.Mode)
		return r, nil
	}
	c.tracer.Event("cache miss", "path", key.Path, "mode", key.Mode)

	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()

	flightCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(id, func() (interface{}, error) {
		if r, ok := c.get(id, false); ok {
			return r, nil
		}
		c.mu.Lock()
		c.stats.Computations++
		c.mu.Unlock()
		r, err := compute(flightCtx)
		if err != nil {
			c.tracer.Event("cache flight failed", "path", key.Path, "err", err)
			return nil, erruser.Wrap(erruser.ErrCacheComputationFailed,
				fmt.Sprintf("Could not compute the diff for %s.", key.Path), err)
		}
		c.put(id, key, r, gen)
		return r, nil
	})

	// DoChan has attached this caller to the flight by now.
	c.mu.Lock()
	c.waiting[id]++
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		if c.waiting[id]--; c.waiting[id] == 0 {
			delete(c.waiting, id)
		}
		c.mu.Unlock()
	}()

	select {
	case <-ctx.Done():
		return diff.Result{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return diff.Result{}, res.Err
		}
		return res.Val.(diff.Result), nil
	}
}

// Invalidate drops every entry for path and returns how many were dropped.
func (c *Cache) Invalidate(path resolve.RepoPath) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	ids := make([]string, 0, len(c.byPath[path]))
	for id := range c.byPath[path] {
		ids = append(ids, id)
	}
	for _, id := range ids {
		c.entries.Remove(id)
	}
	c.tracer.Event("cache invalidate", "path", path, "entries", len(ids))
	return len(ids)
}

// InvalidateAll drops every entry.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	n := c.entries.Len()
	c.entries.Clear()
	c.tracer.Event("cache invalidate all", "entries", n)
}

// Stats returns a snapshot of the counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Entries = c.entries.Len()
	s.Bytes = c.bytes
	return s
}

// Waiting returns how many callers are currently waiting on key's computation.
func (c *Cache) Waiting(key Key) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.waiting[key.Fingerprint()]
}

// get looks up id, dropping it if expired. count selects whether the lookup
// is recorded as a hit or miss.
func (c *Cache) get(id string, count bool) (diff.Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries.Get(id)
	if ok {
		e := v.(*entry)
		now := c.now()
		if c.ttl > 0 && now.Sub(e.stored) >= c.ttl {
			c.entries.Remove(id)
			c.stats.Expirations++
			c.tracer.Event("cache expire", "path", e.key.Path, "age", now.Sub(e.stored))
		} else {
			e.accessed = now
			if count {
				c.stats.Hits++
			}
			return e.result, true
		}
	}
	if count {
		c.stats.Misses++
	}
	return diff.Result{}, false
}

func (c *Cache) put(id string, key Key, r diff.Result, gen uint64) {
	size := r.Size()
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	if c.maxBytes > 0 && size > c.maxBytes {
		c.tracer.Event("cache skip", "path", key.Path, "bytes", size)
		return
	}
	c.entries.Remove(id)
	now := c.now()
	c.entries.Add(id, &entry{key: key, result: r, size: size, stored: now, accessed: now})
	c.bytes += size
	ids := c.byPath[key.Path]
	if ids == nil {
		ids = make(map[string]struct{})
		c.byPath[key.Path] = ids
	}
	ids[id] = struct{}{}
	c.tracer.Event("cache store", "path", key.Path, "mode", key.Mode, "bytes", size)

	for c.maxBytes > 0 && c.bytes > c.maxBytes && c.entries.Len() > 1 {
		c.entries.RemoveOldest()
		c.stats.Evictions++
	}
}

// onEvicted keeps byte and path bookkeeping in step with the LRU list. It runs
// with c.mu held.
func (c *Cache) onEvicted(k lru.Key, v interface{}) {
	e := v.(*entry)
	c.bytes -= e.size
	id := k.(string)
	if ids := c.byPath[e.key.Path]; ids != nil {
		delete(ids, id)
		if len(ids) == 0 {
			delete(c.byPath, e.key.Path)
		}
	}
}
