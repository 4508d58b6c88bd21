// Package cache holds the most recent merged result for a fixed time window.
//
// A Cache has two states: fresh (a value exists and is younger than the TTL)
// and stale (no value, or too old). Fresh values are served as-is; a stale
// read tells the caller to rebuild and Store. There is no background refresh.
package cache

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// Clock returns the current time. Injected so TTL boundaries can be tested.
type Clock func() time.Time

type entry[T any] struct {
	value   T
	builtAt time.Time
}

// Cache is a single-entry, time-boxed cache safe for concurrent use. Each
// Store swaps the whole entry, so readers see either the old or the new
// value and never a mix.
type Cache[T any] struct {
	ttl      time.Duration
	clock    Clock
	isEmpty  func(T) bool
	coalesce bool

	current atomic.Pointer[entry[T]]
	group   singleflight.Group
}

// Option configures a Cache.
type Option[T any] func(*Cache[T])

// WithClock sets the clock used by GetOrBuild. Defaults to time.Now.
func WithClock[T any](clock Clock) Option[T] {
	return func(c *Cache[T]) { c.clock = clock }
}

// WithEmptyFunc tells the cache how to recognise an empty value. An empty
// value never replaces a non-empty one.
func WithEmptyFunc[T any](isEmpty func(T) bool) Option[T] {
	return func(c *Cache[T]) { c.isEmpty = isEmpty }
}

// WithCoalescing makes concurrent GetOrBuild misses share a single build.
func WithCoalescing[T any](enabled bool) Option[T] {
	return func(c *Cache[T]) { c.coalesce = enabled }
}

// New creates a Cache with the given TTL.
func New[T any](ttl time.Duration, opts ...Option[T]) *Cache[T] {
	c := &Cache[T]{
		ttl:   ttl,
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL returns the freshness window.
func (c *Cache[T]) TTL() time.Duration {
	return c.ttl
}

// Get returns the stored value if it is fresh at now. The second result is
// false on a miss, in which case the caller should rebuild and Store.
func (c *Cache[T]) Get(now time.Time) (T, bool) {
	e := c.current.Load()
	if e == nil || now.Sub(e.builtAt) >= c.ttl {
		var zero T
		return zero, false
	}
	return e.value, true
}

// Peek returns the stored value and its build time regardless of age.
func (c *Cache[T]) Peek() (T, time.Time, bool) {
	e := c.current.Load()
	if e == nil {
		var zero T
		return zero, time.Time{}, false
	}
	return e.value, e.builtAt, true
}

// Store replaces the cached value, unless value is empty and the cache
// currently holds a non-empty one. Returns whether the value was stored.
//
// Keeping the old value also keeps its old build time, so it goes stale on
// schedule and the next request retries the rebuild.
func (c *Cache[T]) Store(value T, now time.Time) bool {
	next := &entry[T]{value: value, builtAt: now}
	for {
		prev := c.current.Load()
		if prev != nil && c.empty(value) && !c.empty(prev.value) {
			return false
		}
		if c.current.CompareAndSwap(prev, next) {
			return true
		}
	}
}

func (c *Cache[T]) empty(v T) bool {
	return c.isEmpty != nil && c.isEmpty(v)
}

// GetOrBuild returns the cached value when fresh. On a miss it calls build,
// stores the result, and returns whatever the cache then holds, which is
// the previous value when build produced an empty one. hit reports whether
// the value came from the cache without building.
//
// With coalescing enabled, concurrent misses wait on one build. Without
// it, each miss builds independently and the last Store wins.
func (c *Cache[T]) GetOrBuild(ctx context.Context, build func(context.Context) (T, error)) (value T, hit bool, err error) {
	if v, ok := c.Get(c.clock()); ok {
		return v, true, nil
	}

	if !c.coalesce {
		v, err := c.rebuild(ctx, build)
		return v, false, err
	}

	// The shared build outlives any single caller; per-fetch timeouts bound it.
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan("rebuild", func() (any, error) {
		return c.rebuild(shared, build)
	})
	select {
	case <-ctx.Done():
		var zero T
		return zero, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			var zero T
			return zero, false, res.Err
		}
		return res.Val.(T), false, nil
	}
}

func (c *Cache[T]) rebuild(ctx context.Context, build func(context.Context) (T, error)) (T, error) {
	v, err := build(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	c.Store(v, c.clock())

	current, _, _ := c.Peek()
	return current, nil
}
