// Package querycache keeps derived read views consistent with the writes that change them.
//
// Views are cached under typed keys. A mutation runs through Cache.Mutate, which invalidates the
// keys of Invalidations(mutation) once the write succeeded. Reads de-duplicate concurrent fetches of a
// key; Get serves the previous value of an invalidated key while one background fetch refreshes it.
package querycache

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"

	"github.com/RouahImad/Project-epg-sub000/core"
)

// ErrStaleCache signals that a key was invalidated while it was being fetched. The fetch is retried
// once; it never reaches Get's callers.
var ErrStaleCache = errors.New("cache key invalidated during fetch")

type FetchFunc func(ctx context.Context) (interface{}, error)

type entry struct {
	value     interface{}
	fetchedAt time.Time
	valid     bool
}

// Cache is safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	entries map[Key]*entry
	// gens counts the invalidations of every key ever fetched.
	gens   map[Key]uint64
	group  singleflight.Group
	maxAge time.Duration
	logger core.Logger

	nowFunc func() time.Time // mockable
}

// NewCache returns an empty cache. With a positive maxAge, values older than it are served as if
// they had been invalidated.
func NewCache(maxAge time.Duration, logger core.Logger) *Cache {
	return &Cache{
		entries: make(map[Key]*entry),
		gens:    make(map[Key]uint64),
		maxAge:  maxAge,
		logger:  logger,
		nowFunc: time.Now,
	}
}

func (c *Cache) stale(e *entry) bool {
	return !e.valid || (c.maxAge > 0 && c.nowFunc().Sub(e.fetchedAt) > c.maxAge)
}

// Get returns the cached value of key. An absent key blocks on its first fetch; an invalidated key
// returns its previous value and is refreshed by a single background fetch, which outlives ctx.
func (c *Cache) Get(ctx context.Context, key Key, fetch FetchFunc) (interface{}, error) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		c.mu.Unlock()
		return c.load(ctx, key, fetch)
	}
	value, stale := e.value, c.stale(e)
	c.mu.Unlock()

	if stale {
		c.revalidate(key, fetch)
	}
	return value, nil
}

// GetFresh is Get, except that an invalidated key blocks on its refetch.
func (c *Cache) GetFresh(ctx context.Context, key Key, fetch FetchFunc) (interface{}, error) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok && !c.stale(e) {
		value := e.value
		c.mu.Unlock()
		return value, nil
	}
	c.mu.Unlock()
	return c.load(ctx, key, fetch)
}

// Mutate runs the write fn. Once it succeeded, the keys it changed are invalidated before Mutate
// returns; when it fails, the cache is left untouched.
func (c *Cache) Mutate(ctx context.Context, m Mutation, fn func(ctx context.Context) error) error {
	if err := fn(ctx); err != nil {
		return err
	}
	c.Invalidate(Invalidations(m)...)
	return nil
}

// Invalidate marks every cached key matched by keys (keys or patterns) as invalid. Fetches of those
// keys already in flight will not be stored.
func (c *Cache) Invalidate(keys ...Key) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for known := range c.gens {
		for _, k := range keys {
			if k.Matches(known) {
				c.gens[known]++
				if e, ok := c.entries[known]; ok {
					e.valid = false
				}
				break
			}
		}
	}
}

// load fetches key, sharing the fetch with concurrent callers. The fetch is not cancelled with ctx:
// it completes and fills the cache for the other readers.
func (c *Cache) load(ctx context.Context, key Key, fetch FetchFunc) (interface{}, error) {
	ch := c.group.DoChan(key.String(), func() (interface{}, error) {
		return c.fetch(context.WithoutCancel(ctx), key, fetch)
	})
	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Cache) revalidate(key Key, fetch FetchFunc) {
	ch := c.group.DoChan(key.String(), func() (interface{}, error) {
		return c.fetch(context.Background(), key, fetch)
	})
	go func() {
		if res := <-ch; res.Err != nil && c.logger != nil {
			c.logger.Warn("refreshing "+key.String(), res.Err)
		}
	}()
}

// fetch runs fetch, retrying once when key was invalidated meanwhile. A value that raced two
// invalidations is returned but not stored.
func (c *Cache) fetch(ctx context.Context, key Key, fetch FetchFunc) (interface{}, error) {
	value, err := c.fetchOnce(ctx, key, fetch)
	if errors.Is(err, ErrStaleCache) {
		value, err = c.fetchOnce(ctx, key, fetch)
		if errors.Is(err, ErrStaleCache) {
			return value, nil
		}
	}
	return value, err
}

func (c *Cache) fetchOnce(ctx context.Context, key Key, fetch FetchFunc) (interface{}, error) {
	c.mu.Lock()
	gen := c.gens[key]
	c.gens[key] = gen
	c.mu.Unlock()

	value, err := fetch(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[key] != gen {
		return value, ErrStaleCache
	}
	c.entries[key] = &entry{value: value, fetchedAt: c.nowFunc(), valid: true}
	return value, nil
}

// Read is Cache.Get for a typed fetch.
func Read[T any](ctx context.Context, c *Cache, key Key, fetch func(ctx context.Context) (T, error)) (T, error) {
	return typed[T](c.Get(ctx, key, untyped(fetch)))
}

// ReadFresh is Cache.GetFresh for a typed fetch.
func ReadFresh[T any](ctx context.Context, c *Cache, key Key, fetch func(ctx context.Context) (T, error)) (T, error) {
	return typed[T](c.GetFresh(ctx, key, untyped(fetch)))
}

func untyped[T any](fetch func(ctx context.Context) (T, error)) FetchFunc {
	return func(ctx context.Context) (interface{}, error) {
		return fetch(ctx)
	}
}

func typed[T any](value interface{}, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	v, ok := value.(T)
	if !ok && value != nil {
		return zero, errors.Errorf("cached value is a %T", value)
	}
	return v, nil
}
