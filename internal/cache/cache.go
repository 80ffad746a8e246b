// Package cache implements the write-through, dirty-aware LRU used in front
// of both the heap-page store and the node store. Eviction is dirty-aware:
// a clean entry is simply dropped, a dirty one is written back first. The
// first write of an id always goes straight through to disk and is cached
// clean; only a later in-place update (while still resident) defers its
// write-back to eviction or Flush.
package cache

import (
	"github.com/hashicorp/golang-lru/v2/simplelru"
)

type entry[V any] struct {
	value V
	dirty bool
}

// Loader reads the value for id from the backing store.
type Loader[V any] func(id int32) (V, error)

// Writer persists value for id to the backing store.
type Writer[V any] func(id int32, value V) error

// Hooks lets the owner wire the session counters to cache events without the
// cache knowing anything about counters itself.
type Hooks struct {
	OnCacheHit func()
	OnDiskLoad func()
	OnDiskSave func()
}

// Cache is a generic write-through LRU over values of type V, keyed by
// int32 id (heap page index or node id). Capacity <= 0 disables caching
// entirely: every Get and Put goes straight to disk.
type Cache[V any] struct {
	capacity int
	load     Loader[V]
	write    Writer[V]
	hooks    Hooks
	lru      *simplelru.LRU[int32, *entry[V]]
	evictErr error
}

// New builds a Cache with the given capacity (0 disables caching), backed by
// load/write for disk access.
func New[V any](capacity int, load Loader[V], write Writer[V], hooks Hooks) *Cache[V] {
	c := &Cache[V]{capacity: capacity, load: load, write: write, hooks: hooks}
	if capacity > 0 {
		l, err := simplelru.NewLRU[int32, *entry[V]](capacity, c.onEvict)
		if err != nil {
			// Only returned by simplelru for a non-positive size, already
			// excluded above.
			panic(err)
		}
		c.lru = l
	}
	return c
}

func (c *Cache[V]) onEvict(id int32, e *entry[V]) {
	if !e.dirty {
		return
	}
	if err := c.write(id, e.value); err != nil {
		c.evictErr = err
		return
	}
	if c.hooks.OnDiskSave != nil {
		c.hooks.OnDiskSave()
	}
}

// Get returns the value for id, reading through the cache.
func (c *Cache[V]) Get(id int32) (V, error) {
	if c.capacity <= 0 {
		v, err := c.load(id)
		if err != nil {
			var zero V
			return zero, err
		}
		if c.hooks.OnDiskLoad != nil {
			c.hooks.OnDiskLoad()
		}
		return v, nil
	}

	if e, ok := c.lru.Get(id); ok {
		if c.hooks.OnCacheHit != nil {
			c.hooks.OnCacheHit()
		}
		return e.value, nil
	}

	v, err := c.load(id)
	if err != nil {
		var zero V
		return zero, err
	}
	if c.hooks.OnDiskLoad != nil {
		c.hooks.OnDiskLoad()
	}

	c.evictErr = nil
	c.lru.Add(id, &entry[V]{value: v, dirty: false})
	if c.evictErr != nil {
		var zero V
		return zero, c.evictErr
	}
	return v, nil
}

// Put stores value for id: an in-place update of a resident entry is marked
// dirty and deferred; a brand-new id is written through immediately and
// cached clean.
func (c *Cache[V]) Put(id int32, value V) error {
	if c.capacity <= 0 {
		if err := c.write(id, value); err != nil {
			return err
		}
		if c.hooks.OnDiskSave != nil {
			c.hooks.OnDiskSave()
		}
		return nil
	}

	if e, ok := c.lru.Get(id); ok {
		e.value = value
		e.dirty = true
		return nil
	}

	if err := c.write(id, value); err != nil {
		return err
	}
	if c.hooks.OnDiskSave != nil {
		c.hooks.OnDiskSave()
	}

	c.evictErr = nil
	c.lru.Add(id, &entry[V]{value: value, dirty: false})
	return c.evictErr
}

// Flush writes back every dirty entry and marks it clean. A capacity-0
// cache has nothing pending (every Put already went straight through) so
// Flush is a no-op for it.
func (c *Cache[V]) Flush() error {
	if c.capacity <= 0 {
		return nil
	}
	var firstErr error
	for _, id := range c.lru.Keys() {
		e, ok := c.lru.Peek(id)
		if !ok || !e.dirty {
			continue
		}
		if err := c.write(id, e.value); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if c.hooks.OnDiskSave != nil {
			c.hooks.OnDiskSave()
		}
		e.dirty = false
	}
	return firstErr
}

// Invalidate drops id from the cache without writing it back. The B-tree
// calls it when it frees a node id; it is never exposed through the session
// façade.
func (c *Cache[V]) Invalidate(id int32) {
	if c.capacity <= 0 {
		return
	}
	c.lru.Remove(id)
}
