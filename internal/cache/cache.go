// Package cache provides thread-safe generic caches for posts and preview URLs.
package cache

import (
	"sync"
	"time"
)

type Cache[K comparable, V any] struct {
	mu    sync.RWMutex
	items map[K]V
}

func NewCache[K comparable, V any]() *Cache[K, V] {
	return &Cache[K, V]{
		items: make(map[K]V),
	}
}

func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	val, ok := c.items[key]
	return val, ok
}

func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = value
}

func (c *Cache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[K]V)
}

func (c *Cache[K, V]) SetTo(items map[K]V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = items
}

func (c *Cache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Range calls fn for every entry until fn returns false. fn must not modify
// the cache.
func (c *Cache[K, V]) Range(fn func(K, V) bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for k, v := range c.items {
		if !fn(k, v) {
			return
		}
	}
}

type expiring[V any] struct {
	value     V
	expiresAt time.Time
}

// TTLCache drops entries once their time to live has passed.
type TTLCache[K comparable, V any] struct {
	items *Cache[K, expiring[V]]
	now   func() time.Time
}

func NewTTLCache[K comparable, V any]() *TTLCache[K, V] {
	return &TTLCache[K, V]{
		items: NewCache[K, expiring[V]](),
		now:   time.Now,
	}
}

func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	e, ok := c.items.Get(key)
	if !ok || !c.now().Before(e.expiresAt) {
		var zero V
		return zero, false
	}
	return e.value, true
}

func (c *TTLCache[K, V]) Set(key K, value V, ttl time.Duration) {
	c.items.Set(key, expiring[V]{value: value, expiresAt: c.now().Add(ttl)})
}

func (c *TTLCache[K, V]) Delete(key K) {
	c.items.Delete(key)
}

// Prune removes every expired entry and returns how many were removed.
func (c *TTLCache[K, V]) Prune() int {
	now := c.now()

	var expired []K
	c.items.Range(func(k K, e expiring[V]) bool {
		if !now.Before(e.expiresAt) {
			expired = append(expired, k)
		}
		return true
	})

	for _, k := range expired {
		c.items.Delete(k)
	}
	return len(expired)
}
