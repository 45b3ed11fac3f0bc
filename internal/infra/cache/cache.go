// Package cache provides a simple in-memory TTL cache. It backs the
// contract read cache and the live chat conversation store.
package cache

import (
	"sync"
	"time"
)

type entry[T any] struct {
	value     T
	expiresAt time.Time
}

// InMemory is a thread-safe in-memory cache with TTL. An optional eviction
// hook runs when the sweeper drops an expired entry, so owners of stateful
// values (live conversations) can release them.
type InMemory[T any] struct {
	mu      sync.RWMutex
	items   map[string]entry[T]
	ttl     time.Duration
	onEvict func(key string, value T)
}

// New creates an in-memory cache with the given TTL.
func New[T any](ttl time.Duration) *InMemory[T] {
	return NewWithEvict[T](ttl, nil)
}

// NewWithEvict creates an in-memory cache whose expired entries are passed
// to onEvict after removal. Explicit Delete does not trigger the hook.
func NewWithEvict[T any](ttl time.Duration, onEvict func(key string, value T)) *InMemory[T] {
	c := &InMemory[T]{
		items:   make(map[string]entry[T]),
		ttl:     ttl,
		onEvict: onEvict,
	}
	go c.sweep()
	return c
}

// Get retrieves a value. Returns false if not found or expired.
func (c *InMemory[T]) Get(key string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.items[key]
	if !ok || time.Now().After(e.expiresAt) {
		var zero T
		return zero, false
	}
	return e.value, true
}

// Set stores a value with the configured TTL. Setting an existing key
// resets its expiry.
func (c *InMemory[T]) Set(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = entry[T]{
		value:     value,
		expiresAt: time.Now().Add(c.ttl),
	}
}

// Delete removes a value without invoking the eviction hook.
func (c *InMemory[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.items, key)
}

// Len reports the number of live (unexpired) entries.
func (c *InMemory[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := 0
	now := time.Now()
	for _, e := range c.items {
		if !now.After(e.expiresAt) {
			n++
		}
	}
	return n
}

// sweep periodically drops expired entries. The hook runs outside the lock.
func (c *InMemory[T]) sweep() {
	ticker := time.NewTicker(c.ttl)
	defer ticker.Stop()

	for range ticker.C {
		var evicted []struct {
			key   string
			value T
		}

		c.mu.Lock()
		now := time.Now()
		for k, e := range c.items {
			if now.After(e.expiresAt) {
				if c.onEvict != nil {
					evicted = append(evicted, struct {
						key   string
						value T
					}{k, e.value})
				}
				delete(c.items, k)
			}
		}
		c.mu.Unlock()

		for _, e := range evicted {
			c.onEvict(e.key, e.value)
		}
	}
}
