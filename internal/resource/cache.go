package resource

import (
	"slices"
	"sync"
)

// Cache is the local mirror of one remote collection. Every write publishes
// a fresh slice, so a Snapshot may be read without holding any lock.
type Cache[T any] struct {
	mu      sync.RWMutex
	items   []T
	loading bool
	err     error

	less func(a, b T) bool
	id   func(T) string
}

func NewCache[T any](less func(a, b T) bool, id func(T) string) *Cache[T] {
	return &Cache[T]{loading: true, less: less, id: id}
}

// Reset replaces the whole collection, clearing loading and error state.
func (c *Cache[T]) Reset(items []T) {
	next := slices.Clone(items)
	slices.SortStableFunc(next, c.cmp)
	c.mu.Lock()
	c.items, c.loading, c.err = next, false, nil
	c.mu.Unlock()
}

// Fail records a refresh failure and keeps the previous items.
func (c *Cache[T]) Fail(err error) {
	c.mu.Lock()
	c.loading, c.err = false, err
	c.mu.Unlock()
}

// InsertSorted places item before the first element that does not sort
// ahead of it, so it lands in front of items with an equal key.
func (c *Cache[T]) InsertSorted(item T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := 0
	for i < len(c.items) && c.less(c.items[i], item) {
		i++
	}
	next := make([]T, 0, len(c.items)+1)
	next = append(next, c.items[:i]...)
	next = append(next, item)
	c.items = append(next, c.items[i:]...)
}

// ReplaceByID swaps in item for the element with the same id, appending it
// when absent, then re-sorts.
func (c *Cache[T]) ReplaceByID(item T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := slices.Clone(c.items)
	key := c.id(item)
	if i := slices.IndexFunc(next, func(v T) bool { return c.id(v) == key }); i >= 0 {
		next[i] = item
	} else {
		next = append(next, item)
	}
	slices.SortStableFunc(next, c.cmp)
	c.items = next
}

// Map rewrites every element with fn and keeps the order.
func (c *Cache[T]) Map(fn func(T) T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := make([]T, len(c.items))
	for i, v := range c.items {
		next[i] = fn(v)
	}
	c.items = next
}

func (c *Cache[T]) RemoveByID(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := slices.DeleteFunc(slices.Clone(c.items), func(v T) bool { return c.id(v) == id })
	removed := len(next) != len(c.items)
	c.items = next
	return removed
}

func (c *Cache[T]) Contains(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.ContainsFunc(c.items, func(v T) bool { return c.id(v) == id })
}

// Snapshot returns the current collection. Callers must not modify it.
func (c *Cache[T]) Snapshot() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.items
}

func (c *Cache[T]) Loading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loading
}

func (c *Cache[T]) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

func (c *Cache[T]) cmp(a, b T) int {
	switch {
	case c.less(a, b):
		return -1
	case c.less(b, a):
		return 1
	}
	return 0
}

// keyedMutex serializes work per record id. Entries are dropped once no
// goroutine holds or waits for them.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = map[string]*keyedEntry{}
	}
	e, ok := k.locks[key]
	if !ok {
		e = &keyedEntry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
