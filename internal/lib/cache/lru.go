package cache

import (
	"container/list"
	"sync"
)

// LRU is a fixed-capacity map with least-recently-used eviction.
//
// Any Get or Put moves the entry to the most-recently-used
// position. The structure itself is safe for concurrent use;
// values obtained from it are not protected.
type LRU[K comparable, V any] struct {
	capacity int

	mutex sync.Mutex
	ll    *list.List
	items map[K]*list.Element
}

type entry[K comparable, V any] struct {
	key K
	val V
}

// New returns an empty cache holding at most capacity entries.
//
// Panics if capacity is not positive.
func New[K comparable, V any](capacity int) *LRU[K, V] {
	if capacity <= 0 {
		panic("cache: capacity must be positive")
	}

	return &LRU[K, V]{
		capacity: capacity,
		ll:       list.New(),
		items:    make(map[K]*list.Element, capacity),
	}
}

// Get returns the value stored under key and
// marks it most recently used.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	el, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}

	c.ll.MoveToFront(el)

	return el.Value.(*entry[K, V]).val, true
}

// Put inserts or replaces the value stored under key.
//
// Replacing an existing key counts as a touch. Inserting
// a new key at capacity evicts the least-recently-used entry.
func (c *LRU[K, V]) Put(key K, val V) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if el, ok := c.items[key]; ok {
		el.Value.(*entry[K, V]).val = val
		c.ll.MoveToFront(el)
		return
	}

	if c.ll.Len() >= c.capacity {
		oldest := c.ll.Back()
		if oldest != nil {
			c.ll.Remove(oldest)
			delete(c.items, oldest.Value.(*entry[K, V]).key)
		}
	}

	c.items[key] = c.ll.PushFront(&entry[K, V]{key: key, val: val})
}

// Delete removes the entry stored under key, if any.
func (c *LRU[K, V]) Delete(key K) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if el, ok := c.items[key]; ok {
		c.ll.Remove(el)
		delete(c.items, key)
	}
}

// Len returns the number of stored entries.
func (c *LRU[K, V]) Len() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.ll.Len()
}
