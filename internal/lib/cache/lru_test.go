package cache

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEviction(t *testing.T) {
	const capacity = 8

	c := New[string, int](capacity)

	for i := 0; i < capacity+1; i++ {
		c.Put("key"+strconv.Itoa(i), i)
	}

	require.Equal(t, capacity, c.Len())

	// Only the first inserted key was never
	// touched after insertion.
	_, ok := c.Get("key0")
	assert.False(t, ok)

	for i := 1; i < capacity+1; i++ {
		_, ok := c.Get("key" + strconv.Itoa(i))
		assert.True(t, ok, "key%d must survive", i)
	}
}

func TestGetProtectsFromEviction(t *testing.T) {
	const capacity = 4

	c := New[string, int](capacity)

	for i := 0; i < capacity; i++ {
		c.Put("key"+strconv.Itoa(i), i)
	}

	// Touch the oldest entry, making key1 the eviction candidate.
	_, ok := c.Get("key0")
	require.True(t, ok)

	c.Put("new", -1)

	_, ok = c.Get("key0")
	assert.True(t, ok)

	_, ok = c.Get("key1")
	assert.False(t, ok)
}

func TestPutReplaceCountsAsTouch(t *testing.T) {
	c := New[string, int](2)

	c.Put("a", 1)
	c.Put("b", 2)

	// Re-inserting an existing key must not evict anything.
	c.Put("a", 10)
	require.Equal(t, 2, c.Len())

	c.Put("c", 3)

	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 10, v)

	_, ok = c.Get("b")
	assert.False(t, ok)
}

func TestDelete(t *testing.T) {
	c := New[string, int](2)

	c.Put("a", 1)
	c.Delete("a")

	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())

	// Deleting a missing key is a no-op.
	c.Delete("missing")
}
