package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCountCache_BasicGetPut(t *testing.T) {
	c := newCountCache(3)

	c.put("a", 4)
	c.put("b", 0)

	count, ok := c.get("a")
	assert.True(t, ok)
	assert.Equal(t, 4, count)

	count, ok = c.get("b")
	assert.True(t, ok)
	assert.Zero(t, count)

	_, ok = c.get("missing")
	assert.False(t, ok)
}

func TestCountCache_Eviction(t *testing.T) {
	c := newCountCache(2)

	c.put("a", 1)
	c.put("b", 2)
	c.put("c", 3) // evicts "a"

	_, ok := c.get("a")
	assert.False(t, ok, "a should have been evicted")

	count, ok := c.get("b")
	assert.True(t, ok)
	assert.Equal(t, 2, count)

	count, ok = c.get("c")
	assert.True(t, ok)
	assert.Equal(t, 3, count)
}

func TestCountCache_AccessPromotesEntry(t *testing.T) {
	c := newCountCache(2)

	c.put("a", 1)
	c.put("b", 2)

	// Access "a" to promote it
	c.get("a")

	// Insert "c" — should evict "b" (LRU), not "a"
	c.put("c", 3)

	_, ok := c.get("a")
	assert.True(t, ok, "a was accessed recently, should not be evicted")

	_, ok = c.get("b")
	assert.False(t, ok, "b should have been evicted")
}

func TestCountCache_UpdateExisting(t *testing.T) {
	c := newCountCache(2)

	c.put("a", 1)
	c.put("a", 5)

	count, ok := c.get("a")
	assert.True(t, ok)
	assert.Equal(t, 5, count)
}
