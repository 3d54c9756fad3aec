// ABOUTME: Tests for the bounded metadata cache
// ABOUTME: Covers hits, capacity enforcement, and LRU eviction order

package adapter

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataCacheGetPut(t *testing.T) {
	c := NewMetadataCache(4)

	_, ok := c.Get("accounts")
	assert.False(t, ok)

	c.Put("accounts", json.RawMessage(`{"fields":["name"]}`))

	blob, ok := c.Get("accounts")
	require.True(t, ok)
	assert.JSONEq(t, `{"fields":["name"]}`, string(blob))
}

func TestMetadataCacheUpdateExisting(t *testing.T) {
	c := NewMetadataCache(4)
	c.Put("accounts", json.RawMessage(`{"v":1}`))
	c.Put("accounts", json.RawMessage(`{"v":2}`))

	blob, ok := c.Get("accounts")
	require.True(t, ok)
	assert.JSONEq(t, `{"v":2}`, string(blob))
	assert.Equal(t, 1, c.Len())
}

func TestMetadataCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewMetadataCache(2)
	c.Put("a", json.RawMessage(`1`))
	c.Put("b", json.RawMessage(`2`))

	// Touch "a" so "b" becomes the eviction candidate
	_, ok := c.Get("a")
	require.True(t, ok)

	c.Put("c", json.RawMessage(`3`))

	_, ok = c.Get("b")
	assert.False(t, ok, "least-recently-used entry should be evicted")
	_, ok = c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
	assert.Equal(t, 2, c.Len())
}

func TestMetadataCacheNeverExceedsCapacity(t *testing.T) {
	c := NewMetadataCache(8)
	for i := 0; i < 100; i++ {
		c.Put(fmt.Sprintf("type-%d", i), json.RawMessage(`{}`))
	}
	assert.Equal(t, 8, c.Len())
}

func TestMetadataCacheDefaultCapacity(t *testing.T) {
	c := NewMetadataCache(0)
	for i := 0; i < DefaultCacheCapacity+10; i++ {
		c.Put(fmt.Sprintf("type-%d", i), json.RawMessage(`{}`))
	}
	assert.Equal(t, DefaultCacheCapacity, c.Len())
}
