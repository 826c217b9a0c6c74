package cache

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertAndRetrieve(t *testing.T) {
	c := New[string, int](10)

	require.NoError(t, c.Insert("a", 1, 2))
	require.NoError(t, c.Insert("b", 2, 3))
	assert.Equal(t, 5, c.Weight())
	assert.Equal(t, 10, c.Budget())

	value, ok := c.Retrieve("a")
	require.True(t, ok)
	assert.Equal(t, 1, value)

	_, ok = c.Retrieve("missing")
	assert.False(t, ok)

	assert.ErrorIs(t, c.Insert("a", 3, 1), ErrKeyExists)
	value, _ = c.Retrieve("a")
	assert.Equal(t, 1, value)
}

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	c := New[string, string](3)

	require.NoError(t, c.Insert("a", "A", 1))
	require.NoError(t, c.Insert("b", "B", 1))
	require.NoError(t, c.Insert("c", "C", 1))

	// Touch a so b becomes the oldest entry
	_, ok := c.Retrieve("a")
	require.True(t, ok)

	require.NoError(t, c.Insert("d", "D", 1))
	assert.Equal(t, 3, c.Weight())

	_, ok = c.Retrieve("b")
	assert.False(t, ok)
	for _, key := range []string{"a", "c", "d"} {
		_, ok := c.Retrieve(key)
		assert.True(t, ok, key)
	}

	// A heavy entry can push out several others
	require.NoError(t, c.Insert("e", "E", 3))
	assert.Equal(t, 3, c.Weight())
	for _, key := range []string{"a", "c", "d"} {
		_, ok := c.Retrieve(key)
		assert.False(t, ok, key)
	}
}

func TestOverweightEntryIsNotRetained(t *testing.T) {
	c := New[string, string](2)

	require.NoError(t, c.Insert("a", "A", 1))
	require.NoError(t, c.Insert("huge", "H", 5))

	assert.Equal(t, 0, c.Weight())
	_, ok := c.Retrieve("huge")
	assert.False(t, ok)
}

func TestRemoveAndClear(t *testing.T) {
	c := New[int, string](10)

	require.NoError(t, c.Insert(1, "one", 4))
	require.NoError(t, c.Insert(2, "two", 4))

	assert.True(t, c.Remove(1))
	assert.False(t, c.Remove(1))
	assert.Equal(t, 4, c.Weight())

	c.Clear()
	assert.Equal(t, 0, c.Weight())
	_, ok := c.Retrieve(2)
	assert.False(t, ok)

	require.NoError(t, c.Insert(2, "two", 4))
}

func TestConcurrentAccess(t *testing.T) {
	c := New[string, int](50)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("%d-%d", worker, j)
				c.Insert(key, j, 1)
				c.Retrieve(key)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, c.Weight())
}
