package vfs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheRoundRobinEviction(t *testing.T) {
	var written []ClusterID
	c := NewCache(2, func(dc *dataCluster) error {
		written = append(written, dc.id)
		dc.dirty = false
		return nil
	})

	a := newDataCluster(1, 16)
	b := newDataCluster(2, 16)
	b.dirty = false
	require.NoError(t, c.Append(a))
	require.NoError(t, c.Append(b))
	assert.Equal(t, 2, c.Len())

	got, ok := c.Item(1)
	require.True(t, ok)
	assert.Same(t, a, got)

	// Evicts slot 0 (a, dirty) even though it was just read
	require.NoError(t, c.Append(newDataCluster(3, 16)))
	assert.Equal(t, []ClusterID{1}, written)
	_, ok = c.Item(1)
	assert.False(t, ok)

	// Evicts slot 1 (b, clean) without writing
	require.NoError(t, c.Append(newDataCluster(4, 16)))
	assert.Equal(t, []ClusterID{1}, written)

	require.NoError(t, c.Flush())
	assert.ElementsMatch(t, []ClusterID{1, 3, 4}, written)
	assert.False(t, c.Dirty())
}

func TestCacheRemoveDiscards(t *testing.T) {
	writes := 0
	c := NewCache(4, func(*dataCluster) error { writes++; return nil })

	require.NoError(t, c.Append(newDataCluster(7, 16)))
	c.Remove(7)
	_, ok := c.Item(7)
	assert.False(t, ok)
	require.NoError(t, c.Flush())
	assert.Zero(t, writes)
}

func TestCacheEvictionError(t *testing.T) {
	boom := errors.New("boom")
	c := NewCache(1, func(*dataCluster) error { return boom })

	require.NoError(t, c.Append(newDataCluster(1, 16)))
	assert.ErrorIs(t, c.Append(newDataCluster(2, 16)), boom)
	assert.Equal(t, 1, c.Capacity())
}
