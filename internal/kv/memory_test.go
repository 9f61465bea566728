package kv

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryGetSet(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, err := m.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.Set(ctx, "k", []byte("v"), 0))
	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	require.NoError(t, m.Del(ctx, "k"))
	_, err = m.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryTTL(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	now := time.Now()
	m.now = func() time.Time { return now }

	require.NoError(t, m.Set(ctx, "k", []byte("v"), time.Minute))
	_, err := m.Get(ctx, "k")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = m.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemorySetNX(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	ok, err := m.SetNX(ctx, "lock", []byte("a"), 0)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.SetNX(ctx, "lock", []byte("b"), 0)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := m.Get(ctx, "lock")
	require.NoError(t, err)
	assert.Equal(t, []byte("a"), got)

	// An expired lock can be retaken.
	now := time.Now()
	m.now = func() time.Time { return now }
	require.NoError(t, m.Set(ctx, "lock2", []byte("x"), time.Second))
	now = now.Add(2 * time.Second)
	ok, err = m.SetNX(ctx, "lock2", []byte("y"), 0)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryKeys(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Set(ctx, "runtime:t1", []byte("a"), 0))
	require.NoError(t, m.Set(ctx, "runtime:t2", []byte("b"), 0))
	require.NoError(t, m.Set(ctx, "dealer:t1", []byte("c"), 0))

	keys, err := m.Keys(ctx, "runtime:*")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"runtime:t1", "runtime:t2"}, keys)
}

func TestMemoryList(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	for _, v := range []string{"one", "two", "three"} {
		require.NoError(t, m.ListPush(ctx, "l", []byte(v), 2, 0))
	}

	// Trimmed to the two newest, newest first.
	got, err := m.ListRange(ctx, "l", 0, -1)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []byte("three"), got[0])
	assert.Equal(t, []byte("two"), got[1])

	empty, err := m.ListRange(ctx, "missing", 0, -1)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
