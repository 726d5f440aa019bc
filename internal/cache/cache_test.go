package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_SetGetInvalidate(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(time.Minute)

	_, gen, ok, err := c.Get(ctx, "c1", "p1", "2025-W10")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "c1", "p1", "2025-W10", gen, []byte("a")))
	require.NoError(t, c.Set(ctx, "c1", "p1", "2025-W11", gen, []byte("b")))

	v, _, ok, err := c.Get(ctx, "c1", "p1", "2025-W10")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("a"), v)

	require.NoError(t, c.Invalidate(ctx, "c1", "p1", "2025-W10"))
	_, _, ok, _ = c.Get(ctx, "c1", "p1", "2025-W10")
	assert.False(t, ok)
	_, _, ok, _ = c.Get(ctx, "c1", "p1", "2025-W11")
	assert.True(t, ok, "other weeks stay cached")
}

func TestMemory_SetAfterInvalidateIsDropped(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(time.Minute)

	_, before, _, err := c.Get(ctx, "c1", "p1", "2025-W10")
	require.NoError(t, err)
	require.NoError(t, c.Invalidate(ctx, "c1", "p1", "2025-W10"))

	require.NoError(t, c.Set(ctx, "c1", "p1", "2025-W10", before, []byte("stale")))
	_, after, ok, err := c.Get(ctx, "c1", "p1", "2025-W10")
	require.NoError(t, err)
	assert.False(t, ok, "a value read before the invalidation is not stored")
	assert.Equal(t, before+1, after)

	require.NoError(t, c.Set(ctx, "c1", "p1", "2025-W10", after, []byte("fresh")))
	v, _, ok, _ := c.Get(ctx, "c1", "p1", "2025-W10")
	assert.True(t, ok)
	assert.Equal(t, "fresh", string(v))
}

func TestMemory_Expires(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(time.Minute)
	clock := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return clock }

	require.NoError(t, c.Set(ctx, "c1", "p1", "2025-W10", 0, []byte("a")))
	clock = clock.Add(2 * time.Minute)
	_, _, ok, err := c.Get(ctx, "c1", "p1", "2025-W10")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemory_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(time.Minute)
	in := []byte("abc")
	require.NoError(t, c.Set(ctx, "c1", "p1", "2025-W10", 0, in))
	in[0] = 'z'
	v, _, _, _ := c.Get(ctx, "c1", "p1", "2025-W10")
	assert.Equal(t, "abc", string(v))
}

func TestParseGen(t *testing.T) {
	gen, err := parseGen(nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), gen)

	gen, err = parseGen("7")
	require.NoError(t, err)
	assert.Equal(t, int64(7), gen)

	_, err = parseGen("x")
	assert.Error(t, err)
}
