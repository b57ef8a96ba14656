package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hivechat/realtime/core/cache"
)

func TestMemoryStore_SetGet(t *testing.T) {
	ctx := context.Background()
	ms := cache.NewMemoryStore()

	require.NoError(t, ms.Set(ctx, "user:1", []byte("alice"), time.Minute))

	val, err := ms.Get(ctx, "user:1")
	require.NoError(t, err)
	assert.Equal(t, []byte("alice"), val)
}

func TestMemoryStore_GetMissing(t *testing.T) {
	ms := cache.NewMemoryStore()

	_, err := ms.Get(context.Background(), "user:unknown")
	assert.ErrorIs(t, err, cache.ErrCacheMiss)
}

func TestMemoryStore_RejectsNonPositiveTTL(t *testing.T) {
	ms := cache.NewMemoryStore()

	err := ms.Set(context.Background(), "user:1", []byte("alice"), 0)
	assert.ErrorIs(t, err, cache.ErrInvalidTTL)
}

func TestMemoryStore_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	ms := cache.NewMemoryStore()

	require.NoError(t, ms.Set(ctx, "user:1", []byte("alice"), 10*time.Millisecond))

	time.Sleep(20 * time.Millisecond)

	_, err := ms.Get(ctx, "user:1")
	assert.ErrorIs(t, err, cache.ErrCacheMiss)
}

func TestMemoryStore_ValueIsCopied(t *testing.T) {
	ctx := context.Background()
	ms := cache.NewMemoryStore()

	src := []byte("original")
	require.NoError(t, ms.Set(ctx, "k", src, time.Minute))
	src[0] = 'X'

	val, err := ms.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), val)
}

func TestMemoryStore_Delete(t *testing.T) {
	ctx := context.Background()
	ms := cache.NewMemoryStore()

	require.NoError(t, ms.Set(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, ms.Set(ctx, "b", []byte("2"), time.Minute))

	require.NoError(t, ms.Delete(ctx, "a", "never-existed"))

	_, err := ms.Get(ctx, "a")
	assert.ErrorIs(t, err, cache.ErrCacheMiss)
	_, err = ms.Get(ctx, "b")
	require.NoError(t, err)
}

func TestMemoryStore_DeletePrefix(t *testing.T) {
	ctx := context.Background()
	ms := cache.NewMemoryStore()

	require.NoError(t, ms.Set(ctx, "channel:abc:messages:1:50", []byte("p1"), time.Minute))
	require.NoError(t, ms.Set(ctx, "channel:abc:messages:2:50", []byte("p2"), time.Minute))
	require.NoError(t, ms.Set(ctx, "channel:abc", []byte("entity"), time.Minute))

	removed, err := ms.DeletePrefix(ctx, "channel:abc:messages:")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	_, err = ms.Get(ctx, "channel:abc")
	require.NoError(t, err)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "user:42", cache.EntityKey("user", "42"))
	assert.Equal(t, "channel:abc:members", cache.SubresourceKey("channel", "abc", "members"))
	assert.Equal(t, "channel:abc:messages:2:50", cache.PageKey("channel", "abc", "messages", 2, 50))
	assert.Equal(t, "channel:abc:messages:", cache.PagePrefix("channel", "abc", "messages"))
}
