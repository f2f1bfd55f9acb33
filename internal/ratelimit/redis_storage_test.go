package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) (*RedisStorage, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	storage, err := NewRedisStorage("redis://" + mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = storage.Close() })
	return storage, mr
}

func TestRedisStorageRoundTrip(t *testing.T) {
	storage, mr := newTestStorage(t)

	val, err := storage.Get("post-banshare:900000000000000004")
	require.NoError(t, err)
	assert.Nil(t, val, "missing keys are nil without error")

	require.NoError(t, storage.Set("post-banshare:900000000000000004", []byte("1"), time.Minute))
	assert.True(t, mr.Exists("ratelimit:post-banshare:900000000000000004"))

	val, err = storage.Get("post-banshare:900000000000000004")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), val)

	mr.FastForward(2 * time.Minute)
	val, err = storage.Get("post-banshare:900000000000000004")
	require.NoError(t, err)
	assert.Nil(t, val, "expired")

	require.NoError(t, storage.Set("edit-banshare:1", []byte("2"), 0))
	require.NoError(t, storage.Delete("edit-banshare:1"))
	assert.False(t, mr.Exists("ratelimit:edit-banshare:1"))

	require.NoError(t, storage.Set("", []byte("x"), 0))
	require.NoError(t, storage.Set("empty", nil, 0))
	assert.False(t, mr.Exists("ratelimit:empty"))
}

func TestRedisStorageResetKeepsForeignKeys(t *testing.T) {
	storage, mr := newTestStorage(t)

	require.NoError(t, mr.Set("session:abc", "keep"))
	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, storage.Set(k, []byte("1"), time.Minute))
	}

	require.NoError(t, storage.Reset())
	assert.False(t, mr.Exists("ratelimit:a"))
	assert.True(t, mr.Exists("session:abc"))
}

func TestNewRedisStorageFailsFast(t *testing.T) {
	_, err := NewRedisStorage("not a url")
	require.Error(t, err)

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	_, err = NewRedisStorage("redis://" + addr)
	require.Error(t, err)
}

func TestRedisStoragePing(t *testing.T) {
	mr := miniredis.RunT(t)
	storage := NewRedisStorageWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	defer storage.Close()

	assert.NoError(t, storage.Ping(context.Background()))
}
