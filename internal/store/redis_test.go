package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	s := NewRedis(rdb, "pos")
	ctx := context.Background()

	_, err := s.Get(ctx, KeyTableStatus)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, SetJSON(ctx, s, KeyTableStatus, map[string]string{"T1": "occupied"}))
	assert.True(t, mr.Exists("pos:table_status"))

	var got map[string]string
	require.NoError(t, GetJSON(ctx, s, KeyTableStatus, &got))
	assert.Equal(t, "occupied", got["T1"])

	require.NoError(t, s.Del(ctx, KeyTableStatus))
	_, err = s.Get(ctx, KeyTableStatus)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisIncrSetsExpiryOnce(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	s := NewRedis(rdb, "")
	ctx := context.Background()

	n, err := s.Incr(ctx, "order_seq:20260301", 48*time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.Equal(t, 48*time.Hour, mr.TTL("order_seq:20260301"))

	mr.FastForward(time.Hour)
	n, err = s.Incr(ctx, "order_seq:20260301", 48*time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assert.Equal(t, 47*time.Hour, mr.TTL("order_seq:20260301"))
}
