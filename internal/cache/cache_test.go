package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tag struct {
	Name string `json:"name"`
}

func newMiniredisStore(t *testing.T) (*miniredis.Miniredis, Store) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, NewStore(rdb)
}

func TestNewStore_SelectsBackend(t *testing.T) {
	_, store := newMiniredisStore(t)
	assert.IsType(t, &RedisStore{}, store)
	assert.IsType(t, &LocalStore{}, NewStore(nil))
}

func TestAside(t *testing.T) {
	stores := map[string]func(t *testing.T) Store{
		"redis": func(t *testing.T) Store {
			_, s := newMiniredisStore(t)
			return s
		},
		"local": func(t *testing.T) Store { return NewLocalStore(10) },
	}

	for name, build := range stores {
		t.Run(name, func(t *testing.T) {
			store := build(t)
			ctx := context.Background()
			calls := 0
			fetch := func(dest *[]tag) func() error {
				return func() error {
					calls++
					*dest = []tag{{Name: "Django"}, {Name: "React"}}
					return nil
				}
			}

			var first []tag
			require.NoError(t, Aside(ctx, store, TagListKey, &first, time.Minute, fetch(&first)))
			var second []tag
			require.NoError(t, Aside(ctx, store, TagListKey, &second, time.Minute, fetch(&second)))

			assert.Equal(t, 1, calls)
			assert.Equal(t, first, second)

			Invalidate(ctx, store, TagListKey)
			var third []tag
			require.NoError(t, Aside(ctx, store, TagListKey, &third, time.Minute, fetch(&third)))
			assert.Equal(t, 2, calls)
		})
	}
}

func TestAside_FetchError(t *testing.T) {
	store := NewLocalStore(10)
	boom := errors.New("db down")

	var dest []tag
	err := Aside(context.Background(), store, TagListKey, &dest, time.Minute, func() error { return boom })
	assert.ErrorIs(t, err, boom)

	_, found, _ := store.Get(context.Background(), TagListKey)
	assert.False(t, found)
}

func TestAside_RedisDownStillFetches(t *testing.T) {
	mr, store := newMiniredisStore(t)
	mr.Close()

	var dest []tag
	err := Aside(context.Background(), store, TagListKey, &dest, time.Minute, func() error {
		dest = []tag{{Name: "UX"}}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []tag{{Name: "UX"}}, dest)
}

func TestLocalStore_Expiry(t *testing.T) {
	store := NewLocalStore(10)
	now := time.Now()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", []byte("v"), time.Minute))
	b, found, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("v"), b)

	now = now.Add(2 * time.Minute)
	_, found, err = store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisStore_TTL(t *testing.T) {
	mr, store := newMiniredisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "tags:all", []byte("[]"), time.Minute))
	assert.Equal(t, time.Minute, mr.TTL("tags:all"))

	mr.FastForward(2 * time.Minute)
	_, found, err := store.Get(ctx, "tags:all")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestNewClient(t *testing.T) {
	rdb, err := NewClient("redis://127.0.0.1:6379/1")
	require.NoError(t, err)
	assert.Equal(t, 1, rdb.Options().DB)
	_ = rdb.Close()

	rdb, err = NewClient("localhost:6379")
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", rdb.Options().Addr)
	_ = rdb.Close()

	_, err = NewClient("redis://%zz")
	assert.Error(t, err)
}

func TestInitRedis_Unreachable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	assert.Nil(t, InitRedis(addr))
}
