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

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestJSONCacheFetchPopulatesOnce(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	c := NewJSONCache(client, "test:", time.Minute)

	loads := 0
	loader := func(context.Context) (any, error) {
		loads++
		return payload{Name: "orders", Count: 3}, nil
	}

	var first, second payload
	require.NoError(t, c.Fetch(context.Background(), "k", &first, loader))
	require.NoError(t, c.Fetch(context.Background(), "k", &second, loader))
	assert.Equal(t, 1, loads)
	assert.Equal(t, first, second)
	assert.Equal(t, time.Minute, mr.TTL("test:k"))

	require.NoError(t, c.Delete(context.Background(), "k"))
	assert.False(t, mr.Exists("test:k"))
}

func TestJSONCacheNilFallsBackToLoader(t *testing.T) {
	var c *JSONCache
	var out payload
	require.NoError(t, c.Fetch(context.Background(), "k", &out, func(context.Context) (any, error) {
		return payload{Name: "direct"}, nil
	}))
	assert.Equal(t, "direct", out.Name)
	assert.NoError(t, c.Delete(context.Background(), "k"))
}

func TestJSONCacheLoaderErrorNotStored(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	c := NewJSONCache(client, "test:", time.Minute)

	boom := errors.New("boom")
	var out payload
	err := c.Fetch(context.Background(), "k", &out, func(context.Context) (any, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("test:k"))
}

func TestNewPingsRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	client, err := New(context.Background(), Options{Addr: addr})
	require.NoError(t, err)
	_ = client.Close()

	mr.Close()
	_, err = New(context.Background(), Options{Addr: addr})
	assert.Error(t, err)
}
