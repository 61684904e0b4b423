package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func newTestCache(t *testing.T) *JSONCache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewJSONCache(client, time.Minute)
}

func TestJSONCacheRoundTrip(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	var missing payload
	ok, err := c.GetJSON(ctx, "k", &missing)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, c.SetJSON(ctx, "k", payload{Name: "books", Count: 3}))

	var got payload
	ok, err = c.GetJSON(ctx, "k", &got)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, payload{Name: "books", Count: 3}, got)

	require.NoError(t, c.Delete(ctx, "k"))
	ok, err = c.GetJSON(ctx, "k", &got)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestJSONCacheNilClientIsNoop(t *testing.T) {
	c := NewJSONCache(nil, time.Minute)
	ctx := context.Background()

	require.NoError(t, c.SetJSON(ctx, "k", payload{Name: "x"}))
	var got payload
	ok, err := c.GetJSON(ctx, "k", &got)
	require.NoError(t, err)
	require.False(t, ok)
}
