package coupon

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/pricing-api/internal/cache"
	"github.com/noah-isme/pricing-api/internal/obs"
)

func TestMain(m *testing.M) {
	obs.MustRegisterDomainMetrics("test", prometheus.NewRegistry())
	os.Exit(m.Run())
}

func newTestCache(t *testing.T) *cache.JSONCache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return cache.NewJSONCache(client, time.Minute)
}

func TestLookup(t *testing.T) {
	hits := 0
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		switch r.URL.Path {
		case "/coupons/10off":
			_, _ = w.Write([]byte(`{"code":"10off","percentage":10,"product_types":["Book"]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer upstream.Close()

	svc := &Service{
		BaseURL: upstream.URL,
		Client:  upstream.Client(),
		Cache:   newTestCache(t),
		Log:     zerolog.Nop(),
	}
	ctx := context.Background()

	got, err := svc.Lookup(ctx, "10off")
	require.NoError(t, err)
	require.Equal(t, float64(10), got.Percentage)
	require.Equal(t, []string{"Book"}, got.ProductTypes)

	// Second lookup is a cache hit.
	_, err = svc.Lookup(ctx, "10off")
	require.NoError(t, err)
	require.Equal(t, 1, hits)
}

func TestLookupNotFoundIsCached(t *testing.T) {
	hits := 0
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		http.NotFound(w, r)
	}))
	defer upstream.Close()

	svc := &Service{
		BaseURL: upstream.URL,
		Client:  upstream.Client(),
		Cache:   newTestCache(t),
		Log:     zerolog.Nop(),
	}
	ctx := context.Background()

	_, err := svc.Lookup(ctx, "nope")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = svc.Lookup(ctx, "nope")
	require.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, 1, hits)
}

func TestLookupEmptyCode(t *testing.T) {
	svc := &Service{Cache: newTestCache(t), Log: zerolog.Nop()}
	_, err := svc.Lookup(context.Background(), "  ")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLookupUpstreamDown(t *testing.T) {
	svc := &Service{
		BaseURL: "http://127.0.0.1:1",
		Cache:   newTestCache(t),
		Log:     zerolog.Nop(),
	}
	_, err := svc.Lookup(context.Background(), "10off")
	require.ErrorIs(t, err, ErrUnavailable)
}
