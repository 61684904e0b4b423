package resilience_test

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/pricing-api/internal/resilience"
)

func TestTransportRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	client := &http.Client{Transport: resilience.Transport{
		MaxAttempts: 3,
		BaseBackoff: time.Millisecond,
	}}

	resp, err := client.Get(upstream.URL)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, int32(3), calls.Load())
}

func TestTransportReturnsLastResponse(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer upstream.Close()

	client := &http.Client{Transport: resilience.Transport{
		MaxAttempts: 2,
		BaseBackoff: time.Millisecond,
	}}

	resp, err := client.Get(upstream.URL)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestTransportRefusesWhenBreakerOpen(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer upstream.Close()

	breaker := resilience.NewBreaker(1, 0.5, time.Minute).WithTarget("coupons")
	client := &http.Client{Transport: resilience.Transport{
		Breaker:     breaker,
		BaseBackoff: time.Millisecond,
	}}

	resp, err := client.Get(upstream.URL)
	require.NoError(t, err)
	_ = resp.Body.Close()

	_, err = client.Get(upstream.URL)
	require.ErrorIs(t, err, resilience.ErrOpenCircuit)
}
