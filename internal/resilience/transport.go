package resilience

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Transport guards an upstream with a circuit breaker and bounded retries.
// Responses with 5xx status count as failures; the last response is returned
// untouched once attempts are exhausted so callers can inspect the status.
type Transport struct {
	Base        http.RoundTripper
	Breaker     *Breaker
	MaxAttempts int
	BaseBackoff time.Duration
	Jitter      float64
}

// RoundTrip implements http.RoundTripper.
func (t Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	maxAttempts := t.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	backoff := t.BaseBackoff
	if backoff <= 0 {
		backoff = 100 * time.Millisecond
	}

	body, err := bufferBody(req)
	if err != nil {
		return nil, err
	}

	ctx := req.Context()
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if t.Breaker != nil && !t.Breaker.Allow(ctx) {
			return nil, ErrOpenCircuit
		}
		attemptReq := req.Clone(ctx)
		if body != nil {
			attemptReq.Body = io.NopCloser(bytes.NewReader(body))
		}
		resp, err := base.RoundTrip(attemptReq)
		ok := err == nil && resp.StatusCode < http.StatusInternalServerError
		if t.Breaker != nil {
			t.Breaker.Report(ctx, ok)
		}
		if ok || (err == nil && attempt == maxAttempts) {
			return resp, nil
		}
		if err != nil {
			lastErr = err
		} else {
			lastErr = errors.New(resp.Status)
			// Release the connection before retrying.
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
			_ = resp.Body.Close()
		}
		if attempt == maxAttempts {
			break
		}
		timer := time.NewTimer(Backoff(backoff, attempt, t.Jitter))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return nil, lastErr
}

func bufferBody(req *http.Request) ([]byte, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	data, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, err
	}
	_ = req.Body.Close()
	req.Body = io.NopCloser(bytes.NewReader(data))
	return data, nil
}

// NewClient builds an HTTP client for the named upstream with trace
// propagation, a per-target breaker and retry on transient failures.
func NewClient(target string, timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &http.Client{
		Timeout: timeout,
		Transport: otelhttp.NewTransport(Transport{
			Breaker:     NewBreaker(5, 0.5, 30*time.Second).WithTarget(target),
			MaxAttempts: 3,
			BaseBackoff: 100 * time.Millisecond,
			Jitter:      0.2,
		}),
	}
}
