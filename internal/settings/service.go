// Package settings resolves the site pricing configuration (tax rules,
// member discounts, tax-inclusive flag) from an upstream URL or a local file,
// with a Redis-backed cache in front.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/pricing-api/internal/cache"
	"github.com/noah-isme/pricing-api/internal/lock"
	"github.com/noah-isme/pricing-api/internal/obs"
	"github.com/noah-isme/pricing-api/internal/pricing"
	"github.com/noah-isme/pricing-api/internal/resilience"
)

// ErrUnavailable signals that no configuration could be produced: the
// upstream failed and the cache held nothing.
var ErrUnavailable = errors.New("settings unavailable")

const cacheKey = "settings:pricing"

// Service fetches and caches pricing settings. Exactly one of URL and File
// should be set; File wins when both are. When Lock is set, origin fetches
// are single-flighted across instances.
type Service struct {
	URL    string
	File   string
	Client *http.Client
	Cache  *cache.JSONCache
	Lock   *lock.Locker
	Log    zerolog.Logger
}

// HTTPClient returns an HTTP client configured for settings fetches.
func HTTPClient(timeout time.Duration) *http.Client {
	return resilience.NewClient("settings", timeout)
}

// Get returns the current pricing settings. Cached values are served until
// their TTL lapses.
func (s *Service) Get(ctx context.Context) (*pricing.Settings, error) {
	if out, hit := s.cached(ctx); hit {
		obs.SettingsFetchTotal.WithLabelValues("cache").Inc()
		return out, nil
	}

	var fetched *pricing.Settings
	refresh := func(ctx context.Context) error {
		// Another instance may have refreshed while we waited for the lock.
		if out, hit := s.cached(ctx); hit {
			fetched = out
			return nil
		}
		out, err := s.fetch(ctx)
		if err != nil {
			return err
		}
		if err := s.Cache.SetJSON(ctx, cacheKey, out); err != nil {
			s.Log.Warn().Err(err).Msg("settings cache write failed")
		}
		fetched = out
		return nil
	}

	var err error
	if s.Lock != nil {
		err = s.Lock.WithLock(ctx, "lock:settings:refresh", 10*time.Second, refresh)
	} else {
		err = refresh(ctx)
	}
	if err != nil {
		obs.SettingsFetchTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, err)
	}
	obs.SettingsFetchTotal.WithLabelValues("origin").Inc()
	return fetched, nil
}

func (s *Service) cached(ctx context.Context) (*pricing.Settings, bool) {
	var cached pricing.Settings
	hit, err := s.Cache.GetJSON(ctx, cacheKey, &cached)
	if err != nil {
		s.Log.Warn().Err(err).Msg("settings cache read failed")
		return nil, false
	}
	if !hit {
		return nil, false
	}
	return &cached, true
}

func (s *Service) fetch(ctx context.Context) (*pricing.Settings, error) {
	if s.File != "" {
		return s.fetchFile()
	}
	if s.URL != "" {
		return s.fetchURL(ctx)
	}
	// No source configured: tax-free pricing with no member discounts.
	return &pricing.Settings{}, nil
}

func (s *Service) fetchFile() (*pricing.Settings, error) {
	data, err := os.ReadFile(s.File)
	if err != nil {
		return nil, fmt.Errorf("read settings file: %w", err)
	}
	return decode(data)
}

func (s *Service) fetchURL(ctx context.Context) (*pricing.Settings, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, err
	}
	client := s.Client
	if client == nil {
		client = HTTPClient(0)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch settings: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch settings: unexpected status %s", resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read settings body: %w", err)
	}
	return decode(data)
}

func decode(data []byte) (*pricing.Settings, error) {
	var out pricing.Settings
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	return &out, nil
}

// Invalidate drops the cached settings so the next Get refetches.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.Cache.Delete(ctx, cacheKey)
}

// Ping verifies the configured source is reachable, for readiness probes.
func (s *Service) Ping(ctx context.Context) error {
	if s.File != "" {
		_, err := os.Stat(s.File)
		return err
	}
	if strings.TrimSpace(s.URL) == "" {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, s.URL, nil)
	if err != nil {
		return err
	}
	client := s.Client
	if client == nil {
		client = HTTPClient(0)
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("settings upstream status %s", resp.Status)
	}
	return nil
}
