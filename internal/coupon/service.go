// Package coupon resolves coupon codes to discount descriptors through a
// configured HTTP endpoint, with a Redis-backed cache in front.
package coupon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/pricing-api/internal/cache"
	"github.com/noah-isme/pricing-api/internal/obs"
	"github.com/noah-isme/pricing-api/internal/pricing"
)

// ErrNotFound signals an unknown coupon code.
var ErrNotFound = errors.New("coupon not found")

// ErrUnavailable signals that the coupon upstream could not be reached.
var ErrUnavailable = errors.New("coupon service unavailable")

// Coupon is the upstream coupon document: a discount plus its code.
type Coupon struct {
	Code string `json:"code"`
	pricing.Discount
}

// Service resolves coupon codes against `GET {BaseURL}/coupons/{code}`.
type Service struct {
	BaseURL string
	Client  *http.Client
	Cache   *cache.JSONCache
	Log     zerolog.Logger
}

// Lookup resolves a coupon code. Unknown codes return ErrNotFound; both
// positive and negative results are cached.
func (s *Service) Lookup(ctx context.Context, code string) (*pricing.Discount, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrNotFound
	}

	key := "coupon:" + code
	var cached cachedCoupon
	hit, err := s.Cache.GetJSON(ctx, key, &cached)
	if err != nil {
		s.Log.Warn().Err(err).Str("code", code).Msg("coupon cache read failed")
	}
	if hit {
		if cached.Missing {
			obs.CouponLookupTotal.WithLabelValues("not_found").Inc()
			return nil, ErrNotFound
		}
		obs.CouponLookupTotal.WithLabelValues("cache").Inc()
		return &cached.Coupon.Discount, nil
	}

	coupon, err := s.fetch(ctx, code)
	switch {
	case errors.Is(err, ErrNotFound):
		obs.CouponLookupTotal.WithLabelValues("not_found").Inc()
		s.cachePut(ctx, key, cachedCoupon{Missing: true})
		return nil, ErrNotFound
	case err != nil:
		obs.CouponLookupTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	obs.CouponLookupTotal.WithLabelValues("origin").Inc()
	s.cachePut(ctx, key, cachedCoupon{Coupon: *coupon})
	return &coupon.Discount, nil
}

type cachedCoupon struct {
	Coupon  Coupon `json:"coupon"`
	Missing bool   `json:"missing,omitempty"`
}

func (s *Service) cachePut(ctx context.Context, key string, value cachedCoupon) {
	if err := s.Cache.SetJSON(ctx, key, value); err != nil {
		s.Log.Warn().Err(err).Msg("coupon cache write failed")
	}
}

func (s *Service) fetch(ctx context.Context, code string) (*Coupon, error) {
	endpoint := strings.TrimSuffix(s.BaseURL, "/") + "/coupons/" + url.PathEscape(code)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: unexpected status %s", ErrUnavailable, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read coupon body: %w", err)
	}
	var coupon Coupon
	if err := json.Unmarshal(data, &coupon); err != nil {
		return nil, fmt.Errorf("decode coupon: %w", err)
	}
	return &coupon, nil
}
