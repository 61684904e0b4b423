// Package quote exposes the pricing HTTP API. It orchestrates the settings
// and coupon sources around the pricing engine.
package quote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/pricing-api/internal/common"
	"github.com/noah-isme/pricing-api/internal/coupon"
	"github.com/noah-isme/pricing-api/internal/obs"
	"github.com/noah-isme/pricing-api/internal/pricing"
	"github.com/noah-isme/pricing-api/internal/settings"
)

// SettingsSource yields the current pricing configuration.
type SettingsSource interface {
	Get(ctx context.Context) (*pricing.Settings, error)
}

// CouponSource resolves coupon codes to discounts.
type CouponSource interface {
	Lookup(ctx context.Context, code string) (*pricing.Discount, error)
}

// Handler serves the pricing endpoints.
type Handler struct {
	Settings SettingsSource
	Coupons  CouponSource
	Validate *validator.Validate
	Log      zerolog.Logger
}

type pricePayload struct {
	Cents pricing.Number     `json:"cents"`
	Items []componentPayload `json:"items"`
}

type componentPayload struct {
	Cents pricing.Number `json:"cents"`
	Type  string         `json:"type"`
}

type itemPayload struct {
	Quantity pricing.Number `json:"quantity"`
	Type     string         `json:"type" validate:"required"`
	Sku      string         `json:"sku"`
	VAT      pricing.Number `json:"vat"`
	Price    pricePayload   `json:"price"`
	Addon    *pricePayload  `json:"addon_price"`
}

type priceRequest struct {
	Country  string        `json:"country"`
	Currency string        `json:"currency" validate:"required"`
	Coupon   string        `json:"coupon"`
	Items    []itemPayload `json:"items" validate:"required,min=1,dive"`
}

type previewRequest struct {
	Country  string            `json:"country"`
	Currency string            `json:"currency" validate:"required"`
	Settings *pricing.Settings `json:"settings"`
	Claims   map[string]any    `json:"claims"`
	Coupon   *pricing.Discount `json:"coupon"`
	Items    []itemPayload     `json:"items" validate:"required,min=1,dive"`
}

// Price computes an order price for an explicit item list. Member discounts
// are gated by the claim set the auth middleware put on the context; the
// coupon code, when present, is resolved through the coupon source.
func (h *Handler) Price(w http.ResponseWriter, r *http.Request) {
	var req priceRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.RenderError(w, err)
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, err.Error(), nil)
		return
	}

	ctx := r.Context()
	cfg, err := h.Settings.Get(ctx)
	if err != nil {
		h.Log.Error().Err(err).Msg("settings unavailable")
		if errors.Is(err, settings.ErrUnavailable) {
			common.RenderError(w, common.Unavailable(common.CodeSettingsUnavailable, "pricing settings unavailable", err))
			return
		}
		common.RenderError(w, err)
		return
	}

	var couponDiscount *pricing.Discount
	if req.Coupon != "" {
		if h.Coupons == nil {
			common.RenderError(w, common.Unavailable("COUPON_UNAVAILABLE", "coupon service not configured", nil))
			return
		}
		couponDiscount, err = h.Coupons.Lookup(ctx, req.Coupon)
		if err != nil {
			common.RenderError(w, mapCouponError(err))
			return
		}
	}

	h.respond(w, cfg, common.Claims(ctx), req.Country, req.Currency, couponDiscount, req.Items)
}

// Preview prices against inline settings, claims and coupon instead of the
// live sources. It backs the admin what-if endpoint.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.RenderError(w, err)
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, err.Error(), nil)
		return
	}
	h.respond(w, req.Settings, req.Claims, req.Country, req.Currency, req.Coupon, req.Items)
}

func (h *Handler) respond(w http.ResponseWriter, cfg *pricing.Settings, claimSet map[string]any, country, currency string, couponDiscount *pricing.Discount, payload []itemPayload) {
	items, err := convertItems(payload)
	if err != nil {
		obs.QuoteTotal.WithLabelValues("invalid").Inc()
		common.RenderError(w, common.Unprocessable(common.CodeInvalidItem, err.Error(), err))
		return
	}

	start := time.Now()
	order, err := pricing.Calculate(cfg, claimSet, country, currency, couponDiscount, items)
	obs.QuoteDuration.Observe(obs.DurationMillis(time.Since(start)))
	if err != nil {
		obs.QuoteTotal.WithLabelValues("invalid").Inc()
		common.RenderError(w, common.Unprocessable(common.CodeInvalidItem, err.Error(), err))
		return
	}
	obs.QuoteTotal.WithLabelValues("ok").Inc()
	common.JSON(w, http.StatusOK, map[string]any{"data": order})
}

func mapCouponError(err error) error {
	if errors.Is(err, coupon.ErrNotFound) {
		return common.NotFound(common.CodeCouponNotFound, "coupon not found")
	}
	return common.Unavailable("COUPON_UNAVAILABLE", "coupon service unavailable", err)
}

func convertItems(payload []itemPayload) ([]pricing.Item, error) {
	items := make([]pricing.Item, 0, len(payload))
	for i, p := range payload {
		item := pricing.Item{Type: p.Type, Sku: p.Sku}

		if p.Quantity.IsSet() {
			qty, ok := p.Quantity.Int64()
			if !ok {
				return nil, fmt.Errorf("item %d: quantity must be an integer", i)
			}
			item.Quantity = qty
		}
		if p.VAT.IsSet() {
			vat, _ := p.VAT.Float64()
			item.VAT = &vat
		}

		price, err := convertPrice(i, "price", p.Price)
		if err != nil {
			return nil, err
		}
		item.Price = price

		if p.Addon != nil {
			addon, err := convertPrice(i, "addon_price", *p.Addon)
			if err != nil {
				return nil, err
			}
			item.AddonPrice = &addon
		}
		items = append(items, item)
	}
	return items, nil
}

func convertPrice(index int, field string, p pricePayload) (pricing.ItemPrice, error) {
	out := pricing.ItemPrice{}
	if p.Cents.IsSet() {
		cents, ok := p.Cents.Int64()
		if !ok {
			return out, fmt.Errorf("item %d: %s.cents must be an integer", index, field)
		}
		out.Cents = cents
	}
	for j, component := range p.Items {
		cents := int64(0)
		if component.Cents.IsSet() {
			v, ok := component.Cents.Int64()
			if !ok {
				return out, fmt.Errorf("item %d: %s.items[%d].cents must be an integer", index, field, j)
			}
			cents = v
		}
		out.Items = append(out.Items, pricing.PriceComponent{Cents: cents, Type: component.Type})
	}
	return out, nil
}
