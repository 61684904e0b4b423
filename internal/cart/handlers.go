package cart

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/pricing-api/internal/common"
	"github.com/noah-isme/pricing-api/internal/coupon"
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

// Handler exposes the cart HTTP endpoints.
type Handler struct {
	Svc      *Service
	Settings SettingsSource
	Coupons  CouponSource
	Validate *validator.Validate
	Log      zerolog.Logger
}

type linePayload struct {
	Sku      string             `json:"sku" validate:"required"`
	Title    string             `json:"title" validate:"required"`
	Type     string             `json:"type" validate:"required"`
	Quantity pricing.Number `json:"quantity"`
	VAT      pricing.Number `json:"vat"`
	Price    pricePayload   `json:"price"`
	Addon    *pricePayload  `json:"addon_price"`
}

type pricePayload struct {
	Cents pricing.Number     `json:"cents"`
	Items []componentPayload `json:"items"`
}

type componentPayload struct {
	Cents pricing.Number `json:"cents"`
	Type  string         `json:"type"`
}

type quantityPayload struct {
	Quantity pricing.Number `json:"quantity"`
}

type priceCartRequest struct {
	Country  string `json:"country"`
	Currency string `json:"currency" validate:"required"`
	Coupon   string `json:"coupon"`
}

func cartID(r *http.Request) (string, error) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		return "", common.BadRequest("cart id is required", nil)
	}
	return id, nil
}

// Get returns the cart; carts never written yet come back empty.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := cartID(r)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	cart, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		h.Log.Error().Err(err).Str("cart", id).Msg("load cart failed")
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": cart})
}

// AddItem appends a line or increments an existing SKU.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	id, err := cartID(r)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	var payload linePayload
	if err := common.DecodeJSON(r, &payload); err != nil {
		common.RenderError(w, err)
		return
	}
	if err := h.Validate.Struct(payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, err.Error(), nil)
		return
	}
	line, err := payload.toLine()
	if err != nil {
		common.RenderError(w, common.Unprocessable(common.CodeInvalidItem, err.Error(), err))
		return
	}
	cart, err := h.Svc.AddItem(r.Context(), id, line)
	if err != nil {
		h.renderServiceError(w, id, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": cart})
}

// UpdateQuantity sets a line quantity; zero or less removes the line.
func (h *Handler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	id, err := cartID(r)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	sku := strings.TrimSpace(chi.URLParam(r, "sku"))
	var payload quantityPayload
	if err := common.DecodeJSON(r, &payload); err != nil {
		common.RenderError(w, err)
		return
	}
	qty, ok := payload.Quantity.Int64()
	if !payload.Quantity.IsSet() || !ok {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "quantity must be an integer", nil)
		return
	}
	cart, err := h.Svc.UpdateQuantity(r.Context(), id, sku, qty)
	if err != nil {
		h.renderServiceError(w, id, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": cart})
}

// RemoveItem deletes a line by SKU.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	id, err := cartID(r)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	sku := strings.TrimSpace(chi.URLParam(r, "sku"))
	cart, err := h.Svc.RemoveItem(r.Context(), id, sku)
	if err != nil {
		h.renderServiceError(w, id, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": cart})
}

// Clear drops the whole cart.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	id, err := cartID(r)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	if err := h.Svc.Clear(r.Context(), id); err != nil {
		h.renderServiceError(w, id, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Price resolves settings, claims and the optional coupon, then prices the
// cart through the engine.
func (h *Handler) Price(w http.ResponseWriter, r *http.Request) {
	id, err := cartID(r)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	var req priceCartRequest
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
			if errors.Is(err, coupon.ErrNotFound) {
				common.RenderError(w, common.NotFound(common.CodeCouponNotFound, "coupon not found"))
				return
			}
			common.RenderError(w, common.Unavailable("COUPON_UNAVAILABLE", "coupon service unavailable", err))
			return
		}
	}

	order, err := h.Svc.Price(ctx, id, cfg, common.Claims(ctx), req.Country, req.Currency, couponDiscount)
	if err != nil {
		if errors.Is(err, pricing.ErrInvalidInput) {
			common.RenderError(w, common.Unprocessable(common.CodeInvalidItem, err.Error(), err))
			return
		}
		h.renderServiceError(w, id, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": order})
}

func (h *Handler) renderServiceError(w http.ResponseWriter, id string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		common.RenderError(w, common.NotFound(common.CodeNotFound, err.Error()))
	case errors.Is(err, ErrInvalidInput):
		common.RenderError(w, common.Unprocessable(common.CodeValidation, err.Error(), err))
	default:
		h.Log.Error().Err(err).Str("cart", id).Msg("cart operation failed")
		common.RenderError(w, err)
	}
}

func (p linePayload) toLine() (Line, error) {
	line := Line{Sku: p.Sku, Title: p.Title, Type: p.Type}

	if p.Quantity.IsSet() {
		qty, ok := p.Quantity.Int64()
		if !ok {
			return Line{}, fmt.Errorf("quantity must be an integer")
		}
		line.Quantity = qty
	}
	if p.VAT.IsSet() {
		vat, _ := p.VAT.Float64()
		line.VAT = &vat
	}

	price, err := p.Price.toItemPrice("price")
	if err != nil {
		return Line{}, err
	}
	line.Price = price

	if p.Addon != nil {
		addon, err := p.Addon.toItemPrice("addon_price")
		if err != nil {
			return Line{}, err
		}
		line.Addon = &addon
	}
	return line, nil
}

func (p pricePayload) toItemPrice(field string) (pricing.ItemPrice, error) {
	out := pricing.ItemPrice{}
	if p.Cents.IsSet() {
		cents, ok := p.Cents.Int64()
		if !ok {
			return out, fmt.Errorf("%s.cents must be an integer", field)
		}
		out.Cents = cents
	}
	for j, component := range p.Items {
		cents := int64(0)
		if component.Cents.IsSet() {
			v, ok := component.Cents.Int64()
			if !ok {
				return out, fmt.Errorf("%s.items[%d].cents must be an integer", field, j)
			}
			cents = v
		}
		out.Items = append(out.Items, pricing.PriceComponent{Cents: cents, Type: component.Type})
	}
	return out, nil
}
