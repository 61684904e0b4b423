// Package pricing implements the order pricing engine: per-line subtotal,
// stacked coupon and member discounts, and tax computation in integer minor
// currency units.
package pricing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Discount type labels recorded on audit entries.
const (
	DiscountTypeCoupon = "coupon"
	DiscountTypeMember = "member"
)

// Settings configures taxes and member discounts for a calculation. A nil
// Settings is valid and yields tax-free, member-discount-free pricing.
type Settings struct {
	PricesIncludeTaxes bool       `json:"prices_include_taxes"`
	Taxes              []TaxRule  `json:"taxes,omitempty"`
	MemberDiscounts    []Discount `json:"member_discounts,omitempty"`
}

// TaxRule maps a percentage rate to a set of countries and product types.
// An empty country or product type list leaves that dimension unrestricted.
type TaxRule struct {
	Percentage   float64  `json:"percentage"`
	Countries    []string `json:"countries,omitempty"`
	ProductTypes []string `json:"product_types,omitempty"`
}

// AppliesTo reports whether the rule covers the given jurisdiction and
// product type.
func (t TaxRule) AppliesTo(country, productType string) bool {
	if len(t.Countries) > 0 && !containsString(t.Countries, country) {
		return false
	}
	if len(t.ProductTypes) > 0 && !containsString(t.ProductTypes, productType) {
		return false
	}
	return true
}

// FixedAmount is a currency-scoped fixed discount expressed as a decimal
// string ("15.00").
type FixedAmount struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

// Discount describes either a coupon or a member discount; the two share a
// shape and differ only in how they are supplied to the engine.
type Discount struct {
	Percentage   float64        `json:"percentage"`
	Fixed        []FixedAmount  `json:"fixed,omitempty"`
	ProductTypes []string       `json:"product_types,omitempty"`
	Products     []string       `json:"products,omitempty"`
	Claims       map[string]any `json:"claims,omitempty"`
}

// ValidFor reports whether the discount is scoped to the given product type
// and SKU. The product type scope is checked first; a type mismatch rejects
// the discount without consulting the SKU scope.
func (d Discount) ValidFor(productType, sku string) bool {
	if len(d.ProductTypes) > 0 && !containsString(d.ProductTypes, productType) {
		return false
	}
	if len(d.Products) > 0 && !containsString(d.Products, sku) {
		return false
	}
	return true
}

// FixedFor resolves the fixed discount in minor units for the requested
// currency. A missing currency entry means zero fixed discount; a malformed
// amount string is an input error, never a silent zero.
func (d Discount) FixedFor(currency string) (int64, error) {
	for _, fixed := range d.Fixed {
		if fixed.Currency != currency {
			continue
		}
		amount, err := decimal.NewFromString(strings.TrimSpace(fixed.Amount))
		if err != nil {
			return 0, fmt.Errorf("fixed amount %q for currency %s: %w", fixed.Amount, currency, ErrInvalidInput)
		}
		return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart(), nil
	}
	return 0, nil
}

// Item is one cart line submitted for pricing.
type Item struct {
	// Quantity defaults to 1 when zero.
	Quantity   int64      `json:"quantity,omitempty"`
	Type       string     `json:"type"`
	Sku        string     `json:"sku,omitempty"`
	VAT        *float64   `json:"vat,omitempty"`
	Price      ItemPrice  `json:"price"`
	AddonPrice *ItemPrice `json:"addon_price,omitempty"`
}

// ItemPrice is a minor-unit amount, optionally broken down into typed
// components for proportional tax splitting (a bundle of a book plus its
// e-book, for example).
type ItemPrice struct {
	Cents int64            `json:"cents"`
	Items []PriceComponent `json:"items,omitempty"`
}

// PriceComponent is one typed slice of a bundled price.
type PriceComponent struct {
	Cents int64  `json:"cents"`
	Type  string `json:"type"`
}

// DiscountItem records one applied discount for audit and display. Fixed is
// the configured fixed amount converted to minor units, before any cap.
type DiscountItem struct {
	Type       string  `json:"type"`
	Percentage float64 `json:"percentage"`
	Fixed      int64   `json:"fixed"`
}

// LinePrice is the priced result for a single item, before quantity
// multiplication.
type LinePrice struct {
	Quantity       int64          `json:"quantity"`
	Subtotal       int64          `json:"subtotal"`
	Discount       int64          `json:"discount"`
	CouponDiscount int64          `json:"couponDiscount"`
	MemberDiscount int64          `json:"memberDiscount"`
	DiscountItems  []DiscountItem `json:"discountItems"`
	Taxes          int64          `json:"taxes"`
	NetTotal       int64          `json:"netTotal"`
	Total          int64          `json:"total"`
}

// OrderPrice aggregates line results weighted by quantity.
type OrderPrice struct {
	Subtotal       int64       `json:"subtotal"`
	Discount       int64       `json:"discount"`
	CouponDiscount int64       `json:"couponDiscount"`
	MemberDiscount int64       `json:"memberDiscount"`
	Taxes          int64       `json:"taxes"`
	NetTotal       int64       `json:"netTotal"`
	Total          int64       `json:"total"`
	Items          []LinePrice `json:"items"`
}

// Number accepts a JSON number or a numeric string ("20", "19.00"). Upstream
// product feeds are inconsistent about which they emit, so the payload layer
// parses both explicitly instead of coercing.
type Number struct {
	value decimal.Decimal
	set   bool
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *Number) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*n = Number{}
		return nil
	}
	if trimmed[0] == '"' {
		var raw string
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return err
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			*n = Number{}
			return nil
		}
		value, err := decimal.NewFromString(raw)
		if err != nil {
			return fmt.Errorf("invalid numeric string %q", raw)
		}
		*n = Number{value: value, set: true}
		return nil
	}
	value, err := decimal.NewFromString(string(trimmed))
	if err != nil {
		return fmt.Errorf("invalid number %s", trimmed)
	}
	*n = Number{value: value, set: true}
	return nil
}

// IsSet reports whether a value was present in the payload.
func (n Number) IsSet() bool { return n.set }

// Float64 returns the value as a float; ok is false when unset.
func (n Number) Float64() (float64, bool) {
	if !n.set {
		return 0, false
	}
	return n.value.InexactFloat64(), true
}

// Int64 returns the value as an integer; ok is false when unset or when the
// value carries a fractional part.
func (n Number) Int64() (int64, bool) {
	if !n.set || !n.value.IsInteger() {
		return 0, false
	}
	return n.value.IntPart(), true
}

func containsString(list []string, value string) bool {
	for _, entry := range list {
		if entry == value {
			return true
		}
	}
	return false
}
