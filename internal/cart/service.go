// Package cart implements a SKU-keyed shopping cart persisted through a
// key-value store, with a pricing operation that feeds the cart lines
// through the pricing engine.
package cart

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/noah-isme/pricing-api/internal/pricing"
)

// ErrNotFound indicates the requested cart or line could not be located.
var ErrNotFound = errors.New("cart not found")

// ErrInvalidInput is returned when the provided payload is invalid.
var ErrInvalidInput = errors.New("invalid input")

// Line is one cart entry, keyed by SKU.
type Line struct {
	Sku      string             `json:"sku"`
	Title    string             `json:"title"`
	Type     string             `json:"type"`
	Quantity int64              `json:"quantity"`
	VAT      *float64           `json:"vat,omitempty"`
	Price    pricing.ItemPrice  `json:"price"`
	Addon    *pricing.ItemPrice `json:"addon_price,omitempty"`
}

// Cart is the persisted cart document.
type Cart struct {
	ID        string    `json:"id"`
	Lines     []Line    `json:"lines"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Service encapsulates cart domain operations.
type Service struct {
	Store Store
	Now   func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// Get loads a cart. A cart that was never written is an empty cart, not an
// error, so clients can read before their first write.
func (s *Service) Get(ctx context.Context, id string) (*Cart, error) {
	cart, ok, err := s.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &Cart{ID: id, Lines: []Line{}}, nil
	}
	return cart, nil
}

// AddItem appends a line, or increments the quantity when the SKU is already
// in the cart.
func (s *Service) AddItem(ctx context.Context, id string, line Line) (*Cart, error) {
	if err := validateLine(line); err != nil {
		return nil, err
	}
	if line.Quantity == 0 {
		line.Quantity = 1
	}

	cart, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	found := false
	for i := range cart.Lines {
		if cart.Lines[i].Sku == line.Sku {
			cart.Lines[i].Quantity += line.Quantity
			found = true
			break
		}
	}
	if !found {
		cart.Lines = append(cart.Lines, line)
	}
	return s.save(ctx, cart)
}

// UpdateQuantity sets a line's quantity. A quantity of zero or less removes
// the line. Unknown SKUs yield ErrNotFound.
func (s *Service) UpdateQuantity(ctx context.Context, id, sku string, quantity int64) (*Cart, error) {
	cart, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	for i := range cart.Lines {
		if cart.Lines[i].Sku != sku {
			continue
		}
		if quantity <= 0 {
			cart.Lines = append(cart.Lines[:i], cart.Lines[i+1:]...)
		} else {
			cart.Lines[i].Quantity = quantity
		}
		return s.save(ctx, cart)
	}
	return nil, fmt.Errorf("sku %s: %w", sku, ErrNotFound)
}

// RemoveItem deletes a line by SKU.
func (s *Service) RemoveItem(ctx context.Context, id, sku string) (*Cart, error) {
	return s.UpdateQuantity(ctx, id, sku, 0)
}

// Clear drops the cart entirely.
func (s *Service) Clear(ctx context.Context, id string) error {
	return s.Store.Delete(ctx, id)
}

// Price runs the cart lines through the pricing engine. Lines are ordered by
// SKU first so the same cart always prices the same way regardless of
// insertion order.
func (s *Service) Price(ctx context.Context, id string, cfg *pricing.Settings, claimSet map[string]any, country, currency string, coupon *pricing.Discount) (pricing.OrderPrice, error) {
	cart, err := s.Get(ctx, id)
	if err != nil {
		return pricing.OrderPrice{}, err
	}

	lines := make([]Line, len(cart.Lines))
	copy(lines, cart.Lines)
	sort.Slice(lines, func(i, j int) bool { return lines[i].Sku < lines[j].Sku })

	items := make([]pricing.Item, 0, len(lines))
	for _, line := range lines {
		items = append(items, pricing.Item{
			Quantity:   line.Quantity,
			Type:       line.Type,
			Sku:        line.Sku,
			VAT:        line.VAT,
			Price:      line.Price,
			AddonPrice: line.Addon,
		})
	}
	return pricing.Calculate(cfg, claimSet, country, currency, coupon, items)
}

func (s *Service) save(ctx context.Context, cart *Cart) (*Cart, error) {
	cart.UpdatedAt = s.now()
	if err := s.Store.Set(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

func validateLine(line Line) error {
	if strings.TrimSpace(line.Sku) == "" {
		return fmt.Errorf("sku is required: %w", ErrInvalidInput)
	}
	if strings.TrimSpace(line.Title) == "" {
		return fmt.Errorf("title is required: %w", ErrInvalidInput)
	}
	if line.Quantity < 0 {
		return fmt.Errorf("quantity must not be negative: %w", ErrInvalidInput)
	}
	if line.Price.Cents < 0 {
		return fmt.Errorf("price.cents must not be negative: %w", ErrInvalidInput)
	}
	return nil
}
