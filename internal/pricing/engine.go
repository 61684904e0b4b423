package pricing

import (
	"errors"
	"fmt"
	"math"

	"github.com/noah-isme/pricing-api/internal/claims"
)

// ErrInvalidInput marks a batch rejected because of a malformed item. The
// wrapping error names the item index and the offending field.
var ErrInvalidInput = errors.New("invalid input")

// rint rounds half away from zero. All intermediate amounts are rounded this
// way, so totals are reproducible across platforms.
func rint(v float64) int64 {
	return int64(math.Floor(v + 0.5))
}

// taxBase is one amount/rate pair to be taxed. With bundled price components
// a single line yields several bases, one per component.
type taxBase struct {
	amount     int64
	percentage float64
}

// taxSplit separates an amount into its net part and its tax part.
type taxSplit struct {
	netTotal int64
	taxes    int64
}

// Calculate prices a batch of items. All qualifying discounts stack: the
// coupon plus every member discount whose claim predicate the caller's claim
// set satisfies. A nil settings, coupon, or claim set degrades to zero taxes,
// no coupon, and anonymous pricing respectively; it is never an error.
//
// The whole batch fails on the first malformed item so that a partial result
// can never be mistaken for a complete one.
func Calculate(settings *Settings, claimSet map[string]any, country, currency string, coupon *Discount, items []Item) (OrderPrice, error) {
	order := OrderPrice{Items: make([]LinePrice, 0, len(items))}
	for i := range items {
		if err := validateItem(i, &items[i]); err != nil {
			return OrderPrice{}, err
		}
	}
	for i := range items {
		line, err := priceItem(settings, claimSet, country, currency, coupon, &items[i])
		if err != nil {
			return OrderPrice{}, fmt.Errorf("item %d: %w", i, err)
		}
		order.Items = append(order.Items, line)

		qty := line.Quantity
		order.Subtotal += line.Subtotal * qty
		order.Discount += line.Discount * qty
		order.CouponDiscount += line.CouponDiscount * qty
		order.MemberDiscount += line.MemberDiscount * qty
		order.Taxes += line.Taxes * qty
		order.NetTotal += line.NetTotal * qty
	}
	order.Total = order.NetTotal + order.Taxes
	return order, nil
}

func priceItem(settings *Settings, claimSet map[string]any, country, currency string, coupon *Discount, item *Item) (LinePrice, error) {
	line := LinePrice{Quantity: item.Quantity, DiscountItems: []DiscountItem{}}
	if line.Quantity == 0 {
		line.Quantity = 1
	}

	original := item.Price.Cents
	if item.AddonPrice != nil {
		original += item.AddonPrice.Cents
	}

	// The reported subtotal is the pre-discount net amount. In tax-inclusive
	// mode this strips the embedded tax from the sticker price.
	line.Subtotal = splitTaxes(settings, country, item, original, original).netTotal

	// Discounts stack against the undiscounted amount, but each one is capped
	// at what is still left so the line can never go negative and the reported
	// coupon and member components always add up to the total discount.
	remaining := original
	if coupon != nil && discountApplies(claimSet, *coupon, item) {
		fixed, err := coupon.FixedFor(currency)
		if err != nil {
			return LinePrice{}, err
		}
		amount := discountAmount(original, coupon.Percentage, fixed)
		if amount > remaining {
			amount = remaining
		}
		remaining -= amount
		line.CouponDiscount = amount
		line.DiscountItems = append(line.DiscountItems, DiscountItem{
			Type:       DiscountTypeCoupon,
			Percentage: coupon.Percentage,
			Fixed:      fixed,
		})
	}
	if settings != nil {
		for _, member := range settings.MemberDiscounts {
			if !discountApplies(claimSet, member, item) {
				continue
			}
			fixed, err := member.FixedFor(currency)
			if err != nil {
				return LinePrice{}, err
			}
			amount := discountAmount(original, member.Percentage, fixed)
			if amount > remaining {
				amount = remaining
			}
			remaining -= amount
			line.MemberDiscount += amount
			line.DiscountItems = append(line.DiscountItems, DiscountItem{
				Type:       DiscountTypeMember,
				Percentage: member.Percentage,
				Fixed:      fixed,
			})
		}
	}

	line.Discount = line.CouponDiscount + line.MemberDiscount

	split := splitTaxes(settings, country, item, original-line.Discount, original)
	line.Taxes = split.taxes
	line.NetTotal = split.netTotal
	line.Total = line.NetTotal + line.Taxes
	return line, nil
}

// discountAmount computes a single discount against the pre-discount amount.
// Each discount is individually capped at that amount.
func discountAmount(original int64, percentage float64, fixed int64) int64 {
	discount := fixed
	if percentage != 0 {
		discount += rint(float64(original) * percentage / 100)
	}
	if discount > original {
		return original
	}
	if discount < 0 {
		return 0
	}
	return discount
}

func discountApplies(claimSet map[string]any, d Discount, item *Item) bool {
	return d.ValidFor(item.Type, item.Sku) && claims.Satisfies(claimSet, d.Claims)
}

// splitTaxes divides amountToTax into net and tax portions. When the price
// carries typed components, each component is taxed at its own rate against
// its proportional share of amountToTax; components with no matching rule
// still contribute an untaxed base so the net keeps their share.
func splitTaxes(settings *Settings, country string, item *Item, amountToTax, originalPrice int64) taxSplit {
	bases := taxBases(settings, country, item, amountToTax, originalPrice)
	if len(bases) == 0 {
		return taxSplit{netTotal: amountToTax}
	}

	var split taxSplit
	if settings != nil && settings.PricesIncludeTaxes {
		for _, base := range bases {
			tax := rint(float64(base.amount) * base.percentage / (100 + base.percentage))
			split.taxes += tax
			split.netTotal += base.amount - tax
		}
		return split
	}
	split.netTotal = amountToTax
	for _, base := range bases {
		split.taxes += rint(float64(base.amount) * base.percentage / 100)
	}
	return split
}

func taxBases(settings *Settings, country string, item *Item, amountToTax, originalPrice int64) []taxBase {
	// An explicit item VAT overrides any per-component rates.
	if item.VAT != nil {
		return []taxBase{{amount: amountToTax, percentage: *item.VAT}}
	}
	if settings != nil && len(item.Price.Items) > 0 {
		ratio := 0.0
		if originalPrice != 0 {
			ratio = float64(amountToTax) / float64(originalPrice)
		}
		bases := make([]taxBase, 0, len(item.Price.Items))
		for _, component := range item.Price.Items {
			rate := 0.0
			if tax := FindTax(settings, country, component.Type); tax != nil {
				rate = tax.Percentage
			}
			bases = append(bases, taxBase{
				amount:     rint(float64(component.Cents) * ratio),
				percentage: rate,
			})
		}
		return bases
	}
	if tax := FindTax(settings, country, item.Type); tax != nil {
		return []taxBase{{amount: amountToTax, percentage: tax.Percentage}}
	}
	return nil
}

func validateItem(index int, item *Item) error {
	if item.Quantity < 0 {
		return fmt.Errorf("item %d: quantity must not be negative: %w", index, ErrInvalidInput)
	}
	if item.Price.Cents < 0 {
		return fmt.Errorf("item %d: price.cents must not be negative: %w", index, ErrInvalidInput)
	}
	if item.VAT != nil && *item.VAT < 0 {
		return fmt.Errorf("item %d: vat must not be negative: %w", index, ErrInvalidInput)
	}
	if item.AddonPrice != nil && item.AddonPrice.Cents < 0 {
		return fmt.Errorf("item %d: addon_price.cents must not be negative: %w", index, ErrInvalidInput)
	}
	for j, component := range item.Price.Items {
		if component.Cents < 0 {
			return fmt.Errorf("item %d: price.items[%d].cents must not be negative: %w", index, j, ErrInvalidInput)
		}
	}
	return nil
}
