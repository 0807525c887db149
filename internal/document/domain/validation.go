package domain

import (
	"strings"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/quotebook/internal/pricing"
)

// Decimal places the store keeps for each input column. Inputs finer than
// these are rejected so that repricing from stored rows reproduces the totals.
const (
	QuantityScale  int32 = 4
	UnitPriceScale int32 = pricing.Scale
	TaxRateScale   int32 = 4
	DiscountScale  int32 = 4
)

var one = decimal.NewFromInt(1)

// ValidateItems rejects empty collections, blank descriptions, non-positive
// quantities, negative unit prices and values finer than their column scale.
func ValidateItems(items []ItemInput) error {
	if len(items) == 0 {
		return ErrEmptyItems
	}
	for _, item := range items {
		if strings.TrimSpace(item.Description) == "" {
			return ErrInvalidDescription
		}
		if !item.Quantity.IsPositive() || exceedsScale(item.Quantity, QuantityScale) {
			return ErrInvalidQuantity
		}
		if item.UnitPrice.IsNegative() || exceedsScale(item.UnitPrice, UnitPriceScale) {
			return ErrInvalidUnitPrice
		}
	}
	return nil
}

// ValidateTaxRate accepts fractions in [0, 1] with at most four places.
func ValidateTaxRate(rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThan(one) || exceedsScale(rate, TaxRateScale) {
		return ErrInvalidTaxRate
	}
	return nil
}

func ValidateDiscount(discount *DiscountInput) error {
	if discount == nil {
		return nil
	}
	if !discount.Type.Valid() {
		return ErrInvalidDiscountType
	}
	if discount.Value.IsNegative() || exceedsScale(discount.Value, DiscountScale) {
		return ErrInvalidDiscountValue
	}
	return nil
}

func exceedsScale(v decimal.Decimal, places int32) bool {
	return !v.Equal(v.Truncate(places))
}

// NormalizeItems returns a copy of items with text fields trimmed.
func NormalizeItems(items []ItemInput) []ItemInput {
	out := make([]ItemInput, len(items))
	for i, item := range items {
		item.Description = strings.TrimSpace(item.Description)
		item.Unit = strings.TrimSpace(item.Unit)
		out[i] = item
	}
	return out
}
