// Package pricing turns line items plus tax and discount settings into the
// monetary snapshot stored on quotes and invoices. It performs no validation;
// callers reject negative inputs before calling Compute.
package pricing

import "github.com/shopspring/decimal"

// Scale is the number of decimal places stored for money amounts.
const Scale = 2

var hundred = decimal.NewFromInt(100)

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

func (t DiscountType) Valid() bool {
	return t == DiscountPercentage || t == DiscountFixed
}

type Discount struct {
	Type  DiscountType
	Value decimal.Decimal
}

type Item struct {
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
}

type Result struct {
	Subtotal       decimal.Decimal
	DiscountAmount decimal.Decimal
	TaxableAmount  decimal.Decimal
	TaxAmount      decimal.Decimal
	Total          decimal.Decimal
	LineTotals     []decimal.Decimal
}

// LineTotal returns quantity × unit price rounded half away from zero to cents.
func LineTotal(quantity, unitPrice decimal.Decimal) decimal.Decimal {
	return quantity.Mul(unitPrice).Round(Scale)
}

// Compute derives the monetary snapshot for items. Line totals, the discount
// and the tax are each rounded to cents. Subtotal is the sum of the rounded
// line totals, the discount is clamped to [0, subtotal] and total is
// taxable + tax with no further rounding.
func Compute(items []Item, taxRate decimal.Decimal, discount *Discount) Result {
	res := Result{LineTotals: make([]decimal.Decimal, len(items))}

	subtotal := decimal.Zero
	for i, item := range items {
		line := LineTotal(item.Quantity, item.UnitPrice)
		res.LineTotals[i] = line
		subtotal = subtotal.Add(line)
	}

	res.Subtotal = subtotal
	res.DiscountAmount = discountAmount(subtotal, discount)
	res.TaxableAmount = subtotal.Sub(res.DiscountAmount)
	res.TaxAmount = res.TaxableAmount.Mul(taxRate).Round(Scale)
	res.Total = res.TaxableAmount.Add(res.TaxAmount)
	return res
}

func discountAmount(subtotal decimal.Decimal, discount *Discount) decimal.Decimal {
	if discount == nil {
		return decimal.Zero
	}

	var amount decimal.Decimal
	switch discount.Type {
	case DiscountPercentage:
		amount = subtotal.Mul(discount.Value).Div(hundred).Round(Scale)
	case DiscountFixed:
		amount = discount.Value.Round(Scale)
	default:
		return decimal.Zero
	}

	if amount.IsNegative() {
		return decimal.Zero
	}
	if amount.GreaterThan(subtotal) {
		return subtotal
	}
	return amount
}
