package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/quotebook/internal/pricing"
)

// Price validates the inputs and runs the pricing calculator over them.
func Price(items []ItemInput, taxRate decimal.Decimal, discount *DiscountInput) (Totals, []decimal.Decimal, error) {
	if err := ValidateItems(items); err != nil {
		return Totals{}, nil, err
	}
	if err := ValidateTaxRate(taxRate); err != nil {
		return Totals{}, nil, err
	}
	if err := ValidateDiscount(discount); err != nil {
		return Totals{}, nil, err
	}

	in := make([]pricing.Item, len(items))
	for i, item := range items {
		in[i] = pricing.Item{Quantity: item.Quantity, UnitPrice: item.UnitPrice}
	}

	var disc *pricing.Discount
	totals := Totals{TaxRate: taxRate}
	if discount != nil {
		disc = &pricing.Discount{Type: discount.Type, Value: discount.Value}
		totals.DiscountType = discount.Type
		totals.DiscountValue = decimal.NewNullDecimal(discount.Value)
	}

	res := pricing.Compute(in, taxRate, disc)
	totals.Subtotal = res.Subtotal
	totals.DiscountAmount = res.DiscountAmount
	totals.TaxAmount = res.TaxAmount
	totals.Total = res.Total
	return totals, res.LineTotals, nil
}

// NewLineItems builds the rows for a freshly priced item collection.
func NewLineItems(kind Kind, documentID snowflake.ID, items []ItemInput, lineTotals []decimal.Decimal, genID *snowflake.Node, now time.Time) []LineItem {
	rows := make([]LineItem, len(items))
	for i, item := range items {
		rows[i] = LineItem{
			ID:           genID.Generate(),
			DocumentKind: kind,
			DocumentID:   documentID,
			Position:     i,
			Description:  item.Description,
			Quantity:     item.Quantity,
			Unit:         item.Unit,
			UnitPrice:    item.UnitPrice,
			Total:        lineTotals[i],
			CreatedAt:    now,
		}
	}
	return rows
}

// SnapshotItems copies src into new rows owned by another document.
func SnapshotItems(src []LineItem, kind Kind, documentID snowflake.ID, genID *snowflake.Node, now time.Time) []LineItem {
	rows := make([]LineItem, len(src))
	for i, item := range src {
		item.ID = genID.Generate()
		item.DocumentKind = kind
		item.DocumentID = documentID
		item.Position = i
		item.CreatedAt = now
		rows[i] = item
	}
	return rows
}

// ItemInputs turns stored rows back into pricing inputs.
func ItemInputs(rows []LineItem) []ItemInput {
	items := make([]ItemInput, len(rows))
	for i, row := range rows {
		items[i] = ItemInput{
			Description: row.Description,
			Quantity:    row.Quantity,
			Unit:        row.Unit,
			UnitPrice:   row.UnitPrice,
		}
	}
	return items
}

// Reprice recomputes a stored snapshot with any newly supplied tax rate or
// discount merged over the current configuration.
func Reprice(current Totals, items []ItemInput, taxRate *decimal.Decimal, discount *DiscountInput, clearDiscount bool) (Totals, []decimal.Decimal, error) {
	rate := current.TaxRate
	if taxRate != nil {
		rate = *taxRate
	}

	disc := current.Discount()
	switch {
	case clearDiscount:
		disc = nil
	case discount != nil:
		disc = discount
	}

	return Price(items, rate, disc)
}
