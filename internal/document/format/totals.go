package format

import (
	"github.com/shopspring/decimal"
	docdomain "github.com/smallbiznis/quotebook/internal/document/domain"
)

// Amounts is a document's money snapshot rendered with the currency symbol.
type Amounts struct {
	Subtotal       string `json:"subtotal"`
	DiscountAmount string `json:"discount_amount"`
	TaxAmount      string `json:"tax_amount"`
	Total          string `json:"total"`
	AmountPaid     string `json:"amount_paid,omitempty"`
	AmountDue      string `json:"amount_due,omitempty"`
}

func Totals(t docdomain.Totals, currency string) *Amounts {
	return &Amounts{
		Subtotal:       FormatPlain(t.Subtotal, currency),
		DiscountAmount: FormatPlain(t.DiscountAmount, currency),
		TaxAmount:      FormatPlain(t.TaxAmount, currency),
		Total:          FormatPlain(t.Total, currency),
	}
}

// InvoiceTotals adds the payment position to Totals.
func InvoiceTotals(t docdomain.Totals, paid, due decimal.Decimal, currency string) *Amounts {
	out := Totals(t, currency)
	out.AmountPaid = FormatPlain(paid, currency)
	out.AmountDue = FormatPlain(due, currency)
	return out
}
