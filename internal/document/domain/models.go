// Package domain holds the primitives shared by quotes and invoices: line
// items, the monetary snapshot, input validation and the error taxonomy.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/quotebook/internal/pricing"
)

type Kind string

const (
	KindQuote   Kind = "quote"
	KindInvoice Kind = "invoice"
)

func (k Kind) Valid() bool { return k == KindQuote || k == KindInvoice }

// LineItem is one priced row owned by exactly one document.
type LineItem struct {
	ID           snowflake.ID    `gorm:"primaryKey" json:"id"`
	DocumentKind Kind            `gorm:"type:varchar(16);not null;index:idx_line_items_document,priority:1" json:"-"`
	DocumentID   snowflake.ID    `gorm:"not null;index:idx_line_items_document,priority:2" json:"-"`
	Position     int             `gorm:"not null" json:"position"`
	Description  string          `gorm:"type:text;not null" json:"description"`
	Quantity     decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"quantity"`
	Unit         string          `gorm:"type:varchar(32)" json:"unit,omitempty"`
	UnitPrice    decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"unit_price"`
	Total        decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"total"`
	CreatedAt    time.Time       `gorm:"not null" json:"created_at"`
}

func (LineItem) TableName() string { return "line_items" }

// Totals is the monetary snapshot stored on every document. It is only ever
// written from a pricing.Result or copied verbatim during conversion.
type Totals struct {
	Subtotal       decimal.Decimal      `gorm:"type:decimal(18,2);not null" json:"subtotal"`
	TaxRate        decimal.Decimal      `gorm:"type:decimal(6,4);not null" json:"tax_rate"`
	TaxAmount      decimal.Decimal      `gorm:"type:decimal(18,2);not null" json:"tax_amount"`
	DiscountType   pricing.DiscountType `gorm:"type:varchar(16)" json:"discount_type,omitempty"`
	DiscountValue  decimal.NullDecimal  `gorm:"type:decimal(18,4)" json:"discount_value"`
	DiscountAmount decimal.Decimal      `gorm:"type:decimal(18,2);not null" json:"discount_amount"`
	Total          decimal.Decimal      `gorm:"type:decimal(18,2);not null" json:"total"`
}

// Discount returns the stored discount configuration, nil when none is set.
func (t Totals) Discount() *DiscountInput {
	if t.DiscountType == "" || !t.DiscountValue.Valid {
		return nil
	}
	return &DiscountInput{Type: t.DiscountType, Value: t.DiscountValue.Decimal}
}

type ItemInput struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	Unit        string          `json:"unit,omitempty"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

type DiscountInput struct {
	Type  pricing.DiscountType `json:"type"`
	Value decimal.Decimal      `json:"value"`
}

// Options are the optional, non-monetary fields shared by both document kinds.
type Options struct {
	Notes         *string `json:"notes,omitempty"`
	InternalNotes *string `json:"internal_notes,omitempty"`
}
