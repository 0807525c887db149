// Package domain models the append-only payment ledger of an invoice.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Method string

const (
	MethodBankTransfer Method = "bank_transfer"
	MethodCash         Method = "cash"
	MethodCard         Method = "card"
	MethodCheck        Method = "check"
	MethodOther        Method = "other"
)

func (m Method) Valid() bool {
	switch m {
	case MethodBankTransfer, MethodCash, MethodCard, MethodCheck, MethodOther:
		return true
	default:
		return false
	}
}

// Payment is immutable once written.
type Payment struct {
	ID        snowflake.ID    `gorm:"primaryKey" json:"id"`
	InvoiceID snowflake.ID    `gorm:"not null;index" json:"invoice_id"`
	Amount    decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"amount"`
	Method    Method          `gorm:"type:varchar(32);not null" json:"method"`
	Reference string          `gorm:"type:text" json:"reference,omitempty"`
	Notes     string          `gorm:"type:text" json:"notes,omitempty"`
	PaidAt    time.Time       `gorm:"not null" json:"paid_at"`
	CreatedAt time.Time       `gorm:"not null" json:"created_at"`
}

func (Payment) TableName() string { return "payments" }

// Sum adds up payment amounts.
func Sum(payments []Payment) decimal.Decimal {
	total := decimal.Zero
	for _, p := range payments {
		total = total.Add(p.Amount)
	}
	return total
}
