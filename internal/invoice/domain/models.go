// Package domain contains the invoice aggregate and its service contract.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	clientdomain "github.com/smallbiznis/quotebook/internal/client/domain"
	docdomain "github.com/smallbiznis/quotebook/internal/document/domain"
	"github.com/smallbiznis/quotebook/internal/document/format"
	paymentdomain "github.com/smallbiznis/quotebook/internal/payment/domain"
)

// Status represents invoice lifecycle states.
type Status string

const (
	StatusDraft         Status = "draft"
	StatusSent          Status = "sent"
	StatusViewed        Status = "viewed"
	StatusPaid          Status = "paid"
	StatusPartiallyPaid Status = "partially_paid"
	StatusOverdue       Status = "overdue"
	StatusCancelled     Status = "cancelled"
)

var Statuses = []Status{
	StatusDraft,
	StatusSent,
	StatusViewed,
	StatusPaid,
	StatusPartiallyPaid,
	StatusOverdue,
	StatusCancelled,
}

func (s Status) Valid() bool {
	for _, status := range Statuses {
		if s == status {
			return true
		}
	}
	return false
}

// Open reports whether an invoice in this status still expects payment.
func (s Status) Open() bool {
	switch s {
	case StatusSent, StatusViewed, StatusPartiallyPaid, StatusOverdue:
		return true
	default:
		return false
	}
}

type Invoice struct {
	ID       snowflake.ID  `gorm:"primaryKey" json:"id"`
	Number   string        `gorm:"type:varchar(64);not null;uniqueIndex" json:"number"`
	ClientID snowflake.ID  `gorm:"not null;index" json:"client_id"`
	JobID    *snowflake.ID `gorm:"index" json:"job_id,omitempty"`
	QuoteID  *snowflake.ID `gorm:"index" json:"quote_id,omitempty"`
	Status   Status        `gorm:"type:varchar(32);not null;index" json:"status"`

	docdomain.Totals `gorm:"embedded"`
	AmountPaid       decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"amount_paid"`
	AmountDue        decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"amount_due"`

	IssuedAt      time.Time  `gorm:"not null" json:"issued_at"`
	DueDate       *time.Time `json:"due_date,omitempty"`
	SentAt        *time.Time `json:"sent_at,omitempty"`
	ViewedAt      *time.Time `json:"viewed_at,omitempty"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
	Notes         string     `gorm:"type:text" json:"notes,omitempty"`
	InternalNotes string     `gorm:"type:text" json:"internal_notes,omitempty"`
	Version       int64      `gorm:"not null;default:1" json:"version"`
	CreatedAt     time.Time  `gorm:"not null;index" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"not null" json:"updated_at"`

	Items           []docdomain.LineItem    `gorm:"-" json:"items,omitempty"`
	Payments        []paymentdomain.Payment `gorm:"-" json:"payments,omitempty"`
	Client          *clientdomain.Client    `gorm:"-" json:"client,omitempty"`
	EffectiveStatus Status                  `gorm:"-" json:"effective_status,omitempty"`
	Formatted       *format.Amounts         `gorm:"-" json:"formatted,omitempty"`
}

func (Invoice) TableName() string { return "invoices" }

// StatusAt evaluates the status a reader should see at now: an open invoice
// past its due date reads as overdue. The stored status is not changed.
func (inv Invoice) StatusAt(now time.Time) Status {
	if inv.Status.Open() && inv.DueDate != nil && now.After(*inv.DueDate) {
		return StatusOverdue
	}
	return inv.Status
}

// Present fills the read-only fields a caller sees at now.
func (inv *Invoice) Present(now time.Time, currency string) {
	inv.EffectiveStatus = inv.StatusAt(now)
	inv.Formatted = format.InvoiceTotals(inv.Totals, inv.AmountPaid, inv.AmountDue, currency)
}

// Balance returns max(0, total - paid).
func Balance(total, paid decimal.Decimal) decimal.Decimal {
	due := total.Sub(paid)
	if due.IsNegative() {
		return decimal.Zero
	}
	return due
}
