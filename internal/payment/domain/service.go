package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	docdomain "github.com/smallbiznis/quotebook/internal/document/domain"
)

type RecordPaymentRequest struct {
	InvoiceID snowflake.ID    `json:"invoice_id"`
	Amount    decimal.Decimal `json:"amount"`
	Method    Method          `json:"method"`
	Reference string          `json:"reference,omitempty"`
	Notes     string          `json:"notes,omitempty"`
	PaidAt    *time.Time      `json:"paid_at,omitempty"`
}

// RecordPaymentResult is the invoice balance after the payment committed.
type RecordPaymentResult struct {
	Payment    Payment         `json:"payment"`
	AmountPaid decimal.Decimal `json:"amount_paid"`
	AmountDue  decimal.Decimal `json:"amount_due"`
	Status     string          `json:"status"`
}

type Service interface {
	RecordPayment(context.Context, RecordPaymentRequest) (RecordPaymentResult, error)
	// ListByInvoice returns the invoice's payments newest first.
	ListByInvoice(ctx context.Context, invoiceID snowflake.ID) ([]Payment, error)
}

var (
	ErrInvalidAmount  = &docdomain.Error{Kind: docdomain.ErrInvalidInput, Code: "invalid_amount", Field: "amount"}
	ErrInvalidMethod  = &docdomain.Error{Kind: docdomain.ErrInvalidInput, Code: "invalid_method", Field: "method"}
	ErrExceedsBalance = &docdomain.Error{Kind: docdomain.ErrInvalidInput, Code: "payment_exceeds_balance", Field: "amount"}
	ErrInvoiceBusy    = &docdomain.Error{Kind: docdomain.ErrPersistence, Code: "invoice_locked"}
)
