// Package domain declares the quote to invoice conversion contract.
package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	invoicedomain "github.com/smallbiznis/quotebook/internal/invoice/domain"
)

type ConvertRequest struct {
	QuoteID snowflake.ID `json:"quote_id"`
	DueDate *time.Time   `json:"due_date,omitempty"`
}

type Service interface {
	// ConvertToInvoice creates a draft invoice from a quote's current totals
	// and items and marks the quote accepted, all in one transaction.
	ConvertToInvoice(context.Context, ConvertRequest) (invoicedomain.Invoice, error)
}
