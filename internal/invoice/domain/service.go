package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	docdomain "github.com/smallbiznis/quotebook/internal/document/domain"
	"github.com/smallbiznis/quotebook/pkg/db/pagination"
)

type CreateInvoiceRequest struct {
	ClientID snowflake.ID             `json:"client_id"`
	JobID    *snowflake.ID            `json:"job_id,omitempty"`
	QuoteID  *snowflake.ID            `json:"quote_id,omitempty"`
	Items    []docdomain.ItemInput    `json:"items"`
	TaxRate  *decimal.Decimal         `json:"tax_rate,omitempty"`
	Discount *docdomain.DiscountInput `json:"discount,omitempty"`
	DueDate  *time.Time               `json:"due_date,omitempty"`
	Status   Status                   `json:"status,omitempty"`
	docdomain.Options
}

// UpdateInvoiceRequest carries only the fields to change. Nil Items keeps the
// current line items; ClearDiscount removes any discount.
type UpdateInvoiceRequest struct {
	Items         []docdomain.ItemInput    `json:"items,omitempty"`
	TaxRate       *decimal.Decimal         `json:"tax_rate,omitempty"`
	Discount      *docdomain.DiscountInput `json:"discount,omitempty"`
	ClearDiscount bool                     `json:"clear_discount,omitempty"`
	DueDate       *time.Time               `json:"due_date,omitempty"`
	docdomain.Options
}

type ListInvoiceRequest struct {
	Status    Status
	ClientID  snowflake.ID
	QuoteID   snowflake.ID
	PageToken string
	PageSize  int
}

type ListInvoiceFilter struct {
	Status   Status
	ClientID snowflake.ID
	QuoteID  snowflake.ID
}

type ListInvoiceResponse struct {
	pagination.PageInfo
	Invoices []Invoice `json:"invoices"`
}

type Service interface {
	Create(context.Context, CreateInvoiceRequest) (Invoice, error)
	Update(ctx context.Context, id snowflake.ID, req UpdateInvoiceRequest) (Invoice, error)
	SetStatus(ctx context.Context, id snowflake.ID, status Status) (Invoice, error)
	Remove(ctx context.Context, id snowflake.ID) error
	// GetByID returns the invoice with its items, payments and client.
	GetByID(ctx context.Context, id snowflake.ID) (Invoice, error)
	List(context.Context, ListInvoiceRequest) (ListInvoiceResponse, error)
}

var ErrNotFound = docdomain.NotFound("invoice_not_found")
