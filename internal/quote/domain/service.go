package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	docdomain "github.com/smallbiznis/quotebook/internal/document/domain"
	"github.com/smallbiznis/quotebook/pkg/db/pagination"
)

type CreateQuoteRequest struct {
	ClientID   snowflake.ID             `json:"client_id"`
	JobID      *snowflake.ID            `json:"job_id,omitempty"`
	Items      []docdomain.ItemInput    `json:"items"`
	TaxRate    *decimal.Decimal         `json:"tax_rate,omitempty"`
	Discount   *docdomain.DiscountInput `json:"discount,omitempty"`
	ValidUntil *time.Time               `json:"valid_until,omitempty"`
	Status     Status                   `json:"status,omitempty"`
	docdomain.Options
}

type UpdateQuoteRequest struct {
	Items         []docdomain.ItemInput    `json:"items,omitempty"`
	TaxRate       *decimal.Decimal         `json:"tax_rate,omitempty"`
	Discount      *docdomain.DiscountInput `json:"discount,omitempty"`
	ClearDiscount bool                     `json:"clear_discount,omitempty"`
	ValidUntil    *time.Time               `json:"valid_until,omitempty"`
	docdomain.Options
}

type ListQuoteRequest struct {
	Status    Status
	ClientID  snowflake.ID
	PageToken string
	PageSize  int
}

type ListQuoteFilter struct {
	Status   Status
	ClientID snowflake.ID
}

type ListQuoteResponse struct {
	pagination.PageInfo
	Quotes []Quote `json:"quotes"`
}

type Service interface {
	Create(context.Context, CreateQuoteRequest) (Quote, error)
	Update(ctx context.Context, id snowflake.ID, req UpdateQuoteRequest) (Quote, error)
	SetStatus(ctx context.Context, id snowflake.ID, status Status) (Quote, error)
	Remove(ctx context.Context, id snowflake.ID) error
	GetByID(ctx context.Context, id snowflake.ID) (Quote, error)
	List(context.Context, ListQuoteRequest) (ListQuoteResponse, error)
}

var ErrNotFound = docdomain.NotFound("quote_not_found")
