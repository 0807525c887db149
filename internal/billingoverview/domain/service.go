package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// OverviewRequest narrows the scanned documents. Zero values mean no bound.
type OverviewRequest struct {
	Start    time.Time
	End      time.Time
	ClientID snowflake.ID
}

type QuoteOverviewResponse struct {
	Currency      string           `json:"currency"`
	Total         int64            `json:"total"`
	ByStatus      map[string]int64 `json:"by_status"`
	DraftCount    int64            `json:"draft_count"`
	PendingValue  decimal.Decimal  `json:"pending_value"`
	AcceptedValue decimal.Decimal  `json:"accepted_value"`
	ExpiredCount  int64            `json:"expired_count"`
	HasData       bool             `json:"has_data"`
}

type InvoiceOverviewResponse struct {
	Currency         string           `json:"currency"`
	Total            int64            `json:"total"`
	ByStatus         map[string]int64 `json:"by_status"`
	DraftCount       int64            `json:"draft_count"`
	InvoicedValue    decimal.Decimal  `json:"invoiced_value"`
	OutstandingValue decimal.Decimal  `json:"outstanding_value"`
	OverdueValue     decimal.Decimal  `json:"overdue_value"`
	OverdueCount     int64            `json:"overdue_count"`
	PaidValue        decimal.Decimal  `json:"paid_value"`
	CollectionRate   *float64         `json:"collection_rate,omitempty"`
	HasData          bool             `json:"has_data"`
}

// Service computes report aggregates by scanning documents on every call.
type Service interface {
	GetQuoteOverview(ctx context.Context, req OverviewRequest) (QuoteOverviewResponse, error)
	GetInvoiceOverview(ctx context.Context, req OverviewRequest) (InvoiceOverviewResponse, error)
}
