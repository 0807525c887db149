package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	billingoverview "github.com/smallbiznis/quotebook/internal/billingoverview/domain"
	"github.com/smallbiznis/quotebook/internal/clock"
	"github.com/smallbiznis/quotebook/internal/config"
	docdomain "github.com/smallbiznis/quotebook/internal/document/domain"
	invoicedomain "github.com/smallbiznis/quotebook/internal/invoice/domain"
	quotedomain "github.com/smallbiznis/quotebook/internal/quote/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Clock   clock.Clock
	Billing config.BillingProvider
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	clock   clock.Clock
	billing config.BillingProvider
}

func NewService(p Params) billingoverview.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("billingoverview.service"),
		clock:   p.Clock,
		billing: p.Billing,
	}
}

type quoteRow struct {
	Status     quotedomain.Status
	Total      decimal.Decimal
	ValidUntil *time.Time
}

type invoiceRow struct {
	Status     invoicedomain.Status
	Total      decimal.Decimal
	AmountPaid decimal.Decimal
	AmountDue  decimal.Decimal
	DueDate    *time.Time
}

func (s *Service) GetQuoteOverview(ctx context.Context, req billingoverview.OverviewRequest) (billingoverview.QuoteOverviewResponse, error) {
	var rows []quoteRow
	stmt := s.scope(ctx, "quotes", req).Select("status, total, valid_until")
	if err := stmt.Scan(&rows).Error; err != nil {
		return billingoverview.QuoteOverviewResponse{}, docdomain.Persistence("overview.quotes", err)
	}

	now := s.clock.Now()
	resp := billingoverview.QuoteOverviewResponse{
		Currency:      s.billing.Get().Currency,
		ByStatus:      emptyCounts(quoteStatuses()),
		PendingValue:  decimal.Zero,
		AcceptedValue: decimal.Zero,
		HasData:       len(rows) > 0,
	}
	for _, row := range rows {
		quote := quotedomain.Quote{Status: row.Status, ValidUntil: row.ValidUntil}
		effective := quote.StatusAt(now)

		resp.Total++
		resp.ByStatus[string(effective)]++
		switch effective {
		case quotedomain.StatusDraft:
			resp.DraftCount++
		case quotedomain.StatusSent, quotedomain.StatusViewed:
			resp.PendingValue = resp.PendingValue.Add(row.Total)
		case quotedomain.StatusAccepted:
			resp.AcceptedValue = resp.AcceptedValue.Add(row.Total)
		case quotedomain.StatusExpired:
			resp.ExpiredCount++
		}
	}
	return resp, nil
}

func (s *Service) GetInvoiceOverview(ctx context.Context, req billingoverview.OverviewRequest) (billingoverview.InvoiceOverviewResponse, error) {
	var rows []invoiceRow
	stmt := s.scope(ctx, "invoices", req).Select("status, total, amount_paid, amount_due, due_date")
	if err := stmt.Scan(&rows).Error; err != nil {
		return billingoverview.InvoiceOverviewResponse{}, docdomain.Persistence("overview.invoices", err)
	}

	now := s.clock.Now()
	resp := billingoverview.InvoiceOverviewResponse{
		Currency:         s.billing.Get().Currency,
		ByStatus:         emptyCounts(invoiceStatuses()),
		InvoicedValue:    decimal.Zero,
		OutstandingValue: decimal.Zero,
		OverdueValue:     decimal.Zero,
		PaidValue:        decimal.Zero,
		HasData:          len(rows) > 0,
	}
	for _, row := range rows {
		invoice := invoicedomain.Invoice{Status: row.Status, DueDate: row.DueDate}
		effective := invoice.StatusAt(now)

		resp.Total++
		resp.ByStatus[string(effective)]++
		resp.PaidValue = resp.PaidValue.Add(row.AmountPaid)

		if effective == invoicedomain.StatusDraft {
			resp.DraftCount++
		}
		if effective == invoicedomain.StatusCancelled || effective == invoicedomain.StatusDraft {
			continue
		}

		resp.InvoicedValue = resp.InvoicedValue.Add(row.Total)
		if effective.Open() {
			resp.OutstandingValue = resp.OutstandingValue.Add(row.AmountDue)
		}
		if effective == invoicedomain.StatusOverdue {
			resp.OverdueCount++
			resp.OverdueValue = resp.OverdueValue.Add(row.AmountDue)
		}
	}

	resp.CollectionRate = collectionRate(resp.PaidValue, resp.InvoicedValue)
	return resp, nil
}

func (s *Service) scope(ctx context.Context, table string, req billingoverview.OverviewRequest) *gorm.DB {
	stmt := s.db.WithContext(ctx).Table(table)
	start, end := normalizeRange(req)
	if !start.IsZero() {
		stmt = stmt.Where("created_at >= ?", start)
	}
	if !end.IsZero() {
		stmt = stmt.Where("created_at < ?", end)
	}
	if req.ClientID != 0 {
		stmt = stmt.Where("client_id = ?", req.ClientID)
	}
	return stmt
}

// normalizeRange truncates the bounds to whole UTC days, with end exclusive.
func normalizeRange(req billingoverview.OverviewRequest) (time.Time, time.Time) {
	var start, end time.Time
	if !req.Start.IsZero() {
		start = truncateToDay(req.Start.UTC())
	}
	if !req.End.IsZero() {
		end = truncateToDay(req.End.UTC()).AddDate(0, 0, 1)
	}
	return start, end
}

func truncateToDay(value time.Time) time.Time {
	return time.Date(value.Year(), value.Month(), value.Day(), 0, 0, 0, 0, time.UTC)
}

func collectionRate(collected, invoiced decimal.Decimal) *float64 {
	if !invoiced.IsPositive() {
		return nil
	}
	rate, _ := collected.Div(invoiced).Round(4).Float64()
	return &rate
}

func emptyCounts(statuses []string) map[string]int64 {
	out := make(map[string]int64, len(statuses))
	for _, status := range statuses {
		out[status] = 0
	}
	return out
}

func quoteStatuses() []string {
	out := make([]string, len(quotedomain.Statuses))
	for i, status := range quotedomain.Statuses {
		out[i] = string(status)
	}
	return out
}

func invoiceStatuses() []string {
	out := make([]string, len(invoicedomain.Statuses))
	for i, status := range invoicedomain.Statuses {
		out[i] = string(status)
	}
	return out
}
