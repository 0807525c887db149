package service

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/quotebook/internal/audit/domain"
	"github.com/smallbiznis/quotebook/internal/clock"
	"github.com/smallbiznis/quotebook/internal/config"
	"github.com/smallbiznis/quotebook/internal/conversion/domain"
	docdomain "github.com/smallbiznis/quotebook/internal/document/domain"
	invoicedomain "github.com/smallbiznis/quotebook/internal/invoice/domain"
	"github.com/smallbiznis/quotebook/internal/observability/metrics"
	"github.com/smallbiznis/quotebook/internal/observability/tracing"
	quotedomain "github.com/smallbiznis/quotebook/internal/quote/domain"
	seqdomain "github.com/smallbiznis/quotebook/internal/sequence/domain"
	"github.com/smallbiznis/quotebook/pkg/db"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Billing     config.BillingProvider
	QuoteRepo   quotedomain.Repository
	InvoiceRepo invoicedomain.Repository
	ItemRepo    docdomain.ItemRepository
	Sequence    seqdomain.Generator
	Policy      docdomain.TransitionPolicy
	AuditSvc    auditdomain.Service `optional:"true"`
	Metrics     *metrics.Metrics    `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	billing     config.BillingProvider
	quoteRepo   quotedomain.Repository
	invoiceRepo invoicedomain.Repository
	itemRepo    docdomain.ItemRepository
	sequence    seqdomain.Generator
	policy      docdomain.TransitionPolicy
	auditSvc    auditdomain.Service
	metrics     *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("conversion.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		billing:     p.Billing,
		quoteRepo:   p.QuoteRepo,
		invoiceRepo: p.InvoiceRepo,
		itemRepo:    p.ItemRepo,
		sequence:    p.Sequence,
		policy:      p.Policy,
		auditSvc:    p.AuditSvc,
		metrics:     p.Metrics,
	}
}

func (s *Service) ConvertToInvoice(ctx context.Context, req domain.ConvertRequest) (_ invoicedomain.Invoice, err error) {
	ctx, span := tracing.Start(ctx, "quotebook/conversion", "quote.convert", attribute.String("quote_id", req.QuoteID.String()))
	defer func() { tracing.End(span, err) }()

	if req.QuoteID == 0 {
		return invoicedomain.Invoice{}, docdomain.ErrInvalidID
	}

	var (
		invoice invoicedomain.Invoice
		from    quotedomain.Status
	)
	err = db.Transact(ctx, s.db, s.billing.Get().Attempts(), func(tx *gorm.DB) error {
		quote, err := s.quoteRepo.FindByID(ctx, tx, req.QuoteID)
		if err != nil {
			return err
		}
		if quote == nil {
			return quotedomain.ErrNotFound
		}
		from = quote.Status

		if err := s.policy.Allow(docdomain.KindQuote, string(quote.Status), string(quotedomain.StatusAccepted)); err != nil {
			return err
		}

		rows, err := s.itemRepo.ListItems(ctx, tx, docdomain.KindQuote, quote.ID)
		if err != nil {
			return err
		}

		number, err := s.sequence.Next(ctx, tx, docdomain.KindInvoice)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		quoteID := quote.ID
		invoice = invoicedomain.Invoice{
			ID:         s.genID.Generate(),
			Number:     number.Formatted,
			ClientID:   quote.ClientID,
			JobID:      quote.JobID,
			QuoteID:    &quoteID,
			Status:     invoicedomain.StatusDraft,
			Totals:     quote.Totals,
			AmountPaid: decimal.Zero,
			AmountDue:  quote.Total,
			IssuedAt:   now,
			Notes:      quote.Notes,
			Version:    1,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if req.DueDate != nil {
			due := req.DueDate.UTC()
			invoice.DueDate = &due
		}
		invoice.Items = docdomain.SnapshotItems(rows, docdomain.KindInvoice, invoice.ID, s.genID, now)

		if err := s.invoiceRepo.Insert(ctx, tx, &invoice); err != nil {
			return err
		}
		if err := s.itemRepo.InsertItems(ctx, tx, invoice.Items); err != nil {
			return err
		}

		quote.Status = quotedomain.StatusAccepted
		quote.UpdatedAt = now
		if err := s.quoteRepo.Update(ctx, tx, quote, quote.Version); err != nil {
			if errors.Is(err, db.ErrConflict) {
				s.metrics.WriteConflict("quote.convert")
			}
			return err
		}
		return nil
	})
	if err != nil {
		return invoicedomain.Invoice{}, docdomain.Persistence("quote.convert", err)
	}

	s.metrics.Conversion()
	s.metrics.DocumentCreated(string(docdomain.KindInvoice))
	s.emitAudit(ctx, req.QuoteID, invoice, from)
	s.log.Info("quote converted",
		zap.String("quote_id", req.QuoteID.String()),
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("number", invoice.Number),
		zap.String("total", invoice.Total.String()),
	)

	invoice.Present(s.clock.Now(), s.billing.Get().Currency)
	return invoice, nil
}

func (s *Service) emitAudit(ctx context.Context, quoteID snowflake.ID, invoice invoicedomain.Invoice, from quotedomain.Status) {
	if s.auditSvc == nil {
		return
	}
	if err := s.auditSvc.AuditLog(ctx, "quote.converted", "quote", quoteID.String(), map[string]any{
		"invoice_id":     invoice.ID.String(),
		"invoice_number": invoice.Number,
		"from":           string(from),
		"total":          invoice.Total.String(),
	}); err != nil {
		s.log.Warn("audit log failed", zap.String("action", "quote.converted"), zap.Error(err))
	}
}
