package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/quotebook/internal/audit/domain"
	clientdomain "github.com/smallbiznis/quotebook/internal/client/domain"
	"github.com/smallbiznis/quotebook/internal/clock"
	"github.com/smallbiznis/quotebook/internal/config"
	docdomain "github.com/smallbiznis/quotebook/internal/document/domain"
	"github.com/smallbiznis/quotebook/internal/invoice/domain"
	"github.com/smallbiznis/quotebook/internal/observability/metrics"
	"github.com/smallbiznis/quotebook/internal/observability/tracing"
	paymentdomain "github.com/smallbiznis/quotebook/internal/payment/domain"
	seqdomain "github.com/smallbiznis/quotebook/internal/sequence/domain"
	"github.com/smallbiznis/quotebook/pkg/db"
	"github.com/smallbiznis/quotebook/pkg/db/pagination"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const tracerName = "quotebook/invoice"

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Billing     config.BillingProvider
	Repo        domain.Repository
	ItemRepo    docdomain.ItemRepository
	ClientRepo  clientdomain.Repository
	PaymentRepo paymentdomain.Repository
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
	repo        domain.Repository
	itemRepo    docdomain.ItemRepository
	clientRepo  clientdomain.Repository
	paymentRepo paymentdomain.Repository
	sequence    seqdomain.Generator
	policy      docdomain.TransitionPolicy
	auditSvc    auditdomain.Service
	metrics     *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("invoice.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		billing:     p.Billing,
		repo:        p.Repo,
		itemRepo:    p.ItemRepo,
		clientRepo:  p.ClientRepo,
		paymentRepo: p.PaymentRepo,
		sequence:    p.Sequence,
		policy:      p.Policy,
		auditSvc:    p.AuditSvc,
		metrics:     p.Metrics,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateInvoiceRequest) (_ domain.Invoice, err error) {
	ctx, span := tracing.Start(ctx, tracerName, "invoice.create")
	defer func() { tracing.End(span, err) }()

	if req.ClientID == 0 {
		return domain.Invoice{}, docdomain.ErrInvalidClient
	}

	status := req.Status
	if status == "" {
		status = domain.StatusDraft
	}
	if status != domain.StatusDraft && status != domain.StatusSent {
		return domain.Invoice{}, docdomain.ErrInvalidInitialStatus
	}

	cfg := s.billing.Get()
	taxRate := cfg.TaxRate()
	if req.TaxRate != nil {
		taxRate = *req.TaxRate
	}

	items := docdomain.NormalizeItems(req.Items)
	totals, lineTotals, err := docdomain.Price(items, taxRate, req.Discount)
	if err != nil {
		return domain.Invoice{}, err
	}

	now := s.clock.Now()
	invoice := domain.Invoice{
		ClientID:   req.ClientID,
		JobID:      req.JobID,
		QuoteID:    req.QuoteID,
		Status:     status,
		Totals:     totals,
		AmountPaid: decimal.Zero,
		AmountDue:  totals.Total,
		IssuedAt:   now,
		DueDate:    utcPtr(req.DueDate),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	applyOptions(&invoice, req.Options)
	if status == domain.StatusSent {
		invoice.SentAt = &now
	}

	err = db.Transact(ctx, s.db, cfg.Attempts(), func(tx *gorm.DB) error {
		client, err := s.clientRepo.FindByID(ctx, tx, req.ClientID)
		if err != nil {
			return err
		}
		if client == nil {
			return docdomain.ErrUnknownClient
		}

		number, err := s.sequence.Next(ctx, tx, docdomain.KindInvoice)
		if err != nil {
			return err
		}

		invoice.ID = s.genID.Generate()
		invoice.Number = number.Formatted
		invoice.Version = 1
		invoice.Items = docdomain.NewLineItems(docdomain.KindInvoice, invoice.ID, items, lineTotals, s.genID, now)

		if err := s.repo.Insert(ctx, tx, &invoice); err != nil {
			return err
		}
		return s.itemRepo.InsertItems(ctx, tx, invoice.Items)
	})
	if err != nil {
		return domain.Invoice{}, docdomain.Persistence("invoice.create", err)
	}

	s.metrics.DocumentCreated(string(docdomain.KindInvoice))
	s.emitAudit(ctx, "invoice.created", invoice.ID, map[string]any{
		"number":    invoice.Number,
		"client_id": invoice.ClientID.String(),
		"total":     invoice.Total.String(),
		"status":    string(invoice.Status),
	})
	s.log.Info("invoice created",
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("number", invoice.Number),
		zap.String("total", invoice.Total.String()),
	)

	invoice.Present(now, s.billing.Get().Currency)
	return invoice, nil
}

func (s *Service) Update(ctx context.Context, id snowflake.ID, req domain.UpdateInvoiceRequest) (_ domain.Invoice, err error) {
	ctx, span := tracing.Start(ctx, tracerName, "invoice.update", attribute.String("invoice_id", id.String()))
	defer func() { tracing.End(span, err) }()

	if id == 0 {
		return domain.Invoice{}, docdomain.ErrInvalidID
	}
	if req.Items != nil && len(req.Items) == 0 {
		return domain.Invoice{}, docdomain.ErrEmptyItems
	}

	var invoice domain.Invoice
	err = db.Transact(ctx, s.db, s.billing.Get().Attempts(), func(tx *gorm.DB) error {
		current, err := s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrNotFound
		}
		invoice = *current

		items := docdomain.NormalizeItems(req.Items)
		if req.Items == nil {
			rows, err := s.itemRepo.ListItems(ctx, tx, docdomain.KindInvoice, id)
			if err != nil {
				return err
			}
			items = docdomain.ItemInputs(rows)
			invoice.Items = rows
		}

		totals, lineTotals, err := docdomain.Reprice(invoice.Totals, items, req.TaxRate, req.Discount, req.ClearDiscount)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		invoice.Totals = totals
		invoice.AmountDue = domain.Balance(totals.Total, invoice.AmountPaid)
		if req.DueDate != nil {
			invoice.DueDate = utcPtr(req.DueDate)
		}
		applyOptions(&invoice, req.Options)
		invoice.UpdatedAt = now

		if req.Items != nil {
			invoice.Items = docdomain.NewLineItems(docdomain.KindInvoice, id, items, lineTotals, s.genID, now)
			if err := s.itemRepo.ReplaceItems(ctx, tx, docdomain.KindInvoice, id, invoice.Items); err != nil {
				return err
			}
		}

		return s.save(ctx, tx, &invoice, current.Version, "invoice.update")
	})
	if err != nil {
		return domain.Invoice{}, docdomain.Persistence("invoice.update", err)
	}

	s.emitAudit(ctx, "invoice.updated", invoice.ID, map[string]any{
		"total":      invoice.Total.String(),
		"amount_due": invoice.AmountDue.String(),
	})
	s.log.Info("invoice updated", zap.String("invoice_id", invoice.ID.String()), zap.String("total", invoice.Total.String()))

	invoice.Present(s.clock.Now(), s.billing.Get().Currency)
	return invoice, nil
}

func (s *Service) SetStatus(ctx context.Context, id snowflake.ID, status domain.Status) (_ domain.Invoice, err error) {
	ctx, span := tracing.Start(ctx, tracerName, "invoice.set_status",
		attribute.String("invoice_id", id.String()),
		attribute.String("status", string(status)),
	)
	defer func() { tracing.End(span, err) }()

	if id == 0 {
		return domain.Invoice{}, docdomain.ErrInvalidID
	}
	if !status.Valid() {
		return domain.Invoice{}, docdomain.ErrInvalidStatus
	}

	var (
		invoice domain.Invoice
		from    domain.Status
	)
	err = db.Transact(ctx, s.db, s.billing.Get().Attempts(), func(tx *gorm.DB) error {
		current, err := s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrNotFound
		}
		invoice = *current
		from = current.Status

		if err := s.policy.Allow(docdomain.KindInvoice, string(from), string(status)); err != nil {
			return err
		}

		now := s.clock.Now()
		stampStatus(&invoice, status, now)
		invoice.UpdatedAt = now
		return s.save(ctx, tx, &invoice, current.Version, "invoice.set_status")
	})
	if err != nil {
		return domain.Invoice{}, docdomain.Persistence("invoice.set_status", err)
	}

	s.emitAudit(ctx, "invoice.status_changed", invoice.ID, map[string]any{
		"from": string(from),
		"to":   string(invoice.Status),
	})
	s.log.Info("invoice status changed",
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("from", string(from)),
		zap.String("to", string(invoice.Status)),
	)

	invoice.Present(s.clock.Now(), s.billing.Get().Currency)
	return invoice, nil
}

func (s *Service) Remove(ctx context.Context, id snowflake.ID) (err error) {
	ctx, span := tracing.Start(ctx, tracerName, "invoice.remove", attribute.String("invoice_id", id.String()))
	defer func() { tracing.End(span, err) }()

	if id == 0 {
		return docdomain.ErrInvalidID
	}

	var removedItems, removedPayments int64
	err = db.Transact(ctx, s.db, s.billing.Get().Attempts(), func(tx *gorm.DB) error {
		current, err := s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrNotFound
		}

		if removedItems, err = s.itemRepo.DeleteItems(ctx, tx, docdomain.KindInvoice, id); err != nil {
			return err
		}
		if removedPayments, err = s.paymentRepo.DeleteByInvoice(ctx, tx, id); err != nil {
			return err
		}
		deleted, err := s.repo.Delete(ctx, tx, id)
		if err != nil {
			return err
		}
		if deleted == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return docdomain.Persistence("invoice.remove", err)
	}

	s.emitAudit(ctx, "invoice.deleted", id, map[string]any{
		"items":    removedItems,
		"payments": removedPayments,
	})
	s.log.Info("invoice removed",
		zap.String("invoice_id", id.String()),
		zap.Int64("items", removedItems),
		zap.Int64("payments", removedPayments),
	)
	return nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (domain.Invoice, error) {
	if id == 0 {
		return domain.Invoice{}, docdomain.ErrInvalidID
	}

	item, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Invoice{}, docdomain.Persistence("invoice.get", err)
	}
	if item == nil {
		return domain.Invoice{}, domain.ErrNotFound
	}
	invoice := *item

	if invoice.Items, err = s.itemRepo.ListItems(ctx, s.db, docdomain.KindInvoice, id); err != nil {
		return domain.Invoice{}, docdomain.Persistence("invoice.get", err)
	}
	if invoice.Payments, err = s.paymentRepo.ListByInvoice(ctx, s.db, id); err != nil {
		return domain.Invoice{}, docdomain.Persistence("invoice.get", err)
	}
	if invoice.Client, err = s.clientRepo.FindByID(ctx, s.db, invoice.ClientID); err != nil {
		return domain.Invoice{}, docdomain.Persistence("invoice.get", err)
	}

	invoice.Present(s.clock.Now(), s.billing.Get().Currency)
	return invoice, nil
}

func (s *Service) List(ctx context.Context, req domain.ListInvoiceRequest) (domain.ListInvoiceResponse, error) {
	if req.Status != "" && !req.Status.Valid() {
		return domain.ListInvoiceResponse{}, docdomain.ErrInvalidStatus
	}

	page := pagination.Pagination{PageToken: req.PageToken, PageSize: req.PageSize}
	cursor, err := pagination.DecodeCursor(page.PageToken)
	if err != nil {
		return domain.ListInvoiceResponse{}, &docdomain.Error{Kind: docdomain.ErrInvalidInput, Code: err.Error(), Field: "page_token"}
	}

	filter := domain.ListInvoiceFilter{
		Status:   req.Status,
		ClientID: req.ClientID,
		QuoteID:  req.QuoteID,
	}

	limit := page.Limit()
	items, err := s.repo.List(ctx, s.db, filter, cursor, limit)
	if err != nil {
		return domain.ListInvoiceResponse{}, docdomain.Persistence("invoice.list", err)
	}

	invoices, pageInfo, err := pagination.BuildCursorPage(items, limit, func(inv domain.Invoice) pagination.Cursor {
		return pagination.Cursor{ID: int64(inv.ID), CreatedAt: inv.CreatedAt}
	})
	if err != nil {
		return domain.ListInvoiceResponse{}, docdomain.Persistence("invoice.list", err)
	}

	if err := s.enrich(ctx, invoices); err != nil {
		return domain.ListInvoiceResponse{}, docdomain.Persistence("invoice.list", err)
	}

	return domain.ListInvoiceResponse{PageInfo: pageInfo, Invoices: invoices}, nil
}

func (s *Service) enrich(ctx context.Context, invoices []domain.Invoice) error {
	if len(invoices) == 0 {
		return nil
	}

	ids := make([]snowflake.ID, len(invoices))
	clientIDs := make([]snowflake.ID, 0, len(invoices))
	for i, inv := range invoices {
		ids[i] = inv.ID
		clientIDs = append(clientIDs, inv.ClientID)
	}

	itemsByDoc, err := s.itemRepo.ListItemsFor(ctx, s.db, docdomain.KindInvoice, ids)
	if err != nil {
		return err
	}
	clients, err := s.clientRepo.FindByIDs(ctx, s.db, clientIDs)
	if err != nil {
		return err
	}
	byID := make(map[snowflake.ID]clientdomain.Client, len(clients))
	for _, c := range clients {
		byID[c.ID] = c
	}

	now := s.clock.Now()
	for i := range invoices {
		invoices[i].Items = itemsByDoc[invoices[i].ID]
		if c, ok := byID[invoices[i].ClientID]; ok {
			client := c
			invoices[i].Client = &client
		}
		invoices[i].Present(now, s.billing.Get().Currency)
	}
	return nil
}

func (s *Service) save(ctx context.Context, tx *gorm.DB, invoice *domain.Invoice, version int64, op string) error {
	err := s.repo.Update(ctx, tx, invoice, version)
	if errors.Is(err, db.ErrConflict) {
		s.metrics.WriteConflict(op)
		s.log.Debug("invoice version moved, retrying", zap.String("invoice_id", invoice.ID.String()))
	}
	return err
}

func (s *Service) emitAudit(ctx context.Context, action string, id snowflake.ID, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	if err := s.auditSvc.AuditLog(ctx, action, "invoice", id.String(), metadata); err != nil {
		s.log.Warn("audit log failed", zap.String("action", action), zap.String("invoice_id", id.String()), zap.Error(err))
	}
}

// stampStatus writes status and the lifecycle timestamp that goes with it.
func stampStatus(invoice *domain.Invoice, status domain.Status, now time.Time) {
	if invoice.Status == domain.StatusPaid && status != domain.StatusPaid {
		invoice.PaidAt = nil
	}
	switch status {
	case domain.StatusSent:
		invoice.SentAt = &now
	case domain.StatusViewed:
		invoice.ViewedAt = &now
	case domain.StatusPaid:
		invoice.PaidAt = &now
	}
	invoice.Status = status
}

func applyOptions(invoice *domain.Invoice, opts docdomain.Options) {
	if opts.Notes != nil {
		invoice.Notes = strings.TrimSpace(*opts.Notes)
	}
	if opts.InternalNotes != nil {
		invoice.InternalNotes = strings.TrimSpace(*opts.InternalNotes)
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
