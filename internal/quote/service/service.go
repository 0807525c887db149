package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/quotebook/internal/audit/domain"
	clientdomain "github.com/smallbiznis/quotebook/internal/client/domain"
	"github.com/smallbiznis/quotebook/internal/clock"
	"github.com/smallbiznis/quotebook/internal/config"
	docdomain "github.com/smallbiznis/quotebook/internal/document/domain"
	"github.com/smallbiznis/quotebook/internal/observability/metrics"
	"github.com/smallbiznis/quotebook/internal/observability/tracing"
	"github.com/smallbiznis/quotebook/internal/quote/domain"
	seqdomain "github.com/smallbiznis/quotebook/internal/sequence/domain"
	"github.com/smallbiznis/quotebook/pkg/db"
	"github.com/smallbiznis/quotebook/pkg/db/pagination"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const tracerName = "quotebook/quote"

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Billing    config.BillingProvider
	Repo       domain.Repository
	ItemRepo   docdomain.ItemRepository
	ClientRepo clientdomain.Repository
	Sequence   seqdomain.Generator
	Policy     docdomain.TransitionPolicy
	AuditSvc   auditdomain.Service `optional:"true"`
	Metrics    *metrics.Metrics    `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	billing    config.BillingProvider
	repo       domain.Repository
	itemRepo   docdomain.ItemRepository
	clientRepo clientdomain.Repository
	sequence   seqdomain.Generator
	policy     docdomain.TransitionPolicy
	auditSvc   auditdomain.Service
	metrics    *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("quote.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		billing:    p.Billing,
		repo:       p.Repo,
		itemRepo:   p.ItemRepo,
		clientRepo: p.ClientRepo,
		sequence:   p.Sequence,
		policy:     p.Policy,
		auditSvc:   p.AuditSvc,
		metrics:    p.Metrics,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateQuoteRequest) (_ domain.Quote, err error) {
	ctx, span := tracing.Start(ctx, tracerName, "quote.create")
	defer func() { tracing.End(span, err) }()

	if req.ClientID == 0 {
		return domain.Quote{}, docdomain.ErrInvalidClient
	}

	status := req.Status
	if status == "" {
		status = domain.StatusDraft
	}
	if status != domain.StatusDraft && status != domain.StatusSent {
		return domain.Quote{}, docdomain.ErrInvalidInitialStatus
	}

	cfg := s.billing.Get()
	taxRate := cfg.TaxRate()
	if req.TaxRate != nil {
		taxRate = *req.TaxRate
	}

	items := docdomain.NormalizeItems(req.Items)
	totals, lineTotals, err := docdomain.Price(items, taxRate, req.Discount)
	if err != nil {
		return domain.Quote{}, err
	}

	now := s.clock.Now()
	quote := domain.Quote{
		ClientID:   req.ClientID,
		JobID:      req.JobID,
		Status:     status,
		Totals:     totals,
		ValidUntil: utcPtr(req.ValidUntil),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	applyOptions(&quote, req.Options)
	if status == domain.StatusSent {
		quote.SentAt = &now
	}

	err = db.Transact(ctx, s.db, cfg.Attempts(), func(tx *gorm.DB) error {
		client, err := s.clientRepo.FindByID(ctx, tx, req.ClientID)
		if err != nil {
			return err
		}
		if client == nil {
			return docdomain.ErrUnknownClient
		}

		number, err := s.sequence.Next(ctx, tx, docdomain.KindQuote)
		if err != nil {
			return err
		}

		quote.ID = s.genID.Generate()
		quote.Number = number.Formatted
		quote.Version = 1
		quote.Items = docdomain.NewLineItems(docdomain.KindQuote, quote.ID, items, lineTotals, s.genID, now)

		if err := s.repo.Insert(ctx, tx, &quote); err != nil {
			return err
		}
		return s.itemRepo.InsertItems(ctx, tx, quote.Items)
	})
	if err != nil {
		return domain.Quote{}, docdomain.Persistence("quote.create", err)
	}

	s.metrics.DocumentCreated(string(docdomain.KindQuote))
	s.emitAudit(ctx, "quote.created", quote.ID, map[string]any{
		"number":    quote.Number,
		"client_id": quote.ClientID.String(),
		"total":     quote.Total.String(),
	})
	s.log.Info("quote created",
		zap.String("quote_id", quote.ID.String()),
		zap.String("number", quote.Number),
		zap.String("total", quote.Total.String()),
	)

	quote.Present(now, s.billing.Get().Currency)
	return quote, nil
}

func (s *Service) Update(ctx context.Context, id snowflake.ID, req domain.UpdateQuoteRequest) (_ domain.Quote, err error) {
	ctx, span := tracing.Start(ctx, tracerName, "quote.update", attribute.String("quote_id", id.String()))
	defer func() { tracing.End(span, err) }()

	if id == 0 {
		return domain.Quote{}, docdomain.ErrInvalidID
	}
	if req.Items != nil && len(req.Items) == 0 {
		return domain.Quote{}, docdomain.ErrEmptyItems
	}

	var quote domain.Quote
	err = db.Transact(ctx, s.db, s.billing.Get().Attempts(), func(tx *gorm.DB) error {
		current, err := s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrNotFound
		}
		quote = *current

		items := docdomain.NormalizeItems(req.Items)
		if req.Items == nil {
			rows, err := s.itemRepo.ListItems(ctx, tx, docdomain.KindQuote, id)
			if err != nil {
				return err
			}
			items = docdomain.ItemInputs(rows)
			quote.Items = rows
		}

		totals, lineTotals, err := docdomain.Reprice(quote.Totals, items, req.TaxRate, req.Discount, req.ClearDiscount)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		quote.Totals = totals
		if req.ValidUntil != nil {
			quote.ValidUntil = utcPtr(req.ValidUntil)
		}
		applyOptions(&quote, req.Options)
		quote.UpdatedAt = now

		if req.Items != nil {
			quote.Items = docdomain.NewLineItems(docdomain.KindQuote, id, items, lineTotals, s.genID, now)
			if err := s.itemRepo.ReplaceItems(ctx, tx, docdomain.KindQuote, id, quote.Items); err != nil {
				return err
			}
		}

		return s.save(ctx, tx, &quote, current.Version, "quote.update")
	})
	if err != nil {
		return domain.Quote{}, docdomain.Persistence("quote.update", err)
	}

	s.emitAudit(ctx, "quote.updated", quote.ID, map[string]any{"total": quote.Total.String()})
	s.log.Info("quote updated", zap.String("quote_id", quote.ID.String()), zap.String("total", quote.Total.String()))

	quote.Present(s.clock.Now(), s.billing.Get().Currency)
	return quote, nil
}

func (s *Service) SetStatus(ctx context.Context, id snowflake.ID, status domain.Status) (_ domain.Quote, err error) {
	ctx, span := tracing.Start(ctx, tracerName, "quote.set_status",
		attribute.String("quote_id", id.String()),
		attribute.String("status", string(status)),
	)
	defer func() { tracing.End(span, err) }()

	if id == 0 {
		return domain.Quote{}, docdomain.ErrInvalidID
	}
	if !status.Valid() {
		return domain.Quote{}, docdomain.ErrInvalidStatus
	}

	var (
		quote domain.Quote
		from  domain.Status
	)
	err = db.Transact(ctx, s.db, s.billing.Get().Attempts(), func(tx *gorm.DB) error {
		current, err := s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrNotFound
		}
		quote = *current
		from = current.Status

		if err := s.policy.Allow(docdomain.KindQuote, string(from), string(status)); err != nil {
			return err
		}

		now := s.clock.Now()
		switch status {
		case domain.StatusSent:
			quote.SentAt = &now
		case domain.StatusViewed:
			quote.ViewedAt = &now
		}
		quote.Status = status
		quote.UpdatedAt = now
		return s.save(ctx, tx, &quote, current.Version, "quote.set_status")
	})
	if err != nil {
		return domain.Quote{}, docdomain.Persistence("quote.set_status", err)
	}

	s.emitAudit(ctx, "quote.status_changed", quote.ID, map[string]any{
		"from": string(from),
		"to":   string(quote.Status),
	})
	s.log.Info("quote status changed",
		zap.String("quote_id", quote.ID.String()),
		zap.String("from", string(from)),
		zap.String("to", string(quote.Status)),
	)

	quote.Present(s.clock.Now(), s.billing.Get().Currency)
	return quote, nil
}

func (s *Service) Remove(ctx context.Context, id snowflake.ID) (err error) {
	ctx, span := tracing.Start(ctx, tracerName, "quote.remove", attribute.String("quote_id", id.String()))
	defer func() { tracing.End(span, err) }()

	if id == 0 {
		return docdomain.ErrInvalidID
	}

	var removedItems int64
	err = db.Transact(ctx, s.db, s.billing.Get().Attempts(), func(tx *gorm.DB) error {
		current, err := s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrNotFound
		}

		if removedItems, err = s.itemRepo.DeleteItems(ctx, tx, docdomain.KindQuote, id); err != nil {
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
		return docdomain.Persistence("quote.remove", err)
	}

	s.emitAudit(ctx, "quote.deleted", id, map[string]any{"items": removedItems})
	s.log.Info("quote removed", zap.String("quote_id", id.String()), zap.Int64("items", removedItems))
	return nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (domain.Quote, error) {
	if id == 0 {
		return domain.Quote{}, docdomain.ErrInvalidID
	}

	item, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Quote{}, docdomain.Persistence("quote.get", err)
	}
	if item == nil {
		return domain.Quote{}, domain.ErrNotFound
	}
	quote := *item

	if quote.Items, err = s.itemRepo.ListItems(ctx, s.db, docdomain.KindQuote, id); err != nil {
		return domain.Quote{}, docdomain.Persistence("quote.get", err)
	}
	if quote.Client, err = s.clientRepo.FindByID(ctx, s.db, quote.ClientID); err != nil {
		return domain.Quote{}, docdomain.Persistence("quote.get", err)
	}

	quote.Present(s.clock.Now(), s.billing.Get().Currency)
	return quote, nil
}

func (s *Service) List(ctx context.Context, req domain.ListQuoteRequest) (domain.ListQuoteResponse, error) {
	if req.Status != "" && !req.Status.Valid() {
		return domain.ListQuoteResponse{}, docdomain.ErrInvalidStatus
	}

	page := pagination.Pagination{PageToken: req.PageToken, PageSize: req.PageSize}
	cursor, err := pagination.DecodeCursor(page.PageToken)
	if err != nil {
		return domain.ListQuoteResponse{}, &docdomain.Error{Kind: docdomain.ErrInvalidInput, Code: err.Error(), Field: "page_token"}
	}

	limit := page.Limit()
	items, err := s.repo.List(ctx, s.db, domain.ListQuoteFilter{Status: req.Status, ClientID: req.ClientID}, cursor, limit)
	if err != nil {
		return domain.ListQuoteResponse{}, docdomain.Persistence("quote.list", err)
	}

	quotes, pageInfo, err := pagination.BuildCursorPage(items, limit, func(q domain.Quote) pagination.Cursor {
		return pagination.Cursor{ID: int64(q.ID), CreatedAt: q.CreatedAt}
	})
	if err != nil {
		return domain.ListQuoteResponse{}, docdomain.Persistence("quote.list", err)
	}

	if err := s.enrich(ctx, quotes); err != nil {
		return domain.ListQuoteResponse{}, docdomain.Persistence("quote.list", err)
	}

	return domain.ListQuoteResponse{PageInfo: pageInfo, Quotes: quotes}, nil
}

func (s *Service) enrich(ctx context.Context, quotes []domain.Quote) error {
	if len(quotes) == 0 {
		return nil
	}

	ids := make([]snowflake.ID, len(quotes))
	clientIDs := make([]snowflake.ID, len(quotes))
	for i, q := range quotes {
		ids[i] = q.ID
		clientIDs[i] = q.ClientID
	}

	itemsByDoc, err := s.itemRepo.ListItemsFor(ctx, s.db, docdomain.KindQuote, ids)
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
	for i := range quotes {
		quotes[i].Items = itemsByDoc[quotes[i].ID]
		if c, ok := byID[quotes[i].ClientID]; ok {
			client := c
			quotes[i].Client = &client
		}
		quotes[i].Present(now, s.billing.Get().Currency)
	}
	return nil
}

func (s *Service) save(ctx context.Context, tx *gorm.DB, quote *domain.Quote, version int64, op string) error {
	err := s.repo.Update(ctx, tx, quote, version)
	if errors.Is(err, db.ErrConflict) {
		s.metrics.WriteConflict(op)
	}
	return err
}

func (s *Service) emitAudit(ctx context.Context, action string, id snowflake.ID, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	if err := s.auditSvc.AuditLog(ctx, action, "quote", id.String(), metadata); err != nil {
		s.log.Warn("audit log failed", zap.String("action", action), zap.String("quote_id", id.String()), zap.Error(err))
	}
}

func applyOptions(quote *domain.Quote, opts docdomain.Options) {
	if opts.Notes != nil {
		quote.Notes = strings.TrimSpace(*opts.Notes)
	}
	if opts.InternalNotes != nil {
		quote.InternalNotes = strings.TrimSpace(*opts.InternalNotes)
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
