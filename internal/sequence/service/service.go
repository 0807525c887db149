package service

import (
	"context"

	"github.com/smallbiznis/quotebook/internal/clock"
	"github.com/smallbiznis/quotebook/internal/config"
	docdomain "github.com/smallbiznis/quotebook/internal/document/domain"
	"github.com/smallbiznis/quotebook/internal/observability/metrics"
	"github.com/smallbiznis/quotebook/internal/sequence/domain"
	"github.com/smallbiznis/quotebook/internal/sequence/format"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Log     *zap.Logger
	Clock   clock.Clock
	Billing config.BillingProvider
	Repo    domain.Repository
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	log     *zap.Logger
	clock   clock.Clock
	billing config.BillingProvider
	repo    domain.Repository
	metrics *metrics.Metrics
}

func New(p Params) domain.Generator {
	return &Service{
		log:     p.Log.Named("sequence.service"),
		clock:   p.Clock,
		billing: p.Billing,
		repo:    p.Repo,
		metrics: p.Metrics,
	}
}

// Next allocates the next value for kind. The read and the increment both run
// on tx; a compare-and-swap guards the increment so two callers can never
// write the same value. When the counter keeps moving the error is a write
// conflict, which db.Transact retries with a new transaction.
func (s *Service) Next(ctx context.Context, tx *gorm.DB, kind docdomain.Kind) (domain.Number, error) {
	if !kind.Valid() {
		return domain.Number{}, docdomain.ErrInvalidInput
	}

	cfg := s.billing.Get()
	template := cfg.InvoiceNumberTemplate
	if kind == docdomain.KindQuote {
		template = cfg.QuoteNumberTemplate
	}

	attempts := cfg.Attempts()
	for attempt := 1; attempt <= attempts; attempt++ {
		now := s.clock.Now()
		value, err := s.allocate(ctx, tx, string(kind), cfg.SequenceStart)
		if err != nil {
			return domain.Number{}, docdomain.Persistence("sequence.next", err)
		}
		if value == 0 {
			s.metrics.WriteConflict("sequence")
			s.log.Debug("counter moved, retrying", zap.String("kind", string(kind)), zap.Int("attempt", attempt))
			continue
		}

		formatted, err := format.FormatNumber(template, now, value)
		if err != nil {
			return domain.Number{}, docdomain.Persistence("sequence.format", err)
		}
		return domain.Number{Value: value, Formatted: formatted}, nil
	}

	s.log.Warn("counter allocation exhausted", zap.String("kind", string(kind)), zap.Int("attempts", attempts))
	return domain.Number{}, &domain.ContentionError{Kind: kind, Attempts: attempts}
}

// allocate returns the claimed value, or 0 when another caller got there first.
func (s *Service) allocate(ctx context.Context, tx *gorm.DB, kind string, start int64) (int64, error) {
	now := s.clock.Now()

	current, ok, err := s.repo.Current(ctx, tx, kind)
	if err != nil {
		return 0, err
	}
	if !ok {
		created, err := s.repo.Init(ctx, tx, kind, start, now)
		if err != nil || !created {
			return 0, err
		}
		return start, nil
	}

	next := current + 1
	swapped, err := s.repo.CompareAndSwap(ctx, tx, kind, current, next, now)
	if err != nil || !swapped {
		return 0, err
	}
	return next, nil
}
