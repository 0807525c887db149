package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/quotebook/internal/audit/domain"
	"github.com/smallbiznis/quotebook/internal/audit/masking"
	"github.com/smallbiznis/quotebook/internal/clock"
	"github.com/smallbiznis/quotebook/internal/config"
	docdomain "github.com/smallbiznis/quotebook/internal/document/domain"
	invoicedomain "github.com/smallbiznis/quotebook/internal/invoice/domain"
	"github.com/smallbiznis/quotebook/internal/lock"
	"github.com/smallbiznis/quotebook/internal/observability/metrics"
	"github.com/smallbiznis/quotebook/internal/observability/tracing"
	"github.com/smallbiznis/quotebook/internal/payment/domain"
	"github.com/smallbiznis/quotebook/internal/pricing"
	"github.com/smallbiznis/quotebook/pkg/db"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const tracerName = "quotebook/payment"

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Billing     config.BillingProvider
	Repo        domain.Repository
	InvoiceRepo invoicedomain.Repository
	Policy      docdomain.TransitionPolicy
	Locker      *lock.Locker        `optional:"true"`
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
	invoiceRepo invoicedomain.Repository
	policy      docdomain.TransitionPolicy
	locker      *lock.Locker
	auditSvc    auditdomain.Service
	metrics     *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("payment.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		billing:     p.Billing,
		repo:        p.Repo,
		invoiceRepo: p.InvoiceRepo,
		policy:      p.Policy,
		locker:      p.Locker,
		auditSvc:    p.AuditSvc,
		metrics:     p.Metrics,
	}
}

func lockKey(invoiceID snowflake.ID) string {
	return "lock:invoice:" + invoiceID.String()
}

// RecordPayment appends a payment and moves the invoice balance in the same
// transaction. The invoice row is written with a version check, so concurrent
// payments against one invoice retry instead of overwriting each other.
func (s *Service) RecordPayment(ctx context.Context, req domain.RecordPaymentRequest) (_ domain.RecordPaymentResult, err error) {
	ctx, span := tracing.Start(ctx, tracerName, "payment.record",
		attribute.String("invoice_id", req.InvoiceID.String()),
		attribute.String("method", string(req.Method)),
	)
	defer func() { tracing.End(span, err) }()

	if req.InvoiceID == 0 {
		return domain.RecordPaymentResult{}, docdomain.ErrInvalidID
	}
	amount := req.Amount.Round(pricing.Scale)
	if !amount.IsPositive() {
		return domain.RecordPaymentResult{}, domain.ErrInvalidAmount
	}
	method := req.Method
	if method == "" {
		method = domain.MethodOther
	}
	if !method.Valid() {
		return domain.RecordPaymentResult{}, domain.ErrInvalidMethod
	}

	release, err := s.locker.Acquire(ctx, lockKey(req.InvoiceID))
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			return domain.RecordPaymentResult{}, domain.ErrInvoiceBusy
		}
		return domain.RecordPaymentResult{}, docdomain.Persistence("payment.lock", err)
	}
	defer func() {
		if relErr := release(context.WithoutCancel(ctx)); relErr != nil {
			s.log.Warn("invoice lock release failed", zap.String("invoice_id", req.InvoiceID.String()), zap.Error(relErr))
		}
	}()

	cfg := s.billing.Get()
	var (
		result  domain.RecordPaymentResult
		invoice invoicedomain.Invoice
	)
	err = db.Transact(ctx, s.db, cfg.Attempts(), func(tx *gorm.DB) error {
		current, err := s.invoiceRepo.FindByID(ctx, tx, req.InvoiceID)
		if err != nil {
			return err
		}
		if current == nil {
			return invoicedomain.ErrNotFound
		}
		invoice = *current

		if !cfg.AllowOverpayment && amount.GreaterThan(invoice.AmountDue) {
			return domain.ErrExceedsBalance
		}

		now := s.clock.Now()
		paid := invoice.AmountPaid.Add(amount)
		due := invoicedomain.Balance(invoice.Total, paid)
		status := invoicedomain.StatusPartiallyPaid
		if due.IsZero() {
			status = invoicedomain.StatusPaid
		}
		if err := s.policy.Allow(docdomain.KindInvoice, string(invoice.Status), string(status)); err != nil {
			return err
		}

		paidAt := now
		if req.PaidAt != nil {
			paidAt = req.PaidAt.UTC()
		}
		payment := domain.Payment{
			ID:        s.genID.Generate(),
			InvoiceID: invoice.ID,
			Amount:    amount,
			Method:    method,
			Reference: strings.TrimSpace(req.Reference),
			Notes:     strings.TrimSpace(req.Notes),
			PaidAt:    paidAt,
			CreatedAt: now,
		}
		if err := s.repo.Insert(ctx, tx, &payment); err != nil {
			return err
		}

		if status == invoicedomain.StatusPaid && invoice.Status != invoicedomain.StatusPaid {
			invoice.PaidAt = &now
		}
		invoice.AmountPaid = paid
		invoice.AmountDue = due
		invoice.Status = status
		invoice.UpdatedAt = now

		if err := s.invoiceRepo.Update(ctx, tx, &invoice, current.Version); err != nil {
			if errors.Is(err, db.ErrConflict) {
				s.metrics.WriteConflict("payment.record")
				s.log.Debug("invoice balance moved, retrying", zap.String("invoice_id", invoice.ID.String()))
			}
			return err
		}

		result = domain.RecordPaymentResult{
			Payment:    payment,
			AmountPaid: paid,
			AmountDue:  due,
			Status:     string(status),
		}
		return nil
	})
	if err != nil {
		return domain.RecordPaymentResult{}, docdomain.Persistence("payment.record", err)
	}

	amountF, _ := amount.Float64()
	s.metrics.PaymentRecorded(string(method), amountF)
	s.emitAudit(ctx, result.Payment, result)
	s.log.Info("payment recorded",
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("payment_id", result.Payment.ID.String()),
		zap.String("amount", amount.String()),
		zap.String("amount_due", result.AmountDue.String()),
		zap.String("status", result.Status),
	)
	return result, nil
}

func (s *Service) ListByInvoice(ctx context.Context, invoiceID snowflake.ID) ([]domain.Payment, error) {
	if invoiceID == 0 {
		return nil, docdomain.ErrInvalidID
	}

	invoice, err := s.invoiceRepo.FindByID(ctx, s.db, invoiceID)
	if err != nil {
		return nil, docdomain.Persistence("payment.list", err)
	}
	if invoice == nil {
		return nil, invoicedomain.ErrNotFound
	}

	payments, err := s.repo.ListByInvoice(ctx, s.db, invoiceID)
	if err != nil {
		return nil, docdomain.Persistence("payment.list", err)
	}
	return payments, nil
}

func (s *Service) emitAudit(ctx context.Context, payment domain.Payment, result domain.RecordPaymentResult) {
	if s.auditSvc == nil {
		return
	}
	metadata := map[string]any{
		"payment_id": payment.ID.String(),
		"amount":     payment.Amount.String(),
		"method":     string(payment.Method),
		"amount_due": result.AmountDue.String(),
		"status":     result.Status,
	}
	if ref := masking.MaskReference(payment.Reference); ref != "" {
		metadata["reference"] = ref
	}
	if err := s.auditSvc.AuditLog(ctx, "payment.recorded", "invoice", payment.InvoiceID.String(), metadata); err != nil {
		s.log.Warn("audit log failed", zap.String("action", "payment.recorded"), zap.Error(err))
	}
}
