package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/quotebook/internal/audit/domain"
	"github.com/smallbiznis/quotebook/internal/clock"
	"github.com/smallbiznis/quotebook/internal/config"
	docdomain "github.com/smallbiznis/quotebook/internal/document/domain"
	invoicedomain "github.com/smallbiznis/quotebook/internal/invoice/domain"
	invoicerepo "github.com/smallbiznis/quotebook/internal/invoice/repository"
	"github.com/smallbiznis/quotebook/internal/observability/metrics"
	"github.com/smallbiznis/quotebook/internal/payment/domain"
	"github.com/smallbiznis/quotebook/internal/payment/repository"
	"github.com/smallbiznis/quotebook/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var fixedNow = time.Date(2025, 8, 20, 14, 0, 0, 0, time.UTC)

type auditCall struct {
	action   string
	metadata map[string]any
}

type recordingAudit struct {
	mu    sync.Mutex
	calls []auditCall
}

func (a *recordingAudit) AuditLog(_ context.Context, action, _, _ string, metadata map[string]any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, auditCall{action: action, metadata: metadata})
	return nil
}

func (a *recordingAudit) List(context.Context, auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	return auditdomain.ListAuditLogResponse{}, nil
}

type testEnv struct {
	svc     domain.Service
	db      *gorm.DB
	clock   *clock.FakeClock
	node    *snowflake.Node
	reg     *prometheus.Registry
	audit   *recordingAudit
}

func newTestEnv(t *testing.T, billing config.BillingConfig) *testEnv {
	t.Helper()
	db := dbtest.Open(t, &invoicedomain.Invoice{}, &domain.Payment{})
	node, err := snowflake.NewNode(3)
	require.NoError(t, err)
	clk := clock.NewFakeClock(fixedNow)
	reg := prometheus.NewRegistry()
	audit := &recordingAudit{}

	var policy docdomain.TransitionPolicy = docdomain.Permissive{}
	if billing.StrictTransitions {
		policy = docdomain.Strict{}
	}

	svc := New(Params{
		DB:          db,
		Log:         zap.NewNop(),
		GenID:       node,
		Clock:       clk,
		Billing:     config.StaticBilling(billing),
		Repo:        repository.Provide(),
		InvoiceRepo: invoicerepo.Provide(),
		Policy:      policy,
		AuditSvc:    audit,
		Metrics:     metrics.New(reg),
	})
	return &testEnv{svc: svc, db: db, clock: clk, node: node, reg: reg, audit: audit}
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func (e *testEnv) seedInvoice(t *testing.T, total string, status invoicedomain.Status) invoicedomain.Invoice {
	t.Helper()
	inv := invoicedomain.Invoice{
		ID:         e.node.Generate(),
		Number:     "INV-2025-" + e.node.Generate().String(),
		ClientID:   e.node.Generate(),
		Status:     status,
		Totals:     docdomain.Totals{Subtotal: d(total), TaxRate: d("0"), TaxAmount: d("0"), DiscountAmount: d("0"), Total: d(total)},
		AmountPaid: decimal.Zero,
		AmountDue:  d(total),
		IssuedAt:   fixedNow,
		Version:    1,
		CreatedAt:  fixedNow,
		UpdatedAt:  fixedNow,
	}
	require.NoError(t, invoicerepo.Provide().Insert(context.Background(), e.db, &inv))
	return inv
}

func (e *testEnv) reload(t *testing.T, id snowflake.ID) invoicedomain.Invoice {
	t.Helper()
	inv, err := invoicerepo.Provide().FindByID(context.Background(), e.db, id)
	require.NoError(t, err)
	require.NotNil(t, inv)
	return *inv
}

func TestRecordPayment_PartialThenPaid(t *testing.T) {
	env := newTestEnv(t, config.DefaultBillingConfig())
	ctx := context.Background()
	inv := env.seedInvoice(t, "258.75", invoicedomain.StatusSent)

	first, err := env.svc.RecordPayment(ctx, domain.RecordPaymentRequest{
		InvoiceID: inv.ID,
		Amount:    d("100"),
		Method:    domain.MethodBankTransfer,
		Reference: "EFT-2025-000123",
	})
	require.NoError(t, err)
	assert.True(t, first.AmountPaid.Equal(d("100")))
	assert.True(t, first.AmountDue.Equal(d("158.75")))
	assert.Equal(t, string(invoicedomain.StatusPartiallyPaid), first.Status)
	assert.Nil(t, env.reload(t, inv.ID).PaidAt)

	env.clock.Advance(time.Hour)
	second, err := env.svc.RecordPayment(ctx, domain.RecordPaymentRequest{
		InvoiceID: inv.ID,
		Amount:    d("158.75"),
		Method:    domain.MethodCash,
	})
	require.NoError(t, err)
	assert.True(t, second.AmountPaid.Equal(d("258.75")))
	assert.True(t, second.AmountDue.IsZero())
	assert.Equal(t, string(invoicedomain.StatusPaid), second.Status)

	stored := env.reload(t, inv.ID)
	assert.Equal(t, invoicedomain.StatusPaid, stored.Status)
	require.NotNil(t, stored.PaidAt)
	assert.True(t, stored.PaidAt.Equal(fixedNow.Add(time.Hour)))
	assert.Equal(t, int64(3), stored.Version)

	payments, err := env.svc.ListByInvoice(ctx, inv.ID)
	require.NoError(t, err)
	require.Len(t, payments, 2)
	assert.Equal(t, domain.MethodCash, payments[0].Method, "newest first")
	assert.True(t, domain.Sum(payments).Equal(stored.AmountPaid))

	require.Len(t, env.audit.calls, 2)
	assert.Equal(t, "payment.recorded", env.audit.calls[0].action)
	assert.Equal(t, "****0123", env.audit.calls[0].metadata["reference"])
	assert.NotContains(t, env.audit.calls[1].metadata, "reference")

	series, err := testutil.GatherAndCount(env.reg, "quotebook_payments_recorded_total")
	require.NoError(t, err)
	assert.Equal(t, 2, series, "one series per method")
}

func TestRecordPayment_RejectsInvalidInput(t *testing.T) {
	env := newTestEnv(t, config.DefaultBillingConfig())
	ctx := context.Background()
	inv := env.seedInvoice(t, "50", invoicedomain.StatusSent)

	cases := []struct {
		name string
		req  domain.RecordPaymentRequest
		want error
	}{
		{"zero amount", domain.RecordPaymentRequest{InvoiceID: inv.ID, Amount: d("0")}, domain.ErrInvalidAmount},
		{"negative amount", domain.RecordPaymentRequest{InvoiceID: inv.ID, Amount: d("-5")}, domain.ErrInvalidAmount},
		{"sub-cent amount", domain.RecordPaymentRequest{InvoiceID: inv.ID, Amount: d("0.001")}, domain.ErrInvalidAmount},
		{"unknown method", domain.RecordPaymentRequest{InvoiceID: inv.ID, Amount: d("5"), Method: "barter"}, domain.ErrInvalidMethod},
		{"missing invoice id", domain.RecordPaymentRequest{Amount: d("5")}, docdomain.ErrInvalidID},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.svc.RecordPayment(ctx, tc.req)
			assert.ErrorIs(t, err, tc.want)
			assert.ErrorIs(t, err, docdomain.ErrInvalidInput)
		})
	}

	_, err := env.svc.RecordPayment(ctx, domain.RecordPaymentRequest{InvoiceID: snowflake.ID(77), Amount: d("5")})
	assert.ErrorIs(t, err, docdomain.ErrNotFound)

	_, err = env.svc.ListByInvoice(ctx, snowflake.ID(77))
	assert.ErrorIs(t, err, docdomain.ErrNotFound)

	var count int64
	require.NoError(t, env.db.Model(&domain.Payment{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestRecordPayment_Overpayment(t *testing.T) {
	t.Run("rejected by default", func(t *testing.T) {
		env := newTestEnv(t, config.DefaultBillingConfig())
		inv := env.seedInvoice(t, "100", invoicedomain.StatusSent)

		_, err := env.svc.RecordPayment(context.Background(), domain.RecordPaymentRequest{InvoiceID: inv.ID, Amount: d("100.01")})
		assert.ErrorIs(t, err, domain.ErrExceedsBalance)

		stored := env.reload(t, inv.ID)
		assert.True(t, stored.AmountPaid.IsZero())
		assert.Equal(t, invoicedomain.StatusSent, stored.Status)
	})

	t.Run("absorbed when allowed", func(t *testing.T) {
		cfg := config.DefaultBillingConfig()
		cfg.AllowOverpayment = true
		env := newTestEnv(t, cfg)
		inv := env.seedInvoice(t, "100", invoicedomain.StatusSent)

		res, err := env.svc.RecordPayment(context.Background(), domain.RecordPaymentRequest{InvoiceID: inv.ID, Amount: d("150")})
		require.NoError(t, err)
		assert.True(t, res.AmountPaid.Equal(d("150")))
		assert.True(t, res.AmountDue.IsZero())
		assert.Equal(t, string(invoicedomain.StatusPaid), res.Status)
	})
}

func TestRecordPayment_StrictPolicyRefusesCancelled(t *testing.T) {
	cfg := config.DefaultBillingConfig()
	cfg.StrictTransitions = true
	env := newTestEnv(t, cfg)
	inv := env.seedInvoice(t, "100", invoicedomain.StatusCancelled)

	_, err := env.svc.RecordPayment(context.Background(), domain.RecordPaymentRequest{InvoiceID: inv.ID, Amount: d("10")})
	assert.ErrorIs(t, err, docdomain.ErrInvalidTransition)

	payments, err := env.svc.ListByInvoice(context.Background(), inv.ID)
	require.NoError(t, err)
	assert.Empty(t, payments)
}

func TestRecordPayment_ConcurrentPaymentsReconcile(t *testing.T) {
	env := newTestEnv(t, config.DefaultBillingConfig())
	inv := env.seedInvoice(t, "1000", invoicedomain.StatusSent)

	const workers = 20
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.svc.RecordPayment(context.Background(), domain.RecordPaymentRequest{
				InvoiceID: inv.ID,
				Amount:    d("12.5"),
				Method:    domain.MethodCard,
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	stored := env.reload(t, inv.ID)
	payments, err := env.svc.ListByInvoice(context.Background(), inv.ID)
	require.NoError(t, err)
	assert.Len(t, payments, workers)
	assert.True(t, stored.AmountPaid.Equal(d("250")))
	assert.True(t, domain.Sum(payments).Equal(stored.AmountPaid))
	assert.True(t, stored.AmountDue.Equal(d("750")))
	assert.Equal(t, invoicedomain.StatusPartiallyPaid, stored.Status)
}
