package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/quotebook/internal/audit/domain"
	clientdomain "github.com/smallbiznis/quotebook/internal/client/domain"
	clientrepo "github.com/smallbiznis/quotebook/internal/client/repository"
	"github.com/smallbiznis/quotebook/internal/clock"
	"github.com/smallbiznis/quotebook/internal/config"
	docdomain "github.com/smallbiznis/quotebook/internal/document/domain"
	docrepo "github.com/smallbiznis/quotebook/internal/document/repository"
	"github.com/smallbiznis/quotebook/internal/invoice/domain"
	"github.com/smallbiznis/quotebook/internal/invoice/repository"
	paymentdomain "github.com/smallbiznis/quotebook/internal/payment/domain"
	paymentrepo "github.com/smallbiznis/quotebook/internal/payment/repository"
	"github.com/smallbiznis/quotebook/internal/pricing"
	seqdomain "github.com/smallbiznis/quotebook/internal/sequence/domain"
	seqrepo "github.com/smallbiznis/quotebook/internal/sequence/repository"
	seqservice "github.com/smallbiznis/quotebook/internal/sequence/service"
	"github.com/smallbiznis/quotebook/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var fixedNow = time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

type recordingAudit struct {
	mu      sync.Mutex
	actions []string
}

func (a *recordingAudit) AuditLog(_ context.Context, action, _, _ string, _ map[string]any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.actions = append(a.actions, action)
	return nil
}

func (a *recordingAudit) List(context.Context, auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	return auditdomain.ListAuditLogResponse{}, nil
}

type testEnv struct {
	svc    domain.Service
	db     *gorm.DB
	clock  *clock.FakeClock
	node   *snowflake.Node
	audit  *recordingAudit
	client clientdomain.Client
}

func newTestEnv(t *testing.T, billing config.BillingConfig) *testEnv {
	t.Helper()
	db := dbtest.Open(t,
		&clientdomain.Client{},
		&domain.Invoice{},
		&docdomain.LineItem{},
		&paymentdomain.Payment{},
		&seqdomain.Counter{},
	)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(fixedNow)
	provider := config.StaticBilling(billing)

	policy := docdomain.TransitionPolicy(docdomain.Permissive{})
	if billing.StrictTransitions {
		policy = docdomain.Strict{}
	}

	client := clientdomain.Client{ID: node.Generate(), Name: "Acme", CreatedAt: fixedNow, UpdatedAt: fixedNow}
	require.NoError(t, clientrepo.Provide().Insert(context.Background(), db, &client))

	audit := &recordingAudit{}
	svc := New(Params{
		DB:          db,
		Log:         zap.NewNop(),
		GenID:       node,
		Clock:       clk,
		Billing:     provider,
		Repo:        repository.Provide(),
		ItemRepo:    docrepo.Provide(),
		ClientRepo:  clientrepo.Provide(),
		PaymentRepo: paymentrepo.Provide(),
		Sequence: seqservice.New(seqservice.Params{
			Log:     zap.NewNop(),
			Clock:   clk,
			Billing: provider,
			Repo:    seqrepo.Provide(),
		}),
		Policy:   policy,
		AuditSvc: audit,
	})

	return &testEnv{svc: svc, db: db, clock: clk, node: node, audit: audit, client: client}
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func sampleItems() []docdomain.ItemInput {
	return []docdomain.ItemInput{
		{Description: "Widget", Quantity: d("2"), UnitPrice: d("100")},
		{Description: "Gadget", Quantity: d("1"), UnitPrice: d("50")},
	}
}

func TestCreate_PricesAndNumbers(t *testing.T) {
	env := newTestEnv(t, config.DefaultBillingConfig())
	ctx := context.Background()

	first, err := env.svc.Create(ctx, domain.CreateInvoiceRequest{ClientID: env.client.ID, Items: sampleItems()})
	require.NoError(t, err)
	assert.Equal(t, "INV-2025-1001", first.Number)
	assert.Equal(t, domain.StatusDraft, first.Status)
	assert.True(t, first.Subtotal.Equal(d("250")))
	assert.True(t, first.TaxAmount.Equal(d("37.5")))
	assert.True(t, first.Total.Equal(d("287.5")))
	assert.True(t, first.AmountDue.Equal(d("287.5")))
	assert.True(t, first.AmountPaid.IsZero())
	assert.Nil(t, first.SentAt)
	assert.Len(t, first.Items, 2)

	rate := d("0.15")
	second, err := env.svc.Create(ctx, domain.CreateInvoiceRequest{
		ClientID: env.client.ID,
		Items:    sampleItems(),
		TaxRate:  &rate,
		Discount: &docdomain.DiscountInput{Type: pricing.DiscountPercentage, Value: d("10")},
		Status:   domain.StatusSent,
	})
	require.NoError(t, err)
	assert.Equal(t, "INV-2025-1002", second.Number)
	assert.True(t, second.DiscountAmount.Equal(d("25")))
	assert.True(t, second.Total.Equal(d("258.75")))
	require.NotNil(t, second.SentAt)

	assert.Equal(t, []string{"invoice.created", "invoice.created"}, env.audit.actions)
}

func TestCreate_RejectsBeforeWriting(t *testing.T) {
	env := newTestEnv(t, config.DefaultBillingConfig())
	ctx := context.Background()

	cases := []struct {
		name string
		req  domain.CreateInvoiceRequest
		want error
	}{
		{"missing client", domain.CreateInvoiceRequest{Items: sampleItems()}, docdomain.ErrInvalidClient},
		{"unknown client", domain.CreateInvoiceRequest{ClientID: 42, Items: sampleItems()}, docdomain.ErrUnknownClient},
		{"no items", domain.CreateInvoiceRequest{ClientID: env.client.ID}, docdomain.ErrEmptyItems},
		{"paid on create", domain.CreateInvoiceRequest{ClientID: env.client.ID, Items: sampleItems(), Status: domain.StatusPaid}, docdomain.ErrInvalidInitialStatus},
		{"bad quantity", domain.CreateInvoiceRequest{ClientID: env.client.ID, Items: []docdomain.ItemInput{{Description: "x", Quantity: d("-1"), UnitPrice: d("1")}}}, docdomain.ErrInvalidQuantity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.svc.Create(ctx, tc.req)
			assert.ErrorIs(t, err, tc.want)
			assert.ErrorIs(t, err, docdomain.ErrInvalidInput)
		})
	}

	var invoices, items, counters int64
	require.NoError(t, env.db.Model(&domain.Invoice{}).Count(&invoices).Error)
	require.NoError(t, env.db.Model(&docdomain.LineItem{}).Count(&items).Error)
	require.NoError(t, env.db.Model(&seqdomain.Counter{}).Count(&counters).Error)
	assert.Zero(t, invoices)
	assert.Zero(t, items)
	assert.Zero(t, counters, "unknown client must not consume a number")
}

func TestUpdate_RepricesAndIsIdempotent(t *testing.T) {
	env := newTestEnv(t, config.DefaultBillingConfig())
	ctx := context.Background()

	created, err := env.svc.Create(ctx, domain.CreateInvoiceRequest{ClientID: env.client.ID, Items: sampleItems()})
	require.NoError(t, err)

	req := domain.UpdateInvoiceRequest{
		Items:    []docdomain.ItemInput{{Description: "Labour", Quantity: d("4"), UnitPrice: d("125")}},
		Discount: &docdomain.DiscountInput{Type: pricing.DiscountFixed, Value: d("100")},
	}
	first, err := env.svc.Update(ctx, created.ID, req)
	require.NoError(t, err)
	second, err := env.svc.Update(ctx, created.ID, req)
	require.NoError(t, err)

	assert.True(t, first.Total.Equal(d("460")))
	assert.True(t, second.Total.Equal(first.Total))
	assert.True(t, second.TaxAmount.Equal(first.TaxAmount))
	assert.Equal(t, created.Version+2, second.Version)

	got, err := env.svc.GetByID(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "Labour", got.Items[0].Description)
	assert.True(t, got.AmountDue.Equal(d("460")))
}

func TestUpdate_KeepsItemsAndMergesTax(t *testing.T) {
	env := newTestEnv(t, config.DefaultBillingConfig())
	ctx := context.Background()

	created, err := env.svc.Create(ctx, domain.CreateInvoiceRequest{
		ClientID: env.client.ID,
		Items:    sampleItems(),
		Discount: &docdomain.DiscountInput{Type: pricing.DiscountPercentage, Value: d("10")},
	})
	require.NoError(t, err)

	rate := d("0")
	updated, err := env.svc.Update(ctx, created.ID, domain.UpdateInvoiceRequest{TaxRate: &rate})
	require.NoError(t, err)
	assert.True(t, updated.DiscountAmount.Equal(d("25")))
	assert.True(t, updated.Total.Equal(d("225")))

	cleared, err := env.svc.Update(ctx, created.ID, domain.UpdateInvoiceRequest{ClearDiscount: true})
	require.NoError(t, err)
	assert.True(t, cleared.Total.Equal(d("250")))
	assert.Nil(t, cleared.Discount())

	var items int64
	require.NoError(t, env.db.Model(&docdomain.LineItem{}).Where("document_id = ?", created.ID).Count(&items).Error)
	assert.Equal(t, int64(2), items)
}

func TestUpdate_Errors(t *testing.T) {
	env := newTestEnv(t, config.DefaultBillingConfig())
	ctx := context.Background()

	_, err := env.svc.Update(ctx, snowflake.ID(999), domain.UpdateInvoiceRequest{})
	assert.ErrorIs(t, err, docdomain.ErrNotFound)

	created, err := env.svc.Create(ctx, domain.CreateInvoiceRequest{ClientID: env.client.ID, Items: sampleItems()})
	require.NoError(t, err)

	_, err = env.svc.Update(ctx, created.ID, domain.UpdateInvoiceRequest{Items: []docdomain.ItemInput{}})
	assert.ErrorIs(t, err, docdomain.ErrEmptyItems)

	bad := d("1.5")
	_, err = env.svc.Update(ctx, created.ID, domain.UpdateInvoiceRequest{TaxRate: &bad})
	assert.ErrorIs(t, err, docdomain.ErrInvalidTaxRate)
}

func TestSetStatus_StampsTimestamps(t *testing.T) {
	env := newTestEnv(t, config.DefaultBillingConfig())
	ctx := context.Background()

	created, err := env.svc.Create(ctx, domain.CreateInvoiceRequest{ClientID: env.client.ID, Items: sampleItems()})
	require.NoError(t, err)

	sent, err := env.svc.SetStatus(ctx, created.ID, domain.StatusSent)
	require.NoError(t, err)
	require.NotNil(t, sent.SentAt)

	env.clock.Advance(time.Hour)
	paid, err := env.svc.SetStatus(ctx, created.ID, domain.StatusPaid)
	require.NoError(t, err)
	require.NotNil(t, paid.PaidAt)
	assert.True(t, paid.PaidAt.Equal(fixedNow.Add(time.Hour)))
	assert.True(t, paid.AmountDue.Equal(created.AmountDue), "status changes never touch amounts")

	// permissive by default: paid may go back to draft
	back, err := env.svc.SetStatus(ctx, created.ID, domain.StatusDraft)
	require.NoError(t, err)
	assert.Nil(t, back.PaidAt)

	got, err := env.svc.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDraft, got.Status)
	assert.Nil(t, got.PaidAt)
	assert.NotNil(t, got.SentAt)

	_, err = env.svc.SetStatus(ctx, created.ID, domain.Status("archived"))
	assert.ErrorIs(t, err, docdomain.ErrInvalidStatus)
}

func TestSetStatus_StrictPolicy(t *testing.T) {
	cfg := config.DefaultBillingConfig()
	cfg.StrictTransitions = true
	env := newTestEnv(t, cfg)
	ctx := context.Background()

	created, err := env.svc.Create(ctx, domain.CreateInvoiceRequest{ClientID: env.client.ID, Items: sampleItems()})
	require.NoError(t, err)

	_, err = env.svc.SetStatus(ctx, created.ID, domain.StatusCancelled)
	require.NoError(t, err)

	_, err = env.svc.SetStatus(ctx, created.ID, domain.StatusDraft)
	assert.ErrorIs(t, err, docdomain.ErrInvalidTransition)

	got, err := env.svc.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, got.Status)
}

func TestRemove_Cascades(t *testing.T) {
	env := newTestEnv(t, config.DefaultBillingConfig())
	ctx := context.Background()

	created, err := env.svc.Create(ctx, domain.CreateInvoiceRequest{ClientID: env.client.ID, Items: sampleItems()})
	require.NoError(t, err)

	payment := paymentdomain.Payment{
		ID:        env.node.Generate(),
		InvoiceID: created.ID,
		Amount:    d("10"),
		Method:    paymentdomain.MethodCash,
		PaidAt:    fixedNow,
		CreatedAt: fixedNow,
	}
	require.NoError(t, paymentrepo.Provide().Insert(ctx, env.db, &payment))

	require.NoError(t, env.svc.Remove(ctx, created.ID))

	_, err = env.svc.GetByID(ctx, created.ID)
	assert.ErrorIs(t, err, docdomain.ErrNotFound)

	var items, payments int64
	require.NoError(t, env.db.Model(&docdomain.LineItem{}).Where("document_id = ?", created.ID).Count(&items).Error)
	require.NoError(t, env.db.Model(&paymentdomain.Payment{}).Where("invoice_id = ?", created.ID).Count(&payments).Error)
	assert.Zero(t, items)
	assert.Zero(t, payments)

	assert.ErrorIs(t, env.svc.Remove(ctx, created.ID), docdomain.ErrNotFound)

	next, err := env.svc.Create(ctx, domain.CreateInvoiceRequest{ClientID: env.client.ID, Items: sampleItems()})
	require.NoError(t, err)
	assert.Equal(t, "INV-2025-1002", next.Number, "numbers are never reused")
}

func TestGetByID_EnrichesAndEvaluatesOverdue(t *testing.T) {
	env := newTestEnv(t, config.DefaultBillingConfig())
	ctx := context.Background()

	due := fixedNow.Add(24 * time.Hour)
	created, err := env.svc.Create(ctx, domain.CreateInvoiceRequest{
		ClientID: env.client.ID,
		Items:    sampleItems(),
		DueDate:  &due,
		Status:   domain.StatusSent,
	})
	require.NoError(t, err)

	got, err := env.svc.GetByID(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Client)
	assert.Equal(t, "Acme", got.Client.Name)
	assert.Equal(t, domain.StatusSent, got.EffectiveStatus)
	require.NotNil(t, got.Formatted)
	assert.Equal(t, "R250.00", got.Formatted.Subtotal)
	assert.Equal(t, "R37.50", got.Formatted.TaxAmount)
	assert.Equal(t, "R287.50", got.Formatted.Total)
	assert.Equal(t, "R0.00", got.Formatted.AmountPaid)
	assert.Equal(t, "R287.50", got.Formatted.AmountDue)

	env.clock.Advance(48 * time.Hour)
	got, err = env.svc.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSent, got.Status)
	assert.Equal(t, domain.StatusOverdue, got.EffectiveStatus)
}

func TestGetByID_FormatsInConfiguredCurrency(t *testing.T) {
	cfg := config.DefaultBillingConfig()
	cfg.Currency = "USD"
	env := newTestEnv(t, cfg)
	ctx := context.Background()

	created, err := env.svc.Create(ctx, domain.CreateInvoiceRequest{ClientID: env.client.ID, Items: sampleItems()})
	require.NoError(t, err)
	require.NotNil(t, created.Formatted)
	assert.Equal(t, "$287.50", created.Formatted.Total)

	got, err := env.svc.GetByID(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Formatted)
	assert.Equal(t, "$0.00", got.Formatted.DiscountAmount)
	assert.Equal(t, "$287.50", got.Formatted.AmountDue)
}

func TestList_FiltersAndPaginates(t *testing.T) {
	env := newTestEnv(t, config.DefaultBillingConfig())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := env.svc.Create(ctx, domain.CreateInvoiceRequest{ClientID: env.client.ID, Items: sampleItems()})
		require.NoError(t, err)
		env.clock.Advance(time.Minute)
	}
	_, err := env.svc.Create(ctx, domain.CreateInvoiceRequest{ClientID: env.client.ID, Items: sampleItems(), Status: domain.StatusSent})
	require.NoError(t, err)

	page, err := env.svc.List(ctx, domain.ListInvoiceRequest{PageSize: 2})
	require.NoError(t, err)
	require.Len(t, page.Invoices, 2)
	assert.True(t, page.HasMore)
	assert.Equal(t, "INV-2025-1004", page.Invoices[0].Number)
	require.NotNil(t, page.Invoices[0].Client)
	assert.Len(t, page.Invoices[0].Items, 2)

	rest, err := env.svc.List(ctx, domain.ListInvoiceRequest{PageSize: 2, PageToken: page.NextPageToken})
	require.NoError(t, err)
	require.Len(t, rest.Invoices, 2)
	assert.False(t, rest.HasMore)
	assert.Equal(t, "INV-2025-1001", rest.Invoices[1].Number)

	sent, err := env.svc.List(ctx, domain.ListInvoiceRequest{Status: domain.StatusSent})
	require.NoError(t, err)
	assert.Len(t, sent.Invoices, 1)

	_, err = env.svc.List(ctx, domain.ListInvoiceRequest{PageToken: "%%%"})
	assert.ErrorIs(t, err, docdomain.ErrInvalidInput)
}
