package service

import (
	"context"
	"errors"
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
	"github.com/smallbiznis/quotebook/internal/pricing"
	"github.com/smallbiznis/quotebook/internal/quote/domain"
	"github.com/smallbiznis/quotebook/internal/quote/repository"
	seqdomain "github.com/smallbiznis/quotebook/internal/sequence/domain"
	seqrepo "github.com/smallbiznis/quotebook/internal/sequence/repository"
	seqservice "github.com/smallbiznis/quotebook/internal/sequence/service"
	"github.com/smallbiznis/quotebook/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var fixedNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

// failingAudit mimics an unavailable audit store.
type failingAudit struct{ calls int }

func (a *failingAudit) AuditLog(context.Context, string, string, string, map[string]any) error {
	a.calls++
	return errors.New("audit store down")
}

func (a *failingAudit) List(context.Context, auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	return auditdomain.ListAuditLogResponse{}, nil
}

type testEnv struct {
	svc    domain.Service
	db     *gorm.DB
	clock  *clock.FakeClock
	audit  *failingAudit
	client clientdomain.Client
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := dbtest.Open(t,
		&clientdomain.Client{},
		&domain.Quote{},
		&docdomain.LineItem{},
		&seqdomain.Counter{},
	)
	node, err := snowflake.NewNode(2)
	require.NoError(t, err)
	clk := clock.NewFakeClock(fixedNow)
	billing := config.StaticBilling(config.DefaultBillingConfig())

	client := clientdomain.Client{ID: node.Generate(), Name: "Bright Homes", CreatedAt: fixedNow, UpdatedAt: fixedNow}
	require.NoError(t, clientrepo.Provide().Insert(context.Background(), db, &client))

	audit := &failingAudit{}
	svc := New(Params{
		DB:         db,
		Log:        zap.NewNop(),
		GenID:      node,
		Clock:      clk,
		Billing:    billing,
		Repo:       repository.Provide(),
		ItemRepo:   docrepo.Provide(),
		ClientRepo: clientrepo.Provide(),
		Sequence: seqservice.New(seqservice.Params{
			Log:     zap.NewNop(),
			Clock:   clk,
			Billing: billing,
			Repo:    seqrepo.Provide(),
		}),
		Policy:   docdomain.Permissive{},
		AuditSvc: audit,
	})
	return &testEnv{svc: svc, db: db, clock: clk, audit: audit, client: client}
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func threeItems() []docdomain.ItemInput {
	return []docdomain.ItemInput{
		{Description: "Survey", Quantity: d("1"), UnitPrice: d("80")},
		{Description: "Cabling", Quantity: d("12.5"), Unit: "m", UnitPrice: d("4")},
		{Description: "Fitting", Quantity: d("3"), Unit: "h", UnitPrice: d("40")},
	}
}

func TestCreate_SurvivesAuditFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.svc.Create(ctx, domain.CreateQuoteRequest{
		ClientID: env.client.ID,
		Items:    threeItems(),
		Discount: &docdomain.DiscountInput{Type: pricing.DiscountPercentage, Value: d("10")},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, env.audit.calls)
	assert.Equal(t, "QT-2025-1001", created.Number)
	assert.True(t, created.Subtotal.Equal(d("250")))
	assert.True(t, created.Total.Equal(d("258.75")))

	got, err := env.svc.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Len(t, got.Items, 3)
	assert.Equal(t, "Survey", got.Items[0].Description)
	assert.Equal(t, "m", got.Items[1].Unit)
	require.NotNil(t, got.Client)
	assert.Equal(t, "Bright Homes", got.Client.Name)
}

func TestUpdate_ReplacesItems(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.svc.Create(ctx, domain.CreateQuoteRequest{ClientID: env.client.ID, Items: threeItems()})
	require.NoError(t, err)

	notes := "  revised after site visit "
	updated, err := env.svc.Update(ctx, created.ID, domain.UpdateQuoteRequest{
		Items:   []docdomain.ItemInput{{Description: "Survey", Quantity: d("1"), UnitPrice: d("100")}},
		Options: docdomain.Options{Notes: &notes},
	})
	require.NoError(t, err)
	assert.True(t, updated.Subtotal.Equal(d("100")))
	assert.True(t, updated.Total.Equal(d("115")))
	assert.Equal(t, "revised after site visit", updated.Notes)

	got, err := env.svc.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Len(t, got.Items, 1)
}

func TestSetStatus_AnyOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.svc.Create(ctx, domain.CreateQuoteRequest{ClientID: env.client.ID, Items: threeItems()})
	require.NoError(t, err)

	for _, status := range []domain.Status{domain.StatusViewed, domain.StatusAccepted, domain.StatusDraft, domain.StatusExpired} {
		got, err := env.svc.SetStatus(ctx, created.ID, status)
		require.NoError(t, err)
		assert.Equal(t, status, got.Status)
	}

	got, err := env.svc.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusExpired, got.Status)
	assert.NotNil(t, got.ViewedAt)
	assert.Nil(t, got.SentAt)

	_, err = env.svc.SetStatus(ctx, snowflake.ID(1), domain.StatusSent)
	assert.ErrorIs(t, err, docdomain.ErrNotFound)
}

func TestEffectiveStatus_ExpiresPendingQuotes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	validUntil := fixedNow.Add(72 * time.Hour)
	sent, err := env.svc.Create(ctx, domain.CreateQuoteRequest{
		ClientID:   env.client.ID,
		Items:      threeItems(),
		ValidUntil: &validUntil,
		Status:     domain.StatusSent,
	})
	require.NoError(t, err)
	draft, err := env.svc.Create(ctx, domain.CreateQuoteRequest{
		ClientID:   env.client.ID,
		Items:      threeItems(),
		ValidUntil: &validUntil,
	})
	require.NoError(t, err)

	env.clock.Advance(96 * time.Hour)

	got, err := env.svc.GetByID(ctx, sent.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSent, got.Status)
	assert.Equal(t, domain.StatusExpired, got.EffectiveStatus)
	require.NotNil(t, got.Formatted)
	assert.Equal(t, "R287.50", got.Formatted.Total)
	assert.Empty(t, got.Formatted.AmountDue)

	got, err = env.svc.GetByID(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDraft, got.EffectiveStatus)
}

func TestRemove_DeletesItems(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.svc.Create(ctx, domain.CreateQuoteRequest{ClientID: env.client.ID, Items: threeItems()})
	require.NoError(t, err)

	var before int64
	require.NoError(t, env.db.Model(&docdomain.LineItem{}).Where("document_id = ?", created.ID).Count(&before).Error)
	assert.Equal(t, int64(3), before)

	require.NoError(t, env.svc.Remove(ctx, created.ID))

	var after int64
	require.NoError(t, env.db.Model(&docdomain.LineItem{}).Where("document_id = ?", created.ID).Count(&after).Error)
	assert.Zero(t, after)

	_, err = env.svc.GetByID(ctx, created.ID)
	assert.ErrorIs(t, err, docdomain.ErrNotFound)
	assert.ErrorIs(t, env.svc.Remove(ctx, created.ID), docdomain.ErrNotFound)
}

func TestList_ByClient(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Create(ctx, domain.CreateQuoteRequest{ClientID: env.client.ID, Items: threeItems()})
	require.NoError(t, err)

	res, err := env.svc.List(ctx, domain.ListQuoteRequest{ClientID: env.client.ID})
	require.NoError(t, err)
	require.Len(t, res.Quotes, 1)
	assert.False(t, res.HasMore)
	require.NotNil(t, res.Quotes[0].Client)

	none, err := env.svc.List(ctx, domain.ListQuoteRequest{ClientID: snowflake.ID(7)})
	require.NoError(t, err)
	assert.Empty(t, none.Quotes)

	_, err = env.svc.List(ctx, domain.ListQuoteRequest{Status: domain.Status("lost")})
	assert.ErrorIs(t, err, docdomain.ErrInvalidStatus)
}
