package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/quotebook/internal/client/domain"
	"github.com/smallbiznis/quotebook/internal/client/repository"
	"github.com/smallbiznis/quotebook/internal/clock"
	docdomain "github.com/smallbiznis/quotebook/internal/document/domain"
	"github.com/smallbiznis/quotebook/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) (domain.Service, *clock.FakeClock) {
	t.Helper()
	db := dbtest.Open(t, &domain.Client{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC))

	return New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Repo:  repository.Provide(),
	}), clk
}

func TestCreateAndGet(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, domain.CreateClientRequest{Name: "  Acme Plumbing ", Email: "ops@acme.test"})
	require.NoError(t, err)
	assert.Equal(t, "Acme Plumbing", created.Name)

	got, err := svc.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "ops@acme.test", got.Email)
}

func TestCreate_Validation(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Create(context.Background(), domain.CreateClientRequest{Name: " "})
	assert.ErrorIs(t, err, domain.ErrInvalidName)
	assert.ErrorIs(t, err, docdomain.ErrInvalidInput)

	_, err = svc.Create(context.Background(), domain.CreateClientRequest{Name: "Bob", Email: "nope"})
	assert.ErrorIs(t, err, domain.ErrInvalidEmail)
}

func TestGetByID_NotFound(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.GetByID(context.Background(), snowflake.ID(12345))
	assert.ErrorIs(t, err, docdomain.ErrNotFound)
	assert.True(t, domain.IsNotFound(err))
}

func TestFindByIDs(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, domain.CreateClientRequest{Name: "A"})
	require.NoError(t, err)
	b, err := svc.Create(ctx, domain.CreateClientRequest{Name: "B"})
	require.NoError(t, err)

	found, err := svc.FindByIDs(ctx, []snowflake.ID{a.ID, b.ID, a.ID, 999})
	require.NoError(t, err)
	assert.Len(t, found, 2)
	assert.Equal(t, "B", found[b.ID].Name)
}

func TestList_Paginates(t *testing.T) {
	svc, clk := newTestService(t)
	ctx := context.Background()

	for _, name := range []string{"Alpha", "Bravo", "Charlie"} {
		_, err := svc.Create(ctx, domain.CreateClientRequest{Name: name})
		require.NoError(t, err)
		clk.Advance(time.Minute)
	}

	first, err := svc.List(ctx, domain.ListClientRequest{PageSize: 2})
	require.NoError(t, err)
	require.Len(t, first.Clients, 2)
	assert.Equal(t, "Charlie", first.Clients[0].Name)
	assert.True(t, first.HasMore)

	second, err := svc.List(ctx, domain.ListClientRequest{PageSize: 2, PageToken: first.NextPageToken})
	require.NoError(t, err)
	require.Len(t, second.Clients, 1)
	assert.Equal(t, "Alpha", second.Clients[0].Name)
	assert.False(t, second.HasMore)

	filtered, err := svc.List(ctx, domain.ListClientRequest{Name: "rav"})
	require.NoError(t, err)
	require.Len(t, filtered.Clients, 1)
	assert.Equal(t, "Bravo", filtered.Clients[0].Name)

	_, err = svc.List(ctx, domain.ListClientRequest{PageToken: "%%%"})
	assert.ErrorIs(t, err, docdomain.ErrInvalidInput)
}
