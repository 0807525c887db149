package repository

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/quotebook/internal/document/domain"
	"github.com/smallbiznis/quotebook/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItemRepository(t *testing.T) {
	ctx := context.Background()
	db := dbtest.Open(t, &domain.LineItem{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	repo := Provide()
	now := time.Now().UTC()

	inputs := []domain.ItemInput{
		{Description: "Design", Quantity: decimal.NewFromInt(3), UnitPrice: decimal.NewFromInt(120)},
		{Description: "Hosting", Quantity: decimal.NewFromInt(1), Unit: "month", UnitPrice: decimal.RequireFromString("49.99")},
	}
	_, lines, err := domain.Price(inputs, decimal.Zero, nil)
	require.NoError(t, err)

	quoteID := node.Generate()
	otherID := node.Generate()
	require.NoError(t, repo.InsertItems(ctx, db, domain.NewLineItems(domain.KindQuote, quoteID, inputs, lines, node, now)))
	require.NoError(t, repo.InsertItems(ctx, db, domain.NewLineItems(domain.KindInvoice, quoteID, inputs[:1], lines[:1], node, now)))
	require.NoError(t, repo.InsertItems(ctx, db, domain.NewLineItems(domain.KindQuote, otherID, inputs[:1], lines[:1], node, now)))

	items, err := repo.ListItems(ctx, db, domain.KindQuote, quoteID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Design", items[0].Description)
	assert.Equal(t, "month", items[1].Unit)
	assert.True(t, items[1].Total.Equal(decimal.RequireFromString("49.99")))

	byDoc, err := repo.ListItemsFor(ctx, db, domain.KindQuote, []snowflake.ID{quoteID, otherID})
	require.NoError(t, err)
	assert.Len(t, byDoc[quoteID], 2)
	assert.Len(t, byDoc[otherID], 1)

	replacement := domain.NewLineItems(domain.KindQuote, quoteID, inputs[1:], lines[1:], node, now)
	require.NoError(t, repo.ReplaceItems(ctx, db, domain.KindQuote, quoteID, replacement))
	count, err := repo.CountItems(ctx, db, domain.KindQuote, quoteID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	deleted, err := repo.DeleteItems(ctx, db, domain.KindQuote, quoteID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	count, err = repo.CountItems(ctx, db, domain.KindInvoice, quoteID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "same id under another kind is untouched")
}
