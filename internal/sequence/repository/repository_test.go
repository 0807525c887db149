package repository

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/quotebook/internal/sequence/domain"
	"github.com/smallbiznis/quotebook/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func TestLockedCounter_ReadsForUpdate(t *testing.T) {
	conn, err := gorm.Open(postgres.New(postgres.Config{
		DSN: "host=localhost user=quotebook dbname=quotebook sslmode=disable",
	}), &gorm.Config{DryRun: true, DisableAutomaticPing: true})
	require.NoError(t, err)

	sql := conn.ToSQL(func(tx *gorm.DB) *gorm.DB {
		var rows []domain.Counter
		return lockedCounter(tx, "invoice").Find(&rows)
	})
	assert.Contains(t, sql, "kind = 'invoice'")
	assert.Contains(t, sql, "FOR UPDATE")
}

func TestRepo_InitCurrentCompareAndSwap(t *testing.T) {
	conn := dbtest.Open(t, &domain.Counter{})
	repo := Provide()
	ctx := context.Background()
	now := time.Date(2025, 11, 3, 8, 0, 0, 0, time.UTC)

	_, ok, err := repo.Current(ctx, conn, "quote")
	require.NoError(t, err)
	assert.False(t, ok)

	created, err := repo.Init(ctx, conn, "quote", 1001, now)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.Init(ctx, conn, "quote", 1001, now)
	require.NoError(t, err)
	assert.False(t, created, "second init loses")

	value, ok, err := repo.Current(ctx, conn, "quote")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(1001), value)

	swapped, err := repo.CompareAndSwap(ctx, conn, "quote", 1000, 1002, now)
	require.NoError(t, err)
	assert.False(t, swapped, "stale value")

	swapped, err = repo.CompareAndSwap(ctx, conn, "quote", 1001, 1002, now)
	require.NoError(t, err)
	assert.True(t, swapped)
}
