package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/quotebook/internal/audit/domain"
	"github.com/smallbiznis/quotebook/internal/audit/repository"
	"github.com/smallbiznis/quotebook/internal/clock"
	"github.com/smallbiznis/quotebook/pkg/db/dbtest"
	"github.com/smallbiznis/quotebook/pkg/db/pagination"
	"github.com/smallbiznis/quotebook/pkg/telemetry/correlation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestAuditLogAndList(t *testing.T) {
	db := dbtest.Open(t, &auditdomain.AuditLog{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC))

	svc := NewService(Params{DB: db, Log: zap.NewNop(), GenID: node, Clock: clk, Repo: repository.Provide()})
	ctx := correlation.ContextWithCorrelationID(context.Background(), "cid-audit")

	require.NoError(t, svc.AuditLog(ctx, "invoice.created", "invoice", "1", map[string]any{"number": "INV-2025-1001"}))
	clk.Advance(time.Second)
	require.NoError(t, svc.AuditLog(ctx, "invoice.status_changed", "invoice", "1", map[string]any{"to": "sent"}))
	clk.Advance(time.Second)
	require.NoError(t, svc.AuditLog(ctx, "quote.created", "quote", "2", nil))

	assert.ErrorIs(t, svc.AuditLog(ctx, " ", "invoice", "1", nil), auditdomain.ErrInvalidAction)

	resp, err := svc.List(ctx, auditdomain.ListAuditLogRequest{TargetType: "invoice", TargetID: "1"})
	require.NoError(t, err)
	require.Len(t, resp.AuditLogs, 2)
	assert.Equal(t, "invoice.status_changed", resp.AuditLogs[0].Action)
	assert.Equal(t, "cid-audit", resp.AuditLogs[0].CorrelationID)
	assert.Equal(t, "sent", resp.AuditLogs[0].Metadata["to"])

	page, err := svc.List(ctx, auditdomain.ListAuditLogRequest{Pagination: pagination.Pagination{PageSize: 1}})
	require.NoError(t, err)
	require.Len(t, page.AuditLogs, 1)
	assert.True(t, page.HasMore)
	assert.Equal(t, "quote.created", page.AuditLogs[0].Action)
}
