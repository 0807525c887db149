package ctxlogger

import (
	"context"
	"testing"

	"github.com/smallbiznis/quotebook/pkg/telemetry/correlation"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithContext_AddsCorrelationAndDocument(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	SetServiceName("quotebook")

	ctx := correlation.ContextWithCorrelationID(context.Background(), "cid-1")
	ctx = ContextWithDocument(ctx, "invoice:42")
	WithContext(ctx, zap.New(core)).Info("hello")

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		fields := entries[0].ContextMap()
		assert.Equal(t, "cid-1", fields["correlation_id"])
		assert.Equal(t, "invoice:42", fields["document"])
		assert.Equal(t, "quotebook", fields["service"])
		assert.NotContains(t, fields, "trace_id")
	}
}
