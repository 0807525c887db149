package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewBillingConfigHolder_DefaultsWithoutFile(t *testing.T) {
	holder, err := NewBillingConfigHolder(Config{}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, DefaultBillingConfig(), holder.Get())
}

func TestNewBillingConfigHolder_ReadsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "billing.yml")
	content := []byte(`billing:
  currency: USD
  defaultTaxRate: 0.2
  sequenceStart: 5000
  allowOverpayment: true
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	holder, err := NewBillingConfigHolder(Config{BillingConfigPath: path}, zap.NewNop())
	require.NoError(t, err)

	cfg := holder.Get()
	assert.Equal(t, "USD", cfg.Currency)
	assert.Equal(t, 0.2, cfg.DefaultTaxRate)
	assert.Equal(t, int64(5000), cfg.SequenceStart)
	assert.True(t, cfg.AllowOverpayment)
	assert.Equal(t, DefaultInvoiceNumberTemplate, cfg.InvoiceNumberTemplate)
	assert.Equal(t, DefaultMaxWriteAttempts, cfg.Attempts())
}

func TestValidateBillingConfig(t *testing.T) {
	cfg := DefaultBillingConfig()
	assert.NoError(t, ValidateBillingConfig(cfg))

	bad := cfg
	bad.DefaultTaxRate = 1.5
	assert.Error(t, ValidateBillingConfig(bad))

	bad = cfg
	bad.SequenceStart = 0
	assert.Error(t, ValidateBillingConfig(bad))

	bad = cfg
	bad.Currency = " "
	assert.Error(t, ValidateBillingConfig(bad))
}

func TestBillingConfig_TaxRate(t *testing.T) {
	assert.Equal(t, "0.15", DefaultBillingConfig().TaxRate().String())
}
