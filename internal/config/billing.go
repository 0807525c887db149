package config

import (
	"errors"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	DefaultCurrency              = "ZAR"
	DefaultQuoteNumberTemplate   = "QT-{YYYY}-{SEQ4}"
	DefaultInvoiceNumberTemplate = "INV-{YYYY}-{SEQ4}"
	DefaultSequenceStart         = 1001
	DefaultMaxWriteAttempts      = 5
)

// BillingConfig holds the engine policy knobs loaded from billing.yml.
type BillingConfig struct {
	Currency              string  `mapstructure:"currency"`
	DefaultTaxRate        float64 `mapstructure:"defaultTaxRate"`
	QuoteNumberTemplate   string  `mapstructure:"quoteNumberTemplate"`
	InvoiceNumberTemplate string  `mapstructure:"invoiceNumberTemplate"`
	SequenceStart         int64   `mapstructure:"sequenceStart"`
	MaxWriteAttempts      int     `mapstructure:"maxWriteAttempts"`
	AllowOverpayment      bool    `mapstructure:"allowOverpayment"`
	StrictTransitions     bool    `mapstructure:"strictTransitions"`
}

func DefaultBillingConfig() BillingConfig {
	return BillingConfig{
		Currency:              DefaultCurrency,
		DefaultTaxRate:        0.15,
		QuoteNumberTemplate:   DefaultQuoteNumberTemplate,
		InvoiceNumberTemplate: DefaultInvoiceNumberTemplate,
		SequenceStart:         DefaultSequenceStart,
		MaxWriteAttempts:      DefaultMaxWriteAttempts,
	}
}

// TaxRate returns the default tax rate as a decimal fraction.
func (c BillingConfig) TaxRate() decimal.Decimal {
	return decimal.NewFromFloat(c.DefaultTaxRate)
}

// Attempts returns the bounded number of optimistic write attempts.
func (c BillingConfig) Attempts() int {
	if c.MaxWriteAttempts <= 0 {
		return DefaultMaxWriteAttempts
	}
	return c.MaxWriteAttempts
}

// BillingProvider exposes the current billing configuration.
type BillingProvider interface {
	Get() BillingConfig
}

// StaticBilling is a fixed BillingProvider, used by tests and tools.
type StaticBilling BillingConfig

func (s StaticBilling) Get() BillingConfig { return BillingConfig(s) }

type BillingConfigHolder struct {
	current atomic.Value // holds BillingConfig
}

// NewBillingConfigHolder reads billing.yml and watches it for changes.
// A missing file falls back to DefaultBillingConfig.
func NewBillingConfigHolder(cfg Config, log *zap.Logger) (*BillingConfigHolder, error) {
	v := viper.New()

	if cfg.BillingConfigPath != "" {
		v.SetConfigFile(cfg.BillingConfigPath)
	} else {
		v.SetConfigName("billing")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/quotebook")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("QUOTEBOOK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultBillingConfig()
	v.SetDefault("billing.currency", defaults.Currency)
	v.SetDefault("billing.defaultTaxRate", defaults.DefaultTaxRate)
	v.SetDefault("billing.quoteNumberTemplate", defaults.QuoteNumberTemplate)
	v.SetDefault("billing.invoiceNumberTemplate", defaults.InvoiceNumberTemplate)
	v.SetDefault("billing.sequenceStart", defaults.SequenceStart)
	v.SetDefault("billing.maxWriteAttempts", defaults.MaxWriteAttempts)
	v.SetDefault("billing.allowOverpayment", defaults.AllowOverpayment)
	v.SetDefault("billing.strictTransitions", defaults.StrictTransitions)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fileLoaded = false
	}

	var billing BillingConfig
	if err := v.UnmarshalKey("billing", &billing); err != nil {
		return nil, err
	}
	if err := ValidateBillingConfig(billing); err != nil {
		return nil, err
	}

	holder := &BillingConfigHolder{}
	holder.current.Store(billing)

	if !fileLoaded {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated BillingConfig
		if err := v.UnmarshalKey("billing", &updated); err != nil {
			log.Warn("billing config reload failed", zap.String("file", filepath.Base(e.Name)), zap.Error(err))
			return
		}
		if err := ValidateBillingConfig(updated); err != nil {
			log.Warn("billing config ignored", zap.String("file", filepath.Base(e.Name)), zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("billing config reloaded", zap.String("file", filepath.Base(e.Name)))
	})

	return holder, nil
}

func (h *BillingConfigHolder) Get() BillingConfig {
	return h.current.Load().(BillingConfig)
}

func ValidateBillingConfig(cfg BillingConfig) error {
	if strings.TrimSpace(cfg.Currency) == "" {
		return errors.New("billing.currency cannot be empty")
	}
	if cfg.DefaultTaxRate < 0 || cfg.DefaultTaxRate > 1 {
		return errors.New("billing.defaultTaxRate must be between 0 and 1")
	}
	if strings.TrimSpace(cfg.QuoteNumberTemplate) == "" || strings.TrimSpace(cfg.InvoiceNumberTemplate) == "" {
		return errors.New("billing number templates cannot be empty")
	}
	if cfg.SequenceStart <= 0 {
		return errors.New("billing.sequenceStart must be positive")
	}
	return nil
}
