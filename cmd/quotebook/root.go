package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/quotebook/internal/audit"
	"github.com/smallbiznis/quotebook/internal/billingoverview"
	"github.com/smallbiznis/quotebook/internal/client"
	"github.com/smallbiznis/quotebook/internal/clock"
	"github.com/smallbiznis/quotebook/internal/config"
	"github.com/smallbiznis/quotebook/internal/conversion"
	"github.com/smallbiznis/quotebook/internal/document"
	"github.com/smallbiznis/quotebook/internal/invoice"
	"github.com/smallbiznis/quotebook/internal/lock"
	"github.com/smallbiznis/quotebook/internal/migration"
	"github.com/smallbiznis/quotebook/internal/observability"
	"github.com/smallbiznis/quotebook/internal/payment"
	"github.com/smallbiznis/quotebook/internal/quote"
	"github.com/smallbiznis/quotebook/internal/sequence"
	"github.com/smallbiznis/quotebook/internal/server"
	"github.com/smallbiznis/quotebook/pkg/db"
	"github.com/smallbiznis/quotebook/pkg/log"
	"github.com/smallbiznis/quotebook/pkg/telemetry"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "quotebook",
		Short:        "Quote, invoice and payment ledger service",
		Version:      version,
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd(), newMigrateCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Apply migrations and serve the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return start(fx.New(
				// Core infrastructure
				config.Module,
				log.Module,
				telemetry.Module,
				observability.Module,
				fx.Provide(NewSnowflakeNode),
				db.Module,
				migration.Module,
				clock.Module,
				lock.Module,

				// Billing engine
				audit.Module,
				client.Module,
				document.Module,
				sequence.Module,
				quote.Module,
				invoice.Module,
				payment.Module,
				conversion.Module,
				billingoverview.Module,

				server.Module,
			))
		},
	}
}

// start runs app until a shutdown signal arrives, or returns the error that
// kept the dependency graph from building.
func start(app *fx.App) error {
	if err := app.Err(); err != nil {
		return err
	}
	app.Run()
	return nil
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Bring the database schema up to date and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			logger, err := log.NewLogger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			dbCfg := db.ConfigFromApp(cfg)
			conn, err := db.Open(dbCfg, logger)
			if err != nil {
				return err
			}
			if sqlDB, err := conn.DB(); err == nil {
				defer sqlDB.Close()
			}

			if err := migration.Run(conn, dbCfg.Type); err != nil {
				return err
			}
			logger.Info("schema up to date", zap.String("db_type", dbCfg.Type))
			return nil
		},
	}
}

// NewSnowflakeNode builds the id generator for this process.
func NewSnowflakeNode(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeNode)
}
