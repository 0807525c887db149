package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	auditdomain "github.com/smallbiznis/quotebook/internal/audit/domain"
	clientdomain "github.com/smallbiznis/quotebook/internal/client/domain"
	docdomain "github.com/smallbiznis/quotebook/internal/document/domain"
	invoicedomain "github.com/smallbiznis/quotebook/internal/invoice/domain"
	paymentdomain "github.com/smallbiznis/quotebook/internal/payment/domain"
	quotedomain "github.com/smallbiznis/quotebook/internal/quote/domain"
	seqdomain "github.com/smallbiznis/quotebook/internal/sequence/domain"
	"gorm.io/gorm"
)

// Models lists every persisted table, used where the SQL migrations do not
// apply.
func Models() []any {
	return []any{
		&clientdomain.Client{},
		&seqdomain.Counter{},
		&quotedomain.Quote{},
		&invoicedomain.Invoice{},
		&docdomain.LineItem{},
		&paymentdomain.Payment{},
		&auditdomain.AuditLog{},
	}
}

// Run brings the schema up to date. Postgres uses the embedded versioned
// migrations; mysql and sqlite fall back to gorm AutoMigrate.
func Run(conn *gorm.DB, dbType string) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}
	if dbType != "postgres" {
		return conn.AutoMigrate(Models()...)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return RunMigrations(sqlDB)
}

// Source opens the embedded migration files.
func Source() (source.Driver, error) {
	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("open migrations: %w", err)
	}

	src, err := iofs.New(sub, ".")
	if err != nil {
		return nil, fmt.Errorf("create migration source: %w", err)
	}
	return src, nil
}

func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	src, err := Source()
	if err != nil {
		return err
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}
