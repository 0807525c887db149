package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/quotebook/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Invoice, error)
	// Update writes every mutable column and bumps the version. It fails with
	// db.ErrConflict when the stored version is no longer expectedVersion.
	Update(ctx context.Context, db *gorm.DB, invoice *Invoice, expectedVersion int64) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error)
	List(ctx context.Context, db *gorm.DB, filter ListInvoiceFilter, cursor *pagination.Cursor, limit int) ([]Invoice, error)
}
