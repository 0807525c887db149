package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/quotebook/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, quote *Quote) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Quote, error)
	// Update fails with db.ErrConflict when the stored version moved.
	Update(ctx context.Context, db *gorm.DB, quote *Quote, expectedVersion int64) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error)
	List(ctx context.Context, db *gorm.DB, filter ListQuoteFilter, cursor *pagination.Cursor, limit int) ([]Quote, error)
}
