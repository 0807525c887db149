package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// ItemRepository persists line items. Every method runs on the handle it is
// given so callers control the transaction.
type ItemRepository interface {
	InsertItems(ctx context.Context, db *gorm.DB, items []LineItem) error
	ReplaceItems(ctx context.Context, db *gorm.DB, kind Kind, documentID snowflake.ID, items []LineItem) error
	ListItems(ctx context.Context, db *gorm.DB, kind Kind, documentID snowflake.ID) ([]LineItem, error)
	ListItemsFor(ctx context.Context, db *gorm.DB, kind Kind, documentIDs []snowflake.ID) (map[snowflake.ID][]LineItem, error)
	DeleteItems(ctx context.Context, db *gorm.DB, kind Kind, documentID snowflake.ID) (int64, error)
	CountItems(ctx context.Context, db *gorm.DB, kind Kind, documentID snowflake.ID) (int64, error)
}
