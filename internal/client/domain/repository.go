package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/quotebook/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, client *Client) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Client, error)
	FindByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]Client, error)
	List(ctx context.Context, db *gorm.DB, filter ListClientFilter, cursor *pagination.Cursor, limit int) ([]Client, error)
}
