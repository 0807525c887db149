package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	// Current returns the stored value and whether the row exists.
	Current(ctx context.Context, db *gorm.DB, kind string) (int64, bool, error)
	// Init creates the row at value. It reports false if another caller won.
	Init(ctx context.Context, db *gorm.DB, kind string, value int64, now time.Time) (bool, error)
	// CompareAndSwap moves the counter from old to next, reporting false on a lost race.
	CompareAndSwap(ctx context.Context, db *gorm.DB, kind string, old, next int64, now time.Time) (bool, error)
}
