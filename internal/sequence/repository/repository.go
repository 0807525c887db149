package repository

import (
	"context"
	"time"

	"github.com/smallbiznis/quotebook/internal/sequence/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

// Current reads the counter with FOR UPDATE, so a locking read sees the latest
// committed value even under REPEATABLE READ. SQLite drops the clause.
func (r *repo) Current(ctx context.Context, db *gorm.DB, kind string) (int64, bool, error) {
	var rows []domain.Counter
	if err := lockedCounter(db.WithContext(ctx), kind).Find(&rows).Error; err != nil {
		return 0, false, err
	}
	if len(rows) == 0 {
		return 0, false, nil
	}
	return rows[0].Value, true, nil
}

func (r *repo) Init(ctx context.Context, db *gorm.DB, kind string, value int64, now time.Time) (bool, error) {
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&domain.Counter{Kind: kind, Value: value, UpdatedAt: now})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) CompareAndSwap(ctx context.Context, db *gorm.DB, kind string, old, next int64, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE counters SET value = ?, updated_at = ? WHERE kind = ? AND value = ?`,
		next,
		now,
		kind,
		old,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func lockedCounter(db *gorm.DB, kind string) *gorm.DB {
	return db.Model(&domain.Counter{}).
		Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
		Where("kind = ?", kind).
		Limit(1)
}
