package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/quotebook/internal/quote/domain"
	"github.com/smallbiznis/quotebook/pkg/db"
	"github.com/smallbiznis/quotebook/pkg/db/pagination"
	"gorm.io/gorm"
)

const quoteColumns = `id, number, client_id, job_id, status,
	subtotal, tax_rate, tax_amount, discount_type, discount_value, discount_amount, total,
	valid_until, sent_at, viewed_at, notes, internal_notes, version, created_at, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, quote *domain.Quote) error {
	if quote.Version == 0 {
		quote.Version = 1
	}
	return db.WithContext(ctx).Create(quote).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Quote, error) {
	var quote domain.Quote
	err := db.WithContext(ctx).Raw(
		`SELECT `+quoteColumns+` FROM quotes WHERE id = ?`,
		id,
	).Scan(&quote).Error
	if err != nil {
		return nil, err
	}
	if quote.ID == 0 {
		return nil, nil
	}
	return &quote, nil
}

func (r *repo) Update(ctx context.Context, conn *gorm.DB, quote *domain.Quote, expectedVersion int64) error {
	res := conn.WithContext(ctx).Exec(
		`UPDATE quotes SET
			status = ?, subtotal = ?, tax_rate = ?, tax_amount = ?,
			discount_type = ?, discount_value = ?, discount_amount = ?, total = ?,
			valid_until = ?, sent_at = ?, viewed_at = ?,
			notes = ?, internal_notes = ?, version = ?, updated_at = ?
		 WHERE id = ? AND version = ?`,
		quote.Status,
		quote.Subtotal,
		quote.TaxRate,
		quote.TaxAmount,
		quote.DiscountType,
		quote.DiscountValue,
		quote.DiscountAmount,
		quote.Total,
		quote.ValidUntil,
		quote.SentAt,
		quote.ViewedAt,
		quote.Notes,
		quote.InternalNotes,
		expectedVersion+1,
		quote.UpdatedAt,
		quote.ID,
		expectedVersion,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return db.ErrConflict
	}
	quote.Version = expectedVersion + 1
	return nil
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error) {
	res := db.WithContext(ctx).Exec(`DELETE FROM quotes WHERE id = ?`, id)
	return res.RowsAffected, res.Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListQuoteFilter, cursor *pagination.Cursor, limit int) ([]domain.Quote, error) {
	var quotes []domain.Quote
	stmt := db.WithContext(ctx).Model(&domain.Quote{})
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.ClientID != 0 {
		stmt = stmt.Where("client_id = ?", filter.ClientID)
	}
	if cursor != nil {
		stmt = stmt.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}
	err := stmt.
		Order("created_at desc, id desc").
		Limit(limit + 1).
		Find(&quotes).Error
	if err != nil {
		return nil, err
	}
	return quotes, nil
}
