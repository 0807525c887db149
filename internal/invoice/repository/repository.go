package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/quotebook/internal/invoice/domain"
	"github.com/smallbiznis/quotebook/pkg/db"
	"github.com/smallbiznis/quotebook/pkg/db/pagination"
	"gorm.io/gorm"
)

const invoiceColumns = `id, number, client_id, job_id, quote_id, status,
	subtotal, tax_rate, tax_amount, discount_type, discount_value, discount_amount, total,
	amount_paid, amount_due, issued_at, due_date, sent_at, viewed_at, paid_at,
	notes, internal_notes, version, created_at, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, invoice *domain.Invoice) error {
	if invoice.Version == 0 {
		invoice.Version = 1
	}
	return db.WithContext(ctx).Create(invoice).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Invoice, error) {
	var invoice domain.Invoice
	err := db.WithContext(ctx).Raw(
		`SELECT `+invoiceColumns+` FROM invoices WHERE id = ?`,
		id,
	).Scan(&invoice).Error
	if err != nil {
		return nil, err
	}
	if invoice.ID == 0 {
		return nil, nil
	}
	return &invoice, nil
}

func (r *repo) Update(ctx context.Context, conn *gorm.DB, invoice *domain.Invoice, expectedVersion int64) error {
	res := conn.WithContext(ctx).Exec(
		`UPDATE invoices SET
			status = ?, subtotal = ?, tax_rate = ?, tax_amount = ?,
			discount_type = ?, discount_value = ?, discount_amount = ?, total = ?,
			amount_paid = ?, amount_due = ?, due_date = ?, sent_at = ?, viewed_at = ?, paid_at = ?,
			notes = ?, internal_notes = ?, version = ?, updated_at = ?
		 WHERE id = ? AND version = ?`,
		invoice.Status,
		invoice.Subtotal,
		invoice.TaxRate,
		invoice.TaxAmount,
		invoice.DiscountType,
		invoice.DiscountValue,
		invoice.DiscountAmount,
		invoice.Total,
		invoice.AmountPaid,
		invoice.AmountDue,
		invoice.DueDate,
		invoice.SentAt,
		invoice.ViewedAt,
		invoice.PaidAt,
		invoice.Notes,
		invoice.InternalNotes,
		expectedVersion+1,
		invoice.UpdatedAt,
		invoice.ID,
		expectedVersion,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return db.ErrConflict
	}
	invoice.Version = expectedVersion + 1
	return nil
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error) {
	res := db.WithContext(ctx).Exec(`DELETE FROM invoices WHERE id = ?`, id)
	return res.RowsAffected, res.Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListInvoiceFilter, cursor *pagination.Cursor, limit int) ([]domain.Invoice, error) {
	var invoices []domain.Invoice
	stmt := db.WithContext(ctx).Model(&domain.Invoice{})
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.ClientID != 0 {
		stmt = stmt.Where("client_id = ?", filter.ClientID)
	}
	if filter.QuoteID != 0 {
		stmt = stmt.Where("quote_id = ?", filter.QuoteID)
	}
	if cursor != nil {
		stmt = stmt.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}
	err := stmt.
		Order("created_at desc, id desc").
		Limit(limit + 1).
		Find(&invoices).Error
	if err != nil {
		return nil, err
	}
	return invoices, nil
}
