package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/quotebook/internal/document/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.ItemRepository {
	return &repo{}
}

func (r *repo) InsertItems(ctx context.Context, db *gorm.DB, items []domain.LineItem) error {
	if len(items) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&items).Error
}

func (r *repo) ReplaceItems(ctx context.Context, db *gorm.DB, kind domain.Kind, documentID snowflake.ID, items []domain.LineItem) error {
	if _, err := r.DeleteItems(ctx, db, kind, documentID); err != nil {
		return err
	}
	return r.InsertItems(ctx, db, items)
}

func (r *repo) ListItems(ctx context.Context, db *gorm.DB, kind domain.Kind, documentID snowflake.ID) ([]domain.LineItem, error) {
	var items []domain.LineItem
	err := db.WithContext(ctx).Raw(
		`SELECT id, document_kind, document_id, position, description, quantity, unit, unit_price, total, created_at
		 FROM line_items WHERE document_kind = ? AND document_id = ?
		 ORDER BY position ASC, id ASC`,
		kind,
		documentID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListItemsFor(ctx context.Context, db *gorm.DB, kind domain.Kind, documentIDs []snowflake.ID) (map[snowflake.ID][]domain.LineItem, error) {
	out := make(map[snowflake.ID][]domain.LineItem, len(documentIDs))
	if len(documentIDs) == 0 {
		return out, nil
	}

	var items []domain.LineItem
	err := db.WithContext(ctx).
		Where("document_kind = ? AND document_id IN ?", kind, documentIDs).
		Order("document_id ASC, position ASC, id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		out[item.DocumentID] = append(out[item.DocumentID], item)
	}
	return out, nil
}

func (r *repo) DeleteItems(ctx context.Context, db *gorm.DB, kind domain.Kind, documentID snowflake.ID) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`DELETE FROM line_items WHERE document_kind = ? AND document_id = ?`,
		kind,
		documentID,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) CountItems(ctx context.Context, db *gorm.DB, kind domain.Kind, documentID snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.LineItem{}).
		Where("document_kind = ? AND document_id = ?", kind, documentID).
		Count(&count).Error
	return count, err
}
