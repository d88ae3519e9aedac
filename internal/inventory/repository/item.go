package repository

import (
	"context"
	"database/sql"
	stderrors "errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/medflow/stockledger/internal/inventory/domain"
	"github.com/medflow/stockledger/pkg/errors"
)

const itemColumns = `i.id, i.category, i.subcategory, i.item_name, i.brand_name, i.generic_name,
	i.dosage_form, i.strength_per_size, i.packaging, i.quantity, i.unit_size,
	i.created_by, i.created_at, i.updated_at`

// total_stock is derived from the batches on every read
const totalStockColumn = `COALESCE((SELECT SUM(b.quantity) FROM stock_batches b WHERE b.item_id = i.id), 0) AS total_stock`

// storedID reports whether id could name a stored item. Item ids are UUIDs;
// anything else is not found rather than a malformed lookup.
func storedID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// ItemRepository handles item persistence
type ItemRepository struct {
	db sqlx.ExtContext
}

// NewItemRepository creates a new item repository
func NewItemRepository(db sqlx.ExtContext) *ItemRepository {
	return &ItemRepository{db: db}
}

// Create creates a new item
func (r *ItemRepository) Create(ctx context.Context, item *domain.Item) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}

	query := `
		INSERT INTO inventory_items (
			id, category, subcategory, item_name, brand_name, generic_name,
			dosage_form, strength_per_size, packaging, quantity, unit_size, created_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		item.ID, item.Category, item.Subcategory, item.ItemName, item.BrandName,
		item.GenericName, item.DosageForm, item.StrengthPerSize, item.Packaging,
		item.Quantity, item.UnitSize, item.CreatedBy,
	).Scan(&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return mapErr(err, "insert item")
	}
	return nil
}

// GetByID gets an item with its current total stock
func (r *ItemRepository) GetByID(ctx context.Context, id string) (*domain.ItemStock, error) {
	if !storedID(id) {
		return nil, errors.NotFound("item")
	}
	var item domain.ItemStock
	query := `SELECT ` + itemColumns + `, ` + totalStockColumn + ` FROM inventory_items i WHERE i.id = $1`
	if err := sqlx.GetContext(ctx, r.db, &item, query, id); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound("item")
		}
		return nil, mapErr(err, "get item")
	}
	return &item, nil
}

// Exists reports whether an item with id exists
func (r *ItemRepository) Exists(ctx context.Context, id string) (bool, error) {
	if !storedID(id) {
		return false, nil
	}
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM inventory_items WHERE id = $1)`
	if err := sqlx.GetContext(ctx, r.db, &exists, query, id); err != nil {
		return false, mapErr(err, "check item")
	}
	return exists, nil
}

// List lists items, newest first, with their total stock
func (r *ItemRepository) List(ctx context.Context, filter ItemFilter) ([]domain.ItemStock, int64, error) {
	var total int64
	countQuery := `SELECT COUNT(*) FROM inventory_items i WHERE ($1 = '' OR i.category = $1)`
	if err := sqlx.GetContext(ctx, r.db, &total, countQuery, filter.Category); err != nil {
		return nil, 0, mapErr(err, "count items")
	}

	items := []domain.ItemStock{}
	query := `
		SELECT ` + itemColumns + `, ` + totalStockColumn + `
		FROM inventory_items i
		WHERE ($1 = '' OR i.category = $1)
		ORDER BY i.created_at DESC, i.id
		LIMIT $2 OFFSET $3
	`
	if err := sqlx.SelectContext(ctx, r.db, &items, query, filter.Category, filter.Limit, filter.Offset); err != nil {
		return nil, 0, mapErr(err, "list items")
	}
	return items, total, nil
}

// Lock takes a row lock on the item
func (r *ItemRepository) Lock(ctx context.Context, id string) error {
	if !storedID(id) {
		return errors.NotFound("item")
	}
	var locked string
	query := `SELECT id FROM inventory_items WHERE id = $1 FOR UPDATE`
	if err := sqlx.GetContext(ctx, r.db, &locked, query, id); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return errors.NotFound("item")
		}
		return mapErr(err, "lock item")
	}
	return nil
}

// Delete deletes an item; its batches go with it
func (r *ItemRepository) Delete(ctx context.Context, id string) error {
	if !storedID(id) {
		return errors.NotFound("item")
	}
	result, err := r.db.ExecContext(ctx, `DELETE FROM inventory_items WHERE id = $1`, id)
	if err != nil {
		return mapErr(err, "delete item")
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("item")
	}
	return nil
}
