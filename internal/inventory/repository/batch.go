package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/medflow/stockledger/internal/inventory/domain"
	"github.com/medflow/stockledger/pkg/errors"
)

const batchColumns = `id, item_id, delivery_date, expiration_date, quantity, created_by, created_at, updated_at`

// BatchRepository handles stock batch persistence
type BatchRepository struct {
	db sqlx.ExtContext
}

// NewBatchRepository creates a new batch repository
func NewBatchRepository(db sqlx.ExtContext) *BatchRepository {
	return &BatchRepository{db: db}
}

// Create creates a new batch
func (r *BatchRepository) Create(ctx context.Context, batch *domain.StockBatch) error {
	query := `
		INSERT INTO stock_batches (item_id, delivery_date, expiration_date, quantity, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		batch.ItemID, dateArg(batch.DeliveryDate), dateArg(batch.ExpirationDate),
		batch.Quantity, batch.CreatedBy,
	).Scan(&batch.ID, &batch.CreatedAt, &batch.UpdatedAt)
	if err != nil {
		return mapErr(err, "insert batch")
	}
	return nil
}

// GetByID gets a batch by ID
func (r *BatchRepository) GetByID(ctx context.Context, id int64) (*domain.StockBatch, error) {
	var batch domain.StockBatch
	query := `SELECT ` + batchColumns + ` FROM stock_batches WHERE id = $1`
	if err := sqlx.GetContext(ctx, r.db, &batch, query, id); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound("batch")
		}
		return nil, mapErr(err, "get batch")
	}
	return &batch, nil
}

// ListByItem lists all batches of an item, expired ones included
func (r *BatchRepository) ListByItem(ctx context.Context, itemID string) ([]domain.StockBatch, error) {
	batches := []domain.StockBatch{}
	query := `
		SELECT ` + batchColumns + ` FROM stock_batches
		WHERE item_id = $1
		ORDER BY expiration_date, id
	`
	if err := sqlx.SelectContext(ctx, r.db, &batches, query, itemID); err != nil {
		return nil, mapErr(err, "list batches")
	}
	return batches, nil
}

// EligibleBatches returns the item's batches that have not expired as of
// asOf, FIFO by expiration. The rows stay locked until the transaction ends.
func (r *BatchRepository) EligibleBatches(ctx context.Context, itemID string, asOf time.Time) ([]domain.StockBatch, error) {
	batches := []domain.StockBatch{}
	query := `
		SELECT ` + batchColumns + ` FROM stock_batches
		WHERE item_id = $1 AND expiration_date >= $2
		ORDER BY expiration_date, id
		FOR UPDATE
	`
	if err := sqlx.SelectContext(ctx, r.db, &batches, query, itemID, dateArg(asOf)); err != nil {
		return nil, mapErr(err, "select eligible batches")
	}
	return batches, nil
}

// Debit takes amount out of a batch. The guard in the WHERE clause keeps the
// quantity from going negative even without a prior lock.
func (r *BatchRepository) Debit(ctx context.Context, batchID int64, amount int) error {
	if amount <= 0 {
		return errors.InvalidField("amount", "must be greater than zero")
	}

	var remaining int
	query := `
		UPDATE stock_batches SET quantity = quantity - $2, updated_at = NOW()
		WHERE id = $1 AND quantity >= $2
		RETURNING quantity
	`
	err := r.db.QueryRowxContext(ctx, query, batchID, amount).Scan(&remaining)
	if err == nil {
		return nil
	}
	if !stderrors.Is(err, sql.ErrNoRows) {
		return mapErr(err, "debit batch")
	}

	// Either the batch is gone or it holds less than amount
	batch, getErr := r.GetByID(ctx, batchID)
	if getErr != nil {
		return getErr
	}
	return errors.InsufficientQuantity(batchID, amount, batch.Quantity)
}

// Credit puts amount back into a batch
func (r *BatchRepository) Credit(ctx context.Context, batchID int64, amount int) error {
	if amount <= 0 {
		return errors.InvalidField("amount", "must be greater than zero")
	}

	query := `UPDATE stock_batches SET quantity = quantity + $2, updated_at = NOW() WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, batchID, amount)
	if err != nil {
		return mapErr(err, "credit batch")
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("batch")
	}
	return nil
}

// Update overwrites a batch's dates and quantity
func (r *BatchRepository) Update(ctx context.Context, batch *domain.StockBatch) error {
	query := `
		UPDATE stock_batches SET
			delivery_date = $2, expiration_date = $3, quantity = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING item_id, created_by, created_at, updated_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		batch.ID, dateArg(batch.DeliveryDate), dateArg(batch.ExpirationDate), batch.Quantity,
	).Scan(&batch.ItemID, &batch.CreatedBy, &batch.CreatedAt, &batch.UpdatedAt)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return errors.NotFound("batch")
		}
		return mapErr(err, "update batch")
	}
	return nil
}

// TotalStock sums every batch of the item, expired ones included
func (r *BatchRepository) TotalStock(ctx context.Context, itemID string) (int, error) {
	var total int
	query := `SELECT COALESCE(SUM(quantity), 0) FROM stock_batches WHERE item_id = $1`
	if err := sqlx.GetContext(ctx, r.db, &total, query, itemID); err != nil {
		return 0, mapErr(err, "sum stock")
	}
	return total, nil
}

// ListExpiring lists non-empty batches expiring on or before until
func (r *BatchRepository) ListExpiring(ctx context.Context, until time.Time) ([]domain.StockBatch, error) {
	batches := []domain.StockBatch{}
	query := `
		SELECT ` + batchColumns + ` FROM stock_batches
		WHERE quantity > 0 AND expiration_date <= $1
		ORDER BY expiration_date, id
	`
	if err := sqlx.SelectContext(ctx, r.db, &batches, query, dateArg(until)); err != nil {
		return nil, mapErr(err, "list expiring batches")
	}
	return batches, nil
}
