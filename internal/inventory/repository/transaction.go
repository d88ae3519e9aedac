package repository

import (
	"context"
	"database/sql"
	stderrors "errors"

	"github.com/jmoiron/sqlx"

	"github.com/medflow/stockledger/internal/inventory/domain"
	"github.com/medflow/stockledger/pkg/errors"
)

const transactionColumns = `id, item_id, created_by, quantity, created_at, updated_at`

// TransactionRepository handles inventory transaction persistence
type TransactionRepository struct {
	db sqlx.ExtContext
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db sqlx.ExtContext) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Create inserts a transaction row
func (r *TransactionRepository) Create(ctx context.Context, tx *domain.Transaction) error {
	query := `
		INSERT INTO inventory_transactions (item_id, created_by, quantity)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query, tx.ItemID, tx.CreatedBy, tx.Quantity).
		Scan(&tx.ID, &tx.CreatedAt, &tx.UpdatedAt)
	if err != nil {
		return mapErr(err, "insert transaction")
	}
	return nil
}

// GetByID gets a transaction by ID
func (r *TransactionRepository) GetByID(ctx context.Context, id int64) (*domain.Transaction, error) {
	return r.get(ctx, `SELECT `+transactionColumns+` FROM inventory_transactions WHERE id = $1`, id)
}

// GetForUpdate gets a transaction and locks its row
func (r *TransactionRepository) GetForUpdate(ctx context.Context, id int64) (*domain.Transaction, error) {
	return r.get(ctx, `SELECT `+transactionColumns+` FROM inventory_transactions WHERE id = $1 FOR UPDATE`, id)
}

func (r *TransactionRepository) get(ctx context.Context, query string, id int64) (*domain.Transaction, error) {
	var tx domain.Transaction
	if err := sqlx.GetContext(ctx, r.db, &tx, query, id); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound("transaction")
		}
		return nil, mapErr(err, "get transaction")
	}
	return &tx, nil
}

// ListByItem lists an item's transactions, oldest first
func (r *TransactionRepository) ListByItem(ctx context.Context, itemID string) ([]domain.Transaction, error) {
	return r.list(ctx, `
		SELECT `+transactionColumns+` FROM inventory_transactions
		WHERE item_id = $1
		ORDER BY created_at, id
	`, itemID)
}

// ListByItemForUpdate lists and locks an item's transactions
func (r *TransactionRepository) ListByItemForUpdate(ctx context.Context, itemID string) ([]domain.Transaction, error) {
	return r.list(ctx, `
		SELECT `+transactionColumns+` FROM inventory_transactions
		WHERE item_id = $1
		ORDER BY id
		FOR UPDATE
	`, itemID)
}

func (r *TransactionRepository) list(ctx context.Context, query, itemID string) ([]domain.Transaction, error) {
	txs := []domain.Transaction{}
	if err := sqlx.SelectContext(ctx, r.db, &txs, query, itemID); err != nil {
		return nil, mapErr(err, "list transactions")
	}
	return txs, nil
}

// UpdateQuantity stores a new quantity; created_at is never touched
func (r *TransactionRepository) UpdateQuantity(ctx context.Context, tx *domain.Transaction) error {
	query := `
		UPDATE inventory_transactions SET quantity = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	if err := r.db.QueryRowxContext(ctx, query, tx.ID, tx.Quantity).Scan(&tx.UpdatedAt); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return errors.NotFound("transaction")
		}
		return mapErr(err, "update transaction")
	}
	return nil
}

// Delete removes a transaction row
func (r *TransactionRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM inventory_transactions WHERE id = $1`, id)
	if err != nil {
		return mapErr(err, "delete transaction")
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("transaction")
	}
	return nil
}
