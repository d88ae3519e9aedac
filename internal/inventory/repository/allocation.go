package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/medflow/stockledger/internal/inventory/domain"
	"github.com/medflow/stockledger/pkg/errors"
)

// AllocationRepository handles stock record persistence
type AllocationRepository struct {
	db sqlx.ExtContext
}

// NewAllocationRepository creates a new allocation record repository
func NewAllocationRepository(db sqlx.ExtContext) *AllocationRepository {
	return &AllocationRepository{db: db}
}

// CreateRecords inserts records in a single statement
func (r *AllocationRepository) CreateRecords(ctx context.Context, records []domain.AllocationRecord) ([]domain.AllocationRecord, error) {
	if len(records) == 0 {
		return nil, nil
	}

	values := make([]string, 0, len(records))
	args := make([]any, 0, len(records)*3)
	for i, rec := range records {
		n := i * 3
		values = append(values, fmt.Sprintf("($%d, $%d, $%d)", n+1, n+2, n+3))
		args = append(args, rec.TransactionID, rec.BatchID, rec.Quantity)
	}

	query := `
		INSERT INTO stock_records (transaction_id, batch_id, quantity)
		VALUES ` + strings.Join(values, ", ") + `
		RETURNING id, transaction_id, batch_id, quantity, created_at
	`

	created := make([]domain.AllocationRecord, 0, len(records))
	if err := sqlx.SelectContext(ctx, r.db, &created, query, args...); err != nil {
		return nil, mapErr(err, "insert stock records")
	}
	return created, nil
}

// ListByTransaction lists the records of a transaction
func (r *AllocationRepository) ListByTransaction(ctx context.Context, transactionID int64) ([]domain.AllocationRecord, error) {
	records := []domain.AllocationRecord{}
	query := `
		SELECT id, transaction_id, batch_id, quantity, created_at
		FROM stock_records
		WHERE transaction_id = $1
		ORDER BY id
	`
	if err := sqlx.SelectContext(ctx, r.db, &records, query, transactionID); err != nil {
		return nil, mapErr(err, "list stock records")
	}
	return records, nil
}

// DeleteRecord removes one record
func (r *AllocationRepository) DeleteRecord(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM stock_records WHERE id = $1`, id)
	if err != nil {
		return mapErr(err, "delete stock record")
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("allocation record")
	}
	return nil
}
