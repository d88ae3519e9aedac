// Package allocation draws stock for transactions from expiry-dated batches,
// soonest expiration first, and gives it back when a transaction is undone.
//
// The engine holds no state of its own. It works against the repositories of
// a single unit of work, so a failure anywhere leaves nothing committed.
package allocation

import (
	"context"
	"fmt"
	"time"

	"github.com/medflow/stockledger/internal/inventory/domain"
	"github.com/medflow/stockledger/pkg/errors"
)

// BatchLedger is the stock side of a unit of work.
type BatchLedger interface {
	// EligibleBatches returns the item's batches expiring on or after asOf,
	// ordered by expiration date then id, locked for the unit of work.
	EligibleBatches(ctx context.Context, itemID string, asOf time.Time) ([]domain.StockBatch, error)
	Debit(ctx context.Context, batchID int64, amount int) error
	Credit(ctx context.Context, batchID int64, amount int) error
}

// RecordStore persists allocation records.
type RecordStore interface {
	CreateRecords(ctx context.Context, records []domain.AllocationRecord) ([]domain.AllocationRecord, error)
	ListByTransaction(ctx context.Context, transactionID int64) ([]domain.AllocationRecord, error)
	DeleteRecord(ctx context.Context, id int64) error
}

// Engine allocates and reverses stock within one unit of work.
type Engine struct {
	batches BatchLedger
	records RecordStore
}

// NewEngine binds an engine to the repositories of a unit of work.
func NewEngine(batches BatchLedger, records RecordStore) *Engine {
	return &Engine{batches: batches, records: records}
}

// Allocate draws quantity of itemID for transactionID from batches eligible
// on asOf. The plan is computed before any debit, so an InsufficientStock
// error leaves every batch untouched.
func (e *Engine) Allocate(ctx context.Context, transactionID int64, itemID string, quantity int, asOf time.Time) ([]domain.AllocationRecord, error) {
	if quantity <= 0 {
		return nil, errors.InvalidField("quantity", "must be greater than zero")
	}

	eligible, err := e.batches.EligibleBatches(ctx, itemID, domain.DateOf(asOf))
	if err != nil {
		return nil, fmt.Errorf("load eligible batches: %w", err)
	}

	plan := PlanFIFO(eligible, quantity)
	if plan.Shortfall() > 0 {
		return nil, errors.InsufficientStock(quantity, plan.Allocated)
	}

	records := make([]domain.AllocationRecord, 0, len(plan.Takes))
	for _, take := range plan.Takes {
		if err := e.batches.Debit(ctx, take.BatchID, take.Quantity); err != nil {
			return nil, fmt.Errorf("debit batch %d: %w", take.BatchID, err)
		}
		records = append(records, domain.AllocationRecord{
			TransactionID: transactionID,
			BatchID:       take.BatchID,
			Quantity:      take.Quantity,
		})
	}

	created, err := e.records.CreateRecords(ctx, records)
	if err != nil {
		return nil, fmt.Errorf("persist allocation records: %w", err)
	}
	return created, nil
}

// Reverse credits every batch transactionID drew from and deletes the
// records. It returns the total quantity put back.
func (e *Engine) Reverse(ctx context.Context, transactionID int64) (int, error) {
	records, err := e.records.ListByTransaction(ctx, transactionID)
	if err != nil {
		return 0, fmt.Errorf("load allocation records: %w", err)
	}

	restored := 0
	for _, r := range records {
		if err := e.batches.Credit(ctx, r.BatchID, r.Quantity); err != nil {
			return 0, fmt.Errorf("credit batch %d: %w", r.BatchID, err)
		}
		if err := e.records.DeleteRecord(ctx, r.ID); err != nil {
			return 0, fmt.Errorf("delete allocation record %d: %w", r.ID, err)
		}
		restored += r.Quantity
	}
	return restored, nil
}
