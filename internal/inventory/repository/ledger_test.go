package repository_test

import (
	"context"
	"database/sql"
	"io"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medflow/stockledger/internal/inventory/domain"
	"github.com/medflow/stockledger/internal/inventory/repository"
	"github.com/medflow/stockledger/pkg/database"
	"github.com/medflow/stockledger/pkg/errors"
	"github.com/medflow/stockledger/pkg/logger"
	"github.com/medflow/stockledger/pkg/testutil"
)

const storedItemID = "6f1c2a9e-3b4d-4e8f-9a0b-1c2d3e4f5a6b"

func TestItemRepository_Create_AssignsID(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	now := time.Now()
	mockDB.ExpectQuery("INSERT INTO inventory_items").
		WithArgs(testutil.AnyUUID{}, sqlmock.AnyArg(), sqlmock.AnyArg(), "Paracetamol 500",
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), 10, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(testutil.MockRows("created_at", "updated_at").AddRow(now, now))

	repo := repository.NewItemRepository(mockDB.DB)
	item := newItem("Paracetamol 500")
	require.NoError(t, repo.Create(context.Background(), item))

	assert.NotEmpty(t, item.ID)
	assert.Equal(t, now, item.CreatedAt)
	mockDB.ExpectationsWereMet(t)
}

func TestItemRepository_GetByID_NotFound(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	mockDB.ExpectQuery("FROM inventory_items i WHERE i.id = $1").
		WithArgs(storedItemID).
		WillReturnError(sql.ErrNoRows)

	repo := repository.NewItemRepository(mockDB.DB)
	_, err := repo.GetByID(context.Background(), storedItemID)

	assert.True(t, errors.Is(err, errors.ErrNotFound))
	mockDB.ExpectationsWereMet(t)
}

func TestItemRepository_Lock(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	mockDB.ExpectQuery("SELECT id FROM inventory_items WHERE id = $1 FOR UPDATE").
		WithArgs(storedItemID).
		WillReturnRows(testutil.MockRows("id").AddRow(storedItemID))

	repo := repository.NewItemRepository(mockDB.DB)
	require.NoError(t, repo.Lock(context.Background(), storedItemID))
	mockDB.ExpectationsWereMet(t)
}

func TestItemRepository_Delete_NotFound(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	mockDB.ExpectExec("DELETE FROM inventory_items WHERE id = $1").
		WithArgs(storedItemID).
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := repository.NewItemRepository(mockDB.DB)
	err := repo.Delete(context.Background(), storedItemID)

	assert.True(t, errors.Is(err, errors.ErrNotFound))
	mockDB.ExpectationsWereMet(t)
}

func TestItemRepository_NonUUIDIsNotFound(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	repo := repository.NewItemRepository(mockDB.DB)
	ctx := context.Background()

	_, err := repo.GetByID(ctx, "not-a-uuid")
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	exists, err := repo.Exists(ctx, "not-a-uuid")
	require.NoError(t, err)
	assert.False(t, exists)

	assert.True(t, errors.Is(repo.Lock(ctx, "not-a-uuid"), errors.ErrNotFound))
	assert.True(t, errors.Is(repo.Delete(ctx, "not-a-uuid"), errors.ErrNotFound))

	// no statement reaches the database
	mockDB.ExpectationsWereMet(t)
}

func TestTransactionRepository_Create_MissingItem(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	mockDB.ExpectQuery("INSERT INTO inventory_transactions (item_id, created_by, quantity)").
		WithArgs("item-1", "user-1", 3).
		WillReturnError(&pq.Error{Code: "23503", Constraint: "inventory_transactions_item_id_fkey"})

	repo := repository.NewTransactionRepository(mockDB.DB)
	err := repo.Create(context.Background(), &domain.Transaction{ItemID: "item-1", CreatedBy: "user-1", Quantity: 3})

	require.Error(t, err)
	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.True(t, errors.Is(err, errors.ErrNotFound))
	mockDB.ExpectationsWereMet(t)
}

func TestTransactionRepository_GetForUpdate(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	now := time.Now()
	mockDB.ExpectQuery("FROM inventory_transactions WHERE id = $1 FOR UPDATE").
		WithArgs(int64(4)).
		WillReturnRows(testutil.MockRows("id", "item_id", "created_by", "quantity", "created_at", "updated_at").
			AddRow(int64(4), "item-1", "user-1", 6, now, now))

	repo := repository.NewTransactionRepository(mockDB.DB)
	tx, err := repo.GetForUpdate(context.Background(), 4)

	require.NoError(t, err)
	assert.Equal(t, 6, tx.Quantity)
	assert.Equal(t, "user-1", tx.CreatedBy)
	mockDB.ExpectationsWereMet(t)
}

func TestTransactionRepository_UpdateQuantity_NotFound(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	mockDB.ExpectQuery("UPDATE inventory_transactions SET quantity = $2").
		WithArgs(int64(4), 2).
		WillReturnError(sql.ErrNoRows)

	repo := repository.NewTransactionRepository(mockDB.DB)
	err := repo.UpdateQuantity(context.Background(), &domain.Transaction{ID: 4, Quantity: 2})

	assert.True(t, errors.Is(err, errors.ErrNotFound))
	mockDB.ExpectationsWereMet(t)
}

func TestAllocationRepository_CreateRecords_SingleStatement(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	now := time.Now()
	mockDB.ExpectQuery("INSERT INTO stock_records (transaction_id, batch_id, quantity) VALUES ($1, $2, $3), ($4, $5, $6)").
		WithArgs(int64(7), int64(1), 5, int64(7), int64(2), 1).
		WillReturnRows(testutil.MockRows("id", "transaction_id", "batch_id", "quantity", "created_at").
			AddRow(int64(10), int64(7), int64(1), 5, now).
			AddRow(int64(11), int64(7), int64(2), 1, now))

	repo := repository.NewAllocationRepository(mockDB.DB)
	created, err := repo.CreateRecords(context.Background(), []domain.AllocationRecord{
		{TransactionID: 7, BatchID: 1, Quantity: 5},
		{TransactionID: 7, BatchID: 2, Quantity: 1},
	})

	require.NoError(t, err)
	require.Len(t, created, 2)
	assert.Equal(t, int64(11), created[1].ID)
	assert.Equal(t, 6, domain.Allocated(created))
	mockDB.ExpectationsWereMet(t)
}

func TestAllocationRepository_CreateRecords_Empty(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	repo := repository.NewAllocationRepository(mockDB.DB)
	created, err := repo.CreateRecords(context.Background(), nil)

	require.NoError(t, err)
	assert.Empty(t, created)
	mockDB.ExpectationsWereMet(t)
}

func newMockStore(t *testing.T) (*repository.Store, *testutil.MockDB) {
	t.Helper()
	mockDB := testutil.NewMockDB(t)
	t.Cleanup(func() { mockDB.Close() })

	db := database.Wrap(mockDB.DB, logger.NewWithWriter(io.Discard, "test"))
	db.SetRetryPolicy(database.RetryPolicy{MaxRetries: 1, Backoff: time.Millisecond})
	return repository.NewStore(db), mockDB
}

func TestStore_Execute_CommitsOnSuccess(t *testing.T) {
	store, mockDB := newMockStore(t)

	mockDB.ExpectBegin()
	mockDB.ExpectExec("UPDATE stock_batches SET quantity = quantity + $2").
		WithArgs(int64(1), 5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectExec("DELETE FROM stock_records WHERE id = $1").
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectCommit()

	err := store.Execute(context.Background(), func(ctx context.Context, repos repository.Repositories) error {
		if err := repos.Batches.Credit(ctx, 1, 5); err != nil {
			return err
		}
		return repos.Records.DeleteRecord(ctx, 3)
	})

	require.NoError(t, err)
	mockDB.ExpectationsWereMet(t)
}

func TestStore_Execute_RollsBackOnError(t *testing.T) {
	store, mockDB := newMockStore(t)

	mockDB.ExpectBegin()
	mockDB.ExpectExec("UPDATE stock_batches SET quantity = quantity + $2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectRollback()

	err := store.Execute(context.Background(), func(ctx context.Context, repos repository.Repositories) error {
		if err := repos.Batches.Credit(ctx, 1, 5); err != nil {
			return err
		}
		return errors.InsufficientStock(10, 5)
	})

	assert.True(t, errors.Is(err, errors.ErrInsufficientStock))
	mockDB.ExpectationsWereMet(t)
}

func TestStore_Execute_RetriesDeadlock(t *testing.T) {
	store, mockDB := newMockStore(t)

	mockDB.ExpectBegin()
	mockDB.ExpectQuery("SELECT id FROM inventory_items WHERE id = $1 FOR UPDATE").
		WillReturnError(&pq.Error{Code: "40P01"})
	mockDB.ExpectRollback()
	mockDB.ExpectBegin()
	mockDB.ExpectQuery("SELECT id FROM inventory_items WHERE id = $1 FOR UPDATE").
		WillReturnRows(testutil.MockRows("id").AddRow("item-1"))
	mockDB.ExpectCommit()

	attempts := 0
	err := store.Execute(context.Background(), func(ctx context.Context, repos repository.Repositories) error {
		attempts++
		return repos.Items.Lock(ctx, "item-1")
	})

	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	mockDB.ExpectationsWereMet(t)
}
