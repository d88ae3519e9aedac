package repository_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medflow/stockledger/internal/inventory/repository"
	"github.com/medflow/stockledger/pkg/errors"
	"github.com/medflow/stockledger/pkg/testutil"
)

var batchCols = []string{"id", "item_id", "delivery_date", "expiration_date", "quantity", "created_by", "created_at", "updated_at"}

func batchRow(rows *sqlmock.Rows, id int64, expiry time.Time, qty int) *sqlmock.Rows {
	now := time.Now()
	return rows.AddRow(id, "item-1", expiry.AddDate(0, -6, 0), expiry, qty, nil, now, now)
}

func TestBatchRepository_EligibleBatches(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	asOf := time.Date(2026, 3, 10, 17, 45, 0, 0, time.UTC)
	rows := testutil.MockRows(batchCols...)
	batchRow(rows, 2, testutil.Date(2026, 4, 1), 5)
	batchRow(rows, 1, testutil.Date(2026, 6, 1), 10)

	mockDB.ExpectQuery("WHERE item_id = $1 AND expiration_date >= $2 ORDER BY expiration_date, id FOR UPDATE").
		WithArgs("item-1", testutil.DateArg("2026-03-10")).
		WillReturnRows(rows)

	repo := repository.NewBatchRepository(mockDB.DB)
	batches, err := repo.EligibleBatches(context.Background(), "item-1", asOf)

	require.NoError(t, err)
	require.Len(t, batches, 2)
	assert.Equal(t, int64(2), batches[0].ID)
	assert.Equal(t, 10, batches[1].Quantity)
	mockDB.ExpectationsWereMet(t)
}

func TestBatchRepository_Debit(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	mockDB.ExpectQuery("UPDATE stock_batches SET quantity = quantity - $2").
		WithArgs(int64(1), 4).
		WillReturnRows(testutil.MockRows("quantity").AddRow(6))

	repo := repository.NewBatchRepository(mockDB.DB)
	require.NoError(t, repo.Debit(context.Background(), 1, 4))
	mockDB.ExpectationsWereMet(t)
}

func TestBatchRepository_Debit_GuardRejectsOverdraw(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	mockDB.ExpectQuery("UPDATE stock_batches SET quantity = quantity - $2").
		WithArgs(int64(1), 4).
		WillReturnRows(testutil.MockRows("quantity"))
	mockDB.ExpectQuery("FROM stock_batches WHERE id = $1").
		WithArgs(int64(1)).
		WillReturnRows(batchRow(testutil.MockRows(batchCols...), 1, testutil.Date(2026, 6, 1), 3))

	repo := repository.NewBatchRepository(mockDB.DB)
	err := repo.Debit(context.Background(), 1, 4)

	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInsufficientQuantity))
	mockDB.ExpectationsWereMet(t)
}

func TestBatchRepository_Debit_MissingBatch(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	mockDB.ExpectQuery("UPDATE stock_batches SET quantity = quantity - $2").
		WillReturnRows(testutil.MockRows("quantity"))
	mockDB.ExpectQuery("FROM stock_batches WHERE id = $1").
		WillReturnError(sql.ErrNoRows)

	repo := repository.NewBatchRepository(mockDB.DB)
	err := repo.Debit(context.Background(), 99, 1)

	assert.True(t, errors.Is(err, errors.ErrNotFound))
	mockDB.ExpectationsWereMet(t)
}

func TestBatchRepository_RejectsNonPositiveAmounts(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	repo := repository.NewBatchRepository(mockDB.DB)

	assert.True(t, errors.Is(repo.Debit(context.Background(), 1, 0), errors.ErrValidation))
	assert.True(t, errors.Is(repo.Credit(context.Background(), 1, -2), errors.ErrValidation))
	mockDB.ExpectationsWereMet(t)
}

func TestBatchRepository_Credit_MissingBatch(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	mockDB.ExpectExec("UPDATE stock_batches SET quantity = quantity + $2").
		WithArgs(int64(7), 3).
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := repository.NewBatchRepository(mockDB.DB)
	err := repo.Credit(context.Background(), 7, 3)

	assert.True(t, errors.Is(err, errors.ErrNotFound))
	mockDB.ExpectationsWereMet(t)
}

func TestBatchRepository_Create_PassesCalendarDates(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	now := time.Now()
	mockDB.ExpectQuery("INSERT INTO stock_batches").
		WithArgs("item-1", testutil.DateArg("2026-03-01"), testutil.DateArg("2026-09-30"), 12, nil).
		WillReturnRows(testutil.MockRows("id", "created_at", "updated_at").AddRow(int64(5), now, now))

	repo := repository.NewBatchRepository(mockDB.DB)
	batch := newBatch("item-1", testutil.Date(2026, 3, 1), time.Date(2026, 9, 30, 23, 0, 0, 0, time.UTC), 12)
	require.NoError(t, repo.Create(context.Background(), batch))

	assert.Equal(t, int64(5), batch.ID)
	mockDB.ExpectationsWereMet(t)
}

func TestBatchRepository_TotalStock(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	mockDB.ExpectQuery("SELECT COALESCE(SUM(quantity), 0) FROM stock_batches WHERE item_id = $1").
		WithArgs("item-1").
		WillReturnRows(testutil.MockRows("total").AddRow(15))

	repo := repository.NewBatchRepository(mockDB.DB)
	total, err := repo.TotalStock(context.Background(), "item-1")

	require.NoError(t, err)
	assert.Equal(t, 15, total)
	mockDB.ExpectationsWereMet(t)
}

func TestBatchRepository_ListExpiring(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	mockDB.ExpectQuery("WHERE quantity > 0 AND expiration_date <= $1 ORDER BY expiration_date, id").
		WithArgs(testutil.DateArg("2026-06-08")).
		WillReturnRows(batchRow(testutil.MockRows(batchCols...), 3, testutil.Date(2026, 3, 1), 2))

	repo := repository.NewBatchRepository(mockDB.DB)
	batches, err := repo.ListExpiring(context.Background(), testutil.Date(2026, 6, 8))

	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, int64(3), batches[0].ID)
	mockDB.ExpectationsWereMet(t)
}
