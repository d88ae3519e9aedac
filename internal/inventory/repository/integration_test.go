package repository_test

import (
	"context"
	"flag"
	"log"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medflow/stockledger/internal/inventory/allocation"
	"github.com/medflow/stockledger/internal/inventory/domain"
	"github.com/medflow/stockledger/internal/inventory/repository"
	"github.com/medflow/stockledger/pkg/actor"
	"github.com/medflow/stockledger/pkg/errors"
	"github.com/medflow/stockledger/pkg/testutil"
)

var suite *testutil.IntegrationSuite

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}

	ctx := context.Background()
	var err error
	suite, err = testutil.NewIntegrationSuite(ctx)
	if err != nil {
		log.Fatalf("failed to create integration suite: %v", err)
	}

	code := m.Run()
	suite.Cleanup(ctx)
	os.Exit(code)
}

var today = testutil.Date(2026, 3, 10)

// seedItem creates an item with one batch per expiry, all holding qty units.
func seedItem(t *testing.T, store *repository.Store, qty int, expiries ...int) (string, []int64) {
	t.Helper()
	var itemID string
	var ids []int64

	err := store.Execute(context.Background(), func(ctx context.Context, repos repository.Repositories) error {
		item := newItem("Paracetamol 500")
		if err := repos.Items.Create(ctx, item); err != nil {
			return err
		}
		itemID = item.ID
		for _, days := range expiries {
			b := newBatch(item.ID, today.AddDate(0, -1, 0), today.AddDate(0, 0, days), qty)
			if err := repos.Batches.Create(ctx, b); err != nil {
				return err
			}
			ids = append(ids, b.ID)
		}
		return nil
	})
	require.NoError(t, err)
	return itemID, ids
}

func dispense(ctx context.Context, store *repository.Store, itemID string, qty int) (*domain.Transaction, error) {
	tx := &domain.Transaction{ItemID: itemID, CreatedBy: "user-1", Quantity: qty}
	err := store.Execute(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if err := repos.Transactions.Create(ctx, tx); err != nil {
			return err
		}
		records, err := allocation.NewEngine(repos.Batches, repos.Records).Allocate(ctx, tx.ID, itemID, qty, today)
		tx.Allocations = records
		return err
	})
	return tx, err
}

func quantities(t *testing.T, store *repository.Store, itemID string) map[int64]int {
	t.Helper()
	batches, err := store.Reader().Batches.ListByItem(context.Background(), itemID)
	require.NoError(t, err)
	out := make(map[int64]int, len(batches))
	for _, b := range batches {
		out[b.ID] = b.Quantity
	}
	return out
}

func TestIntegration_AllocateSpillsAcrossBatches(t *testing.T) {
	testutil.SkipIfShort(t)
	suite.Truncate(t)
	ctx := testutil.DefaultTestContext(t)
	store := repository.NewStore(suite.DB)

	itemID, ids := seedItem(t, store, 5, 30, 60)

	tx, err := dispense(ctx, store, itemID, 6)
	require.NoError(t, err)
	require.Len(t, tx.Allocations, 2)
	assert.Equal(t, ids[0], tx.Allocations[0].BatchID)
	assert.Equal(t, 5, tx.Allocations[0].Quantity)
	assert.Equal(t, 1, tx.Allocations[1].Quantity)

	assert.Equal(t, map[int64]int{ids[0]: 0, ids[1]: 4}, quantities(t, store, itemID))

	total, err := store.Reader().Batches.TotalStock(ctx, itemID)
	require.NoError(t, err)
	assert.Equal(t, 4, total)
}

func TestIntegration_InsufficientStockCommitsNothing(t *testing.T) {
	testutil.SkipIfShort(t)
	suite.Truncate(t)
	ctx := testutil.DefaultTestContext(t)
	store := repository.NewStore(suite.DB)

	itemID, ids := seedItem(t, store, 5, 30, -1)

	_, err := dispense(ctx, store, itemID, 6)
	assert.True(t, errors.Is(err, errors.ErrInsufficientStock))

	assert.Equal(t, map[int64]int{ids[0]: 5, ids[1]: 5}, quantities(t, store, itemID))
	txs, err := store.Reader().Transactions.ListByItem(ctx, itemID)
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestIntegration_ExpiringTodayIsEligible(t *testing.T) {
	testutil.SkipIfShort(t)
	suite.Truncate(t)
	ctx := testutil.DefaultTestContext(t)
	store := repository.NewStore(suite.DB)

	itemID, ids := seedItem(t, store, 3, 0, 10)

	tx, err := dispense(ctx, store, itemID, 2)
	require.NoError(t, err)
	require.Len(t, tx.Allocations, 1)
	assert.Equal(t, ids[0], tx.Allocations[0].BatchID)
}

func TestIntegration_ReverseRestoresBatches(t *testing.T) {
	testutil.SkipIfShort(t)
	suite.Truncate(t)
	ctx := testutil.DefaultTestContext(t)
	store := repository.NewStore(suite.DB)

	itemID, ids := seedItem(t, store, 5, 30, 60)
	tx, err := dispense(ctx, store, itemID, 7)
	require.NoError(t, err)

	var restored int
	err = store.Execute(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if _, err := repos.Transactions.GetForUpdate(ctx, tx.ID); err != nil {
			return err
		}
		restored, err = allocation.NewEngine(repos.Batches, repos.Records).Reverse(ctx, tx.ID)
		if err != nil {
			return err
		}
		return repos.Transactions.Delete(ctx, tx.ID)
	})
	require.NoError(t, err)

	assert.Equal(t, 7, restored)
	assert.Equal(t, map[int64]int{ids[0]: 5, ids[1]: 5}, quantities(t, store, itemID))

	records, err := store.Reader().Records.ListByTransaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestIntegration_QuantityCheckConstraint(t *testing.T) {
	testutil.SkipIfShort(t)
	suite.Truncate(t)
	ctx := testutil.DefaultTestContext(t)
	store := repository.NewStore(suite.DB)

	itemID, _ := seedItem(t, store, 0)

	err := store.Execute(ctx, func(ctx context.Context, repos repository.Repositories) error {
		return repos.Batches.Create(ctx, newBatch(itemID, today, today, -1))
	})
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestIntegration_ItemDeleteCascades(t *testing.T) {
	testutil.SkipIfShort(t)
	suite.Truncate(t)
	ctx := testutil.DefaultTestContext(t)
	store := repository.NewStore(suite.DB)

	itemID, ids := seedItem(t, store, 5, 30)
	_, err := dispense(ctx, store, itemID, 2)
	require.NoError(t, err)

	err = store.Execute(ctx, func(ctx context.Context, repos repository.Repositories) error {
		return repos.Items.Delete(ctx, itemID)
	})
	require.NoError(t, err)

	_, err = store.Reader().Batches.GetByID(ctx, ids[0])
	assert.True(t, errors.Is(err, errors.ErrNotFound))
	exists, err := store.Reader().Items.Exists(ctx, itemID)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestIntegration_UserCache(t *testing.T) {
	testutil.SkipIfShort(t)
	suite.Truncate(t)
	ctx := testutil.DefaultTestContext(t)
	repo := repository.NewUserCacheRepository(suite.DB)

	require.NoError(t, repo.Set(ctx, &actor.UserCache{UserID: "user-1", FirstName: "Ana", LastName: "Cruz"}))
	require.NoError(t, repo.Set(ctx, &actor.UserCache{UserID: "user-1", FirstName: "Ana", LastName: "Reyes", Email: "ana@example.com"}))

	got, err := repo.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "Ana Reyes", got.FullName())
	assert.Equal(t, "ana@example.com", got.Email)

	names, err := repo.Names(ctx, []string{"user-1", "user-2"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"user-1": "Ana Reyes"}, names)

	require.NoError(t, repo.Delete(ctx, "user-1"))
	_, err = repo.Get(ctx, "user-1")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}
