package service_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medflow/stockledger/internal/inventory/domain"
	"github.com/medflow/stockledger/internal/inventory/repository/memstore"
	"github.com/medflow/stockledger/internal/inventory/service"
	"github.com/medflow/stockledger/pkg/actor"
	"github.com/medflow/stockledger/pkg/errors"
	"github.com/medflow/stockledger/pkg/logger"
	"github.com/medflow/stockledger/pkg/messaging"
)

var today = time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)

func day(offset int) time.Time {
	return domain.DateOf(today).AddDate(0, 0, offset)
}

type published struct {
	eventType string
	id        any
}

type recorder struct {
	events []published
}

func (r *recorder) PublishItemCreated(_ context.Context, item *domain.Item) {
	r.events = append(r.events, published{messaging.EventItemCreated, item.ID})
}

func (r *recorder) PublishItemDeleted(_ context.Context, itemID string, _ int, _ string) {
	r.events = append(r.events, published{messaging.EventItemDeleted, itemID})
}

func (r *recorder) PublishBatchReceived(_ context.Context, batch *domain.StockBatch, _ string) {
	r.events = append(r.events, published{messaging.EventBatchReceived, batch.ID})
}

func (r *recorder) PublishBatchUpdated(_ context.Context, batch *domain.StockBatch, _ string) {
	r.events = append(r.events, published{messaging.EventBatchUpdated, batch.ID})
}

func (r *recorder) PublishTransaction(_ context.Context, eventType string, tx *domain.Transaction, _ string) {
	r.events = append(r.events, published{eventType, tx.ID})
}

type staticNames map[string]string

func (n staticNames) Names(_ context.Context, ids []string) (map[string]string, error) {
	out := make(map[string]string)
	for _, id := range ids {
		if name, ok := n[id]; ok {
			out[id] = name
		}
	}
	return out, nil
}

type fixture struct {
	svc    *service.InventoryService
	store  *memstore.Store
	events *recorder
	ctx    context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memstore.New()
	events := &recorder{}
	svc := service.NewInventoryService(store, events, logger.NewWithWriter(io.Discard, "test"),
		service.WithClock(func() time.Time { return today }),
		service.WithNameResolver(staticNames{"pharmacist-1": "Anna Schmidt"}),
	)
	ctx := actor.WithActor(context.Background(), &actor.Actor{ID: "pharmacist-1"})
	return &fixture{svc: svc, store: store, events: events, ctx: ctx}
}

func (f *fixture) item(t *testing.T) string {
	t.Helper()
	item := &domain.Item{
		Category:    domain.CategoryPainRelievers,
		Subcategory: "Analgesics",
		ItemName:    "Ibuprofen 400",
		BrandName:   "Advil",
		GenericName: "Ibuprofen",
		DosageForm:  "Tablet",
		Packaging:   domain.PackagingBlisterPack,
		Quantity:    20,
		UnitSize:    domain.UnitTablets,
	}
	require.NoError(t, f.svc.CreateItem(f.ctx, item))
	return item.ID
}

func (f *fixture) batch(t *testing.T, itemID string, expiresIn, quantity int) int64 {
	t.Helper()
	b := &domain.StockBatch{ItemID: itemID, ExpirationDate: day(expiresIn), Quantity: quantity}
	require.NoError(t, f.svc.CreateBatch(f.ctx, b))
	return b.ID
}

// assertLedger checks that total stock matches the batches and every
// transaction matches its allocation records.
func (f *fixture) assertLedger(t *testing.T, itemID string) {
	t.Helper()

	batches, err := f.svc.ListBatches(f.ctx, itemID)
	require.NoError(t, err)
	total, err := f.svc.TotalStock(f.ctx, itemID)
	require.NoError(t, err)
	assert.Equal(t, domain.TotalQuantity(batches), total)

	txs, err := f.svc.ListTransactions(f.ctx, itemID)
	require.NoError(t, err)
	for _, tx := range txs {
		assert.Equal(t, tx.Quantity, domain.Allocated(tx.Allocations), "transaction %d", tx.ID)
	}
}

func (f *fixture) quantities(t *testing.T, ids ...int64) []int {
	t.Helper()
	q := f.store.BatchQuantities()
	out := make([]int, len(ids))
	for i, id := range ids {
		out[i] = q[id]
	}
	return out
}

func TestCreateTransaction_FIFOByExpiration(t *testing.T) {
	f := newFixture(t)
	itemID := f.item(t)
	a := f.batch(t, itemID, 1, 5)
	b := f.batch(t, itemID, 2, 5)

	tx, err := f.svc.CreateTransaction(f.ctx, itemID, "pharmacist-1", 5)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 5}, f.quantities(t, a, b))
	require.Len(t, tx.Allocations, 1)
	assert.Equal(t, a, tx.Allocations[0].BatchID)

	_, err = f.svc.CreateTransaction(f.ctx, itemID, "pharmacist-1", 1)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 4}, f.quantities(t, a, b))

	f.assertLedger(t, itemID)
}

func TestCreateTransaction_SpansBatches(t *testing.T) {
	f := newFixture(t)
	itemID := f.item(t)
	a := f.batch(t, itemID, 1, 5)
	b := f.batch(t, itemID, 2, 5)

	tx, err := f.svc.CreateTransaction(f.ctx, itemID, "pharmacist-1", 6)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 4}, f.quantities(t, a, b))
	require.Len(t, tx.Allocations, 2)
	assert.Equal(t, 5, tx.Allocations[0].Quantity)
	assert.Equal(t, 1, tx.Allocations[1].Quantity)

	f.assertLedger(t, itemID)
}

func TestCreateTransaction_InsufficientStockChangesNothing(t *testing.T) {
	f := newFixture(t)
	itemID := f.item(t)
	a := f.batch(t, itemID, 1, 3)
	b := f.batch(t, itemID, 5, 2)
	before := f.store.BatchQuantities()
	eventsBefore := len(f.events.events)

	_, err := f.svc.CreateTransaction(f.ctx, itemID, "pharmacist-1", 6)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInsufficientStock))

	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "6", appErr.Details["requested"])
	assert.Equal(t, "5", appErr.Details["available"])
	assert.Equal(t, "1", appErr.Details["shortfall"])

	assert.Equal(t, before, f.store.BatchQuantities())
	assert.Equal(t, []int{3, 2}, f.quantities(t, a, b))
	assert.Zero(t, f.store.RecordCount())

	txs, err := f.svc.ListTransactions(f.ctx, itemID)
	require.NoError(t, err)
	assert.Empty(t, txs, "the transaction row must be rolled back")
	assert.Len(t, f.events.events, eventsBefore, "no event for a failed allocation")
}

func TestCreateTransaction_ExpiredBatchesExcluded(t *testing.T) {
	f := newFixture(t)
	itemID := f.item(t)

	expiring := f.batch(t, itemID, 0, 4)
	later := f.batch(t, itemID, 30, 4)

	// a batch edited to have expired yesterday
	expired := f.batch(t, itemID, 1, 10)
	require.NoError(t, f.svc.UpdateBatch(f.ctx, &domain.StockBatch{ID: expired, ExpirationDate: day(-1), Quantity: 10}))

	total, err := f.svc.TotalStock(f.ctx, itemID)
	require.NoError(t, err)
	assert.Equal(t, 18, total, "expired stock still counts towards the total")

	_, err = f.svc.CreateTransaction(f.ctx, itemID, "pharmacist-1", 9)
	assert.True(t, errors.Is(err, errors.ErrInsufficientStock), "total stock is not the allocation bound")

	_, err = f.svc.CreateTransaction(f.ctx, itemID, "pharmacist-1", 6)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2, 10}, f.quantities(t, expiring, later, expired),
		"a batch expiring today is still eligible and goes first")

	f.assertLedger(t, itemID)
}

func TestCreateTransaction_Validation(t *testing.T) {
	f := newFixture(t)
	itemID := f.item(t)
	f.batch(t, itemID, 10, 10)

	for _, qty := range []int{0, -3, domain.MaxQuantity + 1} {
		_, err := f.svc.CreateTransaction(f.ctx, itemID, "pharmacist-1", qty)
		assert.True(t, errors.Is(err, errors.ErrValidation), "quantity %d", qty)
	}

	_, err := f.svc.CreateTransaction(f.ctx, itemID, " ", 1)
	assert.True(t, errors.Is(err, errors.ErrValidation))

	_, err = f.svc.CreateTransaction(f.ctx, "missing-item", "pharmacist-1", 1)
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	total, _ := f.svc.TotalStock(f.ctx, itemID)
	assert.Equal(t, 10, total)
}

func TestDeleteTransaction_RestoresStock(t *testing.T) {
	f := newFixture(t)
	itemID := f.item(t)
	b := f.batch(t, itemID, 10, 10)

	tx, err := f.svc.CreateTransaction(f.ctx, itemID, "pharmacist-1", 4)
	require.NoError(t, err)
	assert.Equal(t, []int{6}, f.quantities(t, b))

	require.NoError(t, f.svc.DeleteTransaction(f.ctx, tx.ID))
	assert.Equal(t, []int{10}, f.quantities(t, b))
	assert.Zero(t, f.store.RecordCount())

	_, err = f.svc.GetTransaction(f.ctx, tx.ID)
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	err = f.svc.DeleteTransaction(f.ctx, tx.ID)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestUpdateTransaction(t *testing.T) {
	f := newFixture(t)
	itemID := f.item(t)
	b := f.batch(t, itemID, 10, 10)

	tx, err := f.svc.CreateTransaction(f.ctx, itemID, "pharmacist-1", 2)
	require.NoError(t, err)
	assert.Equal(t, []int{8}, f.quantities(t, b))

	t.Run("grow within stock", func(t *testing.T) {
		updated, err := f.svc.UpdateTransaction(f.ctx, tx.ID, 5)
		require.NoError(t, err)
		assert.Equal(t, 5, updated.Quantity)
		assert.Equal(t, []int{5}, f.quantities(t, b))
		assert.Equal(t, tx.CreatedAt, updated.CreatedAt)
	})

	t.Run("unsatisfiable leaves everything as it was", func(t *testing.T) {
		_, err := f.svc.UpdateTransaction(f.ctx, tx.ID, 11)
		assert.True(t, errors.Is(err, errors.ErrInsufficientStock))

		got, err := f.svc.GetTransaction(f.ctx, tx.ID)
		require.NoError(t, err)
		assert.Equal(t, 5, got.Quantity)
		assert.Equal(t, 5, domain.Allocated(got.Allocations))
		assert.Equal(t, []int{5}, f.quantities(t, b))
	})

	t.Run("may use its own released stock", func(t *testing.T) {
		_, err := f.svc.UpdateTransaction(f.ctx, tx.ID, 10)
		require.NoError(t, err)
		assert.Equal(t, []int{0}, f.quantities(t, b))
	})

	t.Run("rejects non-positive quantity", func(t *testing.T) {
		_, err := f.svc.UpdateTransaction(f.ctx, tx.ID, 0)
		assert.True(t, errors.Is(err, errors.ErrValidation))
	})

	t.Run("unknown transaction", func(t *testing.T) {
		_, err := f.svc.UpdateTransaction(f.ctx, 999, 1)
		assert.True(t, errors.Is(err, errors.ErrNotFound))
	})

	f.assertLedger(t, itemID)
}

func TestUpdateTransaction_FromTwoToFiveOverBatchOfTen(t *testing.T) {
	f := newFixture(t)
	itemID := f.item(t)
	b := f.batch(t, itemID, 3, 10)

	tx, err := f.svc.CreateTransaction(f.ctx, itemID, "pharmacist-1", 2)
	require.NoError(t, err)

	_, err = f.svc.UpdateTransaction(f.ctx, tx.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, []int{5}, f.quantities(t, b))
}

func TestDeleteItem_CascadesWithReversal(t *testing.T) {
	f := newFixture(t)
	itemID := f.item(t)
	other := f.item(t)
	f.batch(t, itemID, 1, 5)
	f.batch(t, itemID, 2, 5)
	kept := f.batch(t, other, 2, 7)

	_, err := f.svc.CreateTransaction(f.ctx, itemID, "pharmacist-1", 6)
	require.NoError(t, err)
	_, err = f.svc.CreateTransaction(f.ctx, itemID, "pharmacist-1", 2)
	require.NoError(t, err)
	_, err = f.svc.CreateTransaction(f.ctx, other, "pharmacist-1", 3)
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteItem(f.ctx, itemID))

	_, err = f.svc.GetItem(f.ctx, itemID)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
	assert.Equal(t, map[int64]int{kept: 4}, f.store.BatchQuantities())
	assert.Equal(t, 1, f.store.RecordCount())

	last := f.events.events[len(f.events.events)-1]
	assert.Equal(t, published{messaging.EventItemDeleted, itemID}, last)

	err = f.svc.DeleteItem(f.ctx, itemID)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
	f.assertLedger(t, other)
}

func TestCreateBatch(t *testing.T) {
	f := newFixture(t)
	itemID := f.item(t)

	t.Run("dates default to today", func(t *testing.T) {
		b := &domain.StockBatch{ItemID: itemID, Quantity: 3}
		require.NoError(t, f.svc.CreateBatch(f.ctx, b))
		assert.Equal(t, day(0), b.DeliveryDate)
		assert.Equal(t, day(0), b.ExpirationDate)
		require.NotNil(t, b.CreatedBy)
		assert.Equal(t, "pharmacist-1", *b.CreatedBy)
	})

	t.Run("expired on arrival", func(t *testing.T) {
		err := f.svc.CreateBatch(f.ctx, &domain.StockBatch{ItemID: itemID, ExpirationDate: day(-1), Quantity: 3})
		assert.True(t, errors.Is(err, errors.ErrValidation))
	})

	t.Run("negative quantity", func(t *testing.T) {
		err := f.svc.CreateBatch(f.ctx, &domain.StockBatch{ItemID: itemID, ExpirationDate: day(5), Quantity: -1})
		assert.True(t, errors.Is(err, errors.ErrValidation))
	})

	t.Run("quantity past the column range", func(t *testing.T) {
		err := f.svc.CreateBatch(f.ctx, &domain.StockBatch{ItemID: itemID, ExpirationDate: day(5), Quantity: domain.MaxQuantity + 1})
		assert.True(t, errors.Is(err, errors.ErrValidation))
	})

	t.Run("zero quantity is allowed", func(t *testing.T) {
		require.NoError(t, f.svc.CreateBatch(f.ctx, &domain.StockBatch{ItemID: itemID, ExpirationDate: day(5)}))
	})

	t.Run("unknown item", func(t *testing.T) {
		err := f.svc.CreateBatch(f.ctx, &domain.StockBatch{ItemID: "nope", ExpirationDate: day(5), Quantity: 1})
		assert.True(t, errors.Is(err, errors.ErrNotFound))
	})

	total, err := f.svc.TotalStock(f.ctx, itemID)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
}

func TestUpdateBatch(t *testing.T) {
	f := newFixture(t)
	itemID := f.item(t)
	id := f.batch(t, itemID, 10, 10)

	b := &domain.StockBatch{ID: id, Quantity: 12}
	require.NoError(t, f.svc.UpdateBatch(f.ctx, b))
	assert.Equal(t, day(10), b.ExpirationDate, "zero dates keep their stored value")
	assert.Equal(t, itemID, b.ItemID)

	err := f.svc.UpdateBatch(f.ctx, &domain.StockBatch{ID: id, Quantity: -1})
	assert.True(t, errors.Is(err, errors.ErrValidation))

	err = f.svc.UpdateBatch(f.ctx, &domain.StockBatch{ID: id, Quantity: domain.MaxQuantity + 1})
	assert.True(t, errors.Is(err, errors.ErrValidation))

	err = f.svc.UpdateBatch(f.ctx, &domain.StockBatch{ID: 404, Quantity: 1})
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	got, err := f.svc.GetBatch(f.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 12, got.Quantity)
}

func TestCatalog(t *testing.T) {
	f := newFixture(t)

	t.Run("defaults and validation", func(t *testing.T) {
		item := &domain.Item{
			Subcategory: "Vitamin C",
			ItemName:    "Vitamin C 500",
			BrandName:   "Ceelin",
			GenericName: "Ascorbic Acid",
			DosageForm:  "Tablet",
			Packaging:   domain.PackagingThirtyBottle,
		}
		require.NoError(t, f.svc.CreateItem(f.ctx, item))
		assert.Equal(t, domain.CategoryOTCMedicines, item.Category)
		assert.Equal(t, domain.UnitEach, item.UnitSize)

		bad := &domain.Item{Category: "Snacks", Subcategory: "Vitamin C"}
		err := f.svc.CreateItem(f.ctx, bad)
		assert.True(t, errors.Is(err, errors.ErrValidation))
	})

	t.Run("exists and detail", func(t *testing.T) {
		itemID := f.item(t)
		f.batch(t, itemID, 2, 4)
		f.batch(t, itemID, 1, 6)

		ok, err := f.svc.ItemExists(f.ctx, itemID)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = f.svc.ItemExists(f.ctx, "missing")
		require.NoError(t, err)
		assert.False(t, ok)

		detail, err := f.svc.GetItem(f.ctx, itemID)
		require.NoError(t, err)
		assert.Equal(t, 10, detail.TotalStock)
		require.Len(t, detail.Batches, 2)
		assert.Equal(t, day(1), detail.Batches[0].ExpirationDate)
	})

	t.Run("list with category", func(t *testing.T) {
		items, total, err := f.svc.ListItems(f.ctx, 1, 20, string(domain.CategoryPainRelievers))
		require.NoError(t, err)
		assert.EqualValues(t, 1, total)
		assert.Len(t, items, 1)

		_, _, err = f.svc.ListItems(f.ctx, 1, 20, "Snacks")
		assert.True(t, errors.Is(err, errors.ErrValidation))
	})
}

func TestGetTransaction_ResolvesActorName(t *testing.T) {
	f := newFixture(t)
	itemID := f.item(t)
	f.batch(t, itemID, 5, 5)

	tx, err := f.svc.CreateTransaction(f.ctx, itemID, "pharmacist-1", 2)
	require.NoError(t, err)

	got, err := f.svc.GetTransaction(f.ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, "Anna Schmidt", got.ActorName)
	assert.Len(t, got.Allocations, 1)
}

func TestEvents_PublishedAfterCommit(t *testing.T) {
	f := newFixture(t)
	itemID := f.item(t)
	batchID := f.batch(t, itemID, 5, 5)

	tx, err := f.svc.CreateTransaction(f.ctx, itemID, "pharmacist-1", 2)
	require.NoError(t, err)
	_, err = f.svc.UpdateTransaction(f.ctx, tx.ID, 3)
	require.NoError(t, err)
	require.NoError(t, f.svc.DeleteTransaction(f.ctx, tx.ID))

	assert.Equal(t, []published{
		{messaging.EventItemCreated, itemID},
		{messaging.EventBatchReceived, batchID},
		{messaging.EventTransactionCreated, tx.ID},
		{messaging.EventTransactionUpdated, tx.ID},
		{messaging.EventTransactionDeleted, tx.ID},
	}, f.events.events)
}

func TestNilPublisher(t *testing.T) {
	svc := service.NewInventoryService(memstore.New(), nil, logger.NewWithWriter(io.Discard, "test"))
	item := &domain.Item{
		Subcategory: "Antacid",
		ItemName:    "Kremil-S",
		BrandName:   "Kremil-S",
		GenericName: "Aluminum Hydroxide",
		DosageForm:  "Tablet",
		Packaging:   domain.PackagingBox,
	}
	assert.NoError(t, svc.CreateItem(context.Background(), item))
}
