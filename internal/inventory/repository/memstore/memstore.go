// Package memstore is an in-memory repository.UnitOfWork. A failed Execute
// restores the state it started from, so it rolls back like the Postgres
// store does. Intended for tests and local tooling.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/medflow/stockledger/internal/inventory/domain"
	"github.com/medflow/stockledger/internal/inventory/repository"
	"github.com/medflow/stockledger/pkg/errors"
)

type state struct {
	items        map[string]domain.Item
	batches      map[int64]domain.StockBatch
	transactions map[int64]domain.Transaction
	records      map[int64]domain.AllocationRecord
	nextBatch    int64
	nextTx       int64
	nextRecord   int64
}

func (s *state) clone() *state {
	c := &state{
		items:        make(map[string]domain.Item, len(s.items)),
		batches:      make(map[int64]domain.StockBatch, len(s.batches)),
		transactions: make(map[int64]domain.Transaction, len(s.transactions)),
		records:      make(map[int64]domain.AllocationRecord, len(s.records)),
		nextBatch:    s.nextBatch,
		nextTx:       s.nextTx,
		nextRecord:   s.nextRecord,
	}
	for k, v := range s.items {
		c.items[k] = v
	}
	for k, v := range s.batches {
		c.batches[k] = v
	}
	for k, v := range s.transactions {
		c.transactions[k] = v
	}
	for k, v := range s.records {
		c.records[k] = v
	}
	return c
}

// Store is an in-memory UnitOfWork. Units of work are serialized.
type Store struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time
}

// New creates an empty store
func New() *Store {
	return &Store{
		st: &state{
			items:        make(map[string]domain.Item),
			batches:      make(map[int64]domain.StockBatch),
			transactions: make(map[int64]domain.Transaction),
			records:      make(map[int64]domain.AllocationRecord),
		},
		now: time.Now,
	}
}

// Execute runs fn with exclusive access; any error restores the prior state.
func (s *Store) Execute(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	snapshot := s.st.clone()
	if err := fn(ctx, s.repositories(false)); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

// Reader returns repositories that lock per call.
func (s *Store) Reader() repository.Repositories {
	return s.repositories(true)
}

func (s *Store) repositories(locking bool) repository.Repositories {
	v := &view{store: s, locking: locking}
	return repository.Repositories{
		Items:        (*itemStore)(v),
		Batches:      (*batchStore)(v),
		Transactions: (*transactionStore)(v),
		Records:      (*recordStore)(v),
	}
}

// BatchQuantities snapshots every batch quantity, for assertions.
func (s *Store) BatchQuantities() map[int64]int {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[int64]int, len(s.st.batches))
	for id, b := range s.st.batches {
		out[id] = b.Quantity
	}
	return out
}

// RecordCount returns the number of stored allocation records.
func (s *Store) RecordCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.st.records)
}

type view struct {
	store   *Store
	locking bool
}

func (v *view) lock() func() {
	if !v.locking {
		return func() {}
	}
	v.store.mu.Lock()
	return v.store.mu.Unlock
}

func (v *view) st() *state { return v.store.st }

// =============================================================================
// Items
// =============================================================================

type itemStore view

func (r *itemStore) v() *view { return (*view)(r) }

func (r *itemStore) Create(_ context.Context, item *domain.Item) error {
	defer r.v().lock()()
	st := r.v().st()

	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	if _, dup := st.items[item.ID]; dup {
		return errors.Conflict("a record with these values already exists")
	}
	now := r.store.now()
	item.CreatedAt, item.UpdatedAt = now, now
	st.items[item.ID] = *item
	return nil
}

func (r *itemStore) GetByID(_ context.Context, id string) (*domain.ItemStock, error) {
	defer r.v().lock()()
	st := r.v().st()

	item, ok := st.items[id]
	if !ok {
		return nil, errors.NotFound("item")
	}
	return &domain.ItemStock{Item: item, TotalStock: totalStock(st, id)}, nil
}

func (r *itemStore) Exists(_ context.Context, id string) (bool, error) {
	defer r.v().lock()()
	_, ok := r.v().st().items[id]
	return ok, nil
}

func (r *itemStore) List(_ context.Context, filter repository.ItemFilter) ([]domain.ItemStock, int64, error) {
	defer r.v().lock()()
	st := r.v().st()

	all := make([]domain.ItemStock, 0, len(st.items))
	for _, item := range st.items {
		if filter.Category != "" && string(item.Category) != filter.Category {
			continue
		}
		all = append(all, domain.ItemStock{Item: item, TotalStock: totalStock(st, item.ID)})
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID < all[j].ID
	})

	total := int64(len(all))
	start := min(filter.Offset, len(all))
	end := len(all)
	if filter.Limit > 0 {
		end = min(start+filter.Limit, len(all))
	}
	return all[start:end], total, nil
}

func (r *itemStore) Lock(_ context.Context, id string) error {
	defer r.v().lock()()
	if _, ok := r.v().st().items[id]; !ok {
		return errors.NotFound("item")
	}
	return nil
}

// Delete mirrors ON DELETE CASCADE on batches, transactions and their records.
func (r *itemStore) Delete(_ context.Context, id string) error {
	defer r.v().lock()()
	st := r.v().st()

	if _, ok := st.items[id]; !ok {
		return errors.NotFound("item")
	}
	delete(st.items, id)

	for txID, tx := range st.transactions {
		if tx.ItemID == id {
			delete(st.transactions, txID)
		}
	}
	for batchID, b := range st.batches {
		if b.ItemID == id {
			delete(st.batches, batchID)
		}
	}
	for recID, rec := range st.records {
		_, txAlive := st.transactions[rec.TransactionID]
		_, batchAlive := st.batches[rec.BatchID]
		if !txAlive || !batchAlive {
			delete(st.records, recID)
		}
	}
	return nil
}

func totalStock(st *state, itemID string) int {
	total := 0
	for _, b := range st.batches {
		if b.ItemID == itemID {
			total += b.Quantity
		}
	}
	return total
}

// =============================================================================
// Batches
// =============================================================================

type batchStore view

func (r *batchStore) v() *view { return (*view)(r) }

func (r *batchStore) Create(_ context.Context, batch *domain.StockBatch) error {
	defer r.v().lock()()
	st := r.v().st()

	if _, ok := st.items[batch.ItemID]; !ok {
		return errors.NotFound("item")
	}
	if batch.Quantity < 0 {
		return errors.InvalidField("quantity", "must not be negative")
	}
	st.nextBatch++
	now := r.store.now()
	batch.ID = st.nextBatch
	batch.DeliveryDate = domain.DateOf(batch.DeliveryDate)
	batch.ExpirationDate = domain.DateOf(batch.ExpirationDate)
	batch.CreatedAt, batch.UpdatedAt = now, now
	st.batches[batch.ID] = *batch
	return nil
}

func (r *batchStore) GetByID(_ context.Context, id int64) (*domain.StockBatch, error) {
	defer r.v().lock()()
	b, ok := r.v().st().batches[id]
	if !ok {
		return nil, errors.NotFound("batch")
	}
	return &b, nil
}

func (r *batchStore) ListByItem(_ context.Context, itemID string) ([]domain.StockBatch, error) {
	defer r.v().lock()()
	return r.filter(itemID, func(domain.StockBatch) bool { return true }), nil
}

func (r *batchStore) EligibleBatches(_ context.Context, itemID string, asOf time.Time) ([]domain.StockBatch, error) {
	defer r.v().lock()()
	return r.filter(itemID, func(b domain.StockBatch) bool { return b.EligibleOn(asOf) }), nil
}

func (r *batchStore) filter(itemID string, keep func(domain.StockBatch) bool) []domain.StockBatch {
	out := []domain.StockBatch{}
	for _, b := range r.v().st().batches {
		if b.ItemID == itemID && keep(b) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return domain.LessFIFO(&out[i], &out[j]) })
	return out
}

func (r *batchStore) Debit(_ context.Context, batchID int64, amount int) error {
	defer r.v().lock()()
	st := r.v().st()

	if amount <= 0 {
		return errors.InvalidField("amount", "must be greater than zero")
	}
	b, ok := st.batches[batchID]
	if !ok {
		return errors.NotFound("batch")
	}
	if amount > b.Quantity {
		return errors.InsufficientQuantity(batchID, amount, b.Quantity)
	}
	b.Quantity -= amount
	b.UpdatedAt = r.store.now()
	st.batches[batchID] = b
	return nil
}

func (r *batchStore) Credit(_ context.Context, batchID int64, amount int) error {
	defer r.v().lock()()
	st := r.v().st()

	if amount <= 0 {
		return errors.InvalidField("amount", "must be greater than zero")
	}
	b, ok := st.batches[batchID]
	if !ok {
		return errors.NotFound("batch")
	}
	if amount > domain.MaxQuantity-b.Quantity {
		return errors.InvalidField("quantity", "out of range")
	}
	b.Quantity += amount
	b.UpdatedAt = r.store.now()
	st.batches[batchID] = b
	return nil
}

func (r *batchStore) Update(_ context.Context, batch *domain.StockBatch) error {
	defer r.v().lock()()
	st := r.v().st()

	existing, ok := st.batches[batch.ID]
	if !ok {
		return errors.NotFound("batch")
	}
	if batch.Quantity < 0 {
		return errors.InvalidField("quantity", "must not be negative")
	}
	existing.DeliveryDate = domain.DateOf(batch.DeliveryDate)
	existing.ExpirationDate = domain.DateOf(batch.ExpirationDate)
	existing.Quantity = batch.Quantity
	existing.UpdatedAt = r.store.now()
	st.batches[batch.ID] = existing
	*batch = existing
	return nil
}

func (r *batchStore) TotalStock(_ context.Context, itemID string) (int, error) {
	defer r.v().lock()()
	return totalStock(r.v().st(), itemID), nil
}

func (r *batchStore) ListExpiring(_ context.Context, until time.Time) ([]domain.StockBatch, error) {
	defer r.v().lock()()
	cutoff := domain.DateOf(until)

	out := []domain.StockBatch{}
	for _, b := range r.v().st().batches {
		if b.Quantity > 0 && !b.ExpirationDate.After(cutoff) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return domain.LessFIFO(&out[i], &out[j]) })
	return out, nil
}

// =============================================================================
// Transactions
// =============================================================================

type transactionStore view

func (r *transactionStore) v() *view { return (*view)(r) }

func (r *transactionStore) Create(_ context.Context, tx *domain.Transaction) error {
	defer r.v().lock()()
	st := r.v().st()

	if _, ok := st.items[tx.ItemID]; !ok {
		return errors.NotFound("item")
	}
	if tx.Quantity <= 0 {
		return errors.InvalidField("quantity", "must be greater than zero")
	}
	st.nextTx++
	now := r.store.now()
	tx.ID = st.nextTx
	tx.CreatedAt, tx.UpdatedAt = now, now
	stored := *tx
	stored.Allocations = nil
	st.transactions[tx.ID] = stored
	return nil
}

func (r *transactionStore) GetByID(_ context.Context, id int64) (*domain.Transaction, error) {
	defer r.v().lock()()
	tx, ok := r.v().st().transactions[id]
	if !ok {
		return nil, errors.NotFound("transaction")
	}
	return &tx, nil
}

func (r *transactionStore) GetForUpdate(ctx context.Context, id int64) (*domain.Transaction, error) {
	return r.GetByID(ctx, id)
}

func (r *transactionStore) ListByItem(_ context.Context, itemID string) ([]domain.Transaction, error) {
	defer r.v().lock()()
	out := []domain.Transaction{}
	for _, tx := range r.v().st().transactions {
		if tx.ItemID == itemID {
			out = append(out, tx)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *transactionStore) ListByItemForUpdate(ctx context.Context, itemID string) ([]domain.Transaction, error) {
	return r.ListByItem(ctx, itemID)
}

func (r *transactionStore) UpdateQuantity(_ context.Context, tx *domain.Transaction) error {
	defer r.v().lock()()
	st := r.v().st()

	existing, ok := st.transactions[tx.ID]
	if !ok {
		return errors.NotFound("transaction")
	}
	if tx.Quantity <= 0 {
		return errors.InvalidField("quantity", "must be greater than zero")
	}
	existing.Quantity = tx.Quantity
	existing.UpdatedAt = r.store.now()
	st.transactions[tx.ID] = existing
	tx.UpdatedAt = existing.UpdatedAt
	return nil
}

func (r *transactionStore) Delete(_ context.Context, id int64) error {
	defer r.v().lock()()
	st := r.v().st()

	if _, ok := st.transactions[id]; !ok {
		return errors.NotFound("transaction")
	}
	delete(st.transactions, id)
	for recID, rec := range st.records {
		if rec.TransactionID == id {
			delete(st.records, recID)
		}
	}
	return nil
}

// =============================================================================
// Allocation records
// =============================================================================

type recordStore view

func (r *recordStore) v() *view { return (*view)(r) }

func (r *recordStore) CreateRecords(_ context.Context, records []domain.AllocationRecord) ([]domain.AllocationRecord, error) {
	defer r.v().lock()()
	st := r.v().st()

	created := make([]domain.AllocationRecord, 0, len(records))
	now := r.store.now()
	for _, rec := range records {
		if _, ok := st.transactions[rec.TransactionID]; !ok {
			return nil, errors.NotFound("transaction")
		}
		if _, ok := st.batches[rec.BatchID]; !ok {
			return nil, errors.NotFound("batch")
		}
		if rec.Quantity <= 0 {
			return nil, errors.InvalidField("quantity", "must be greater than zero")
		}
		st.nextRecord++
		rec.ID = st.nextRecord
		rec.CreatedAt = now
		st.records[rec.ID] = rec
		created = append(created, rec)
	}
	return created, nil
}

func (r *recordStore) ListByTransaction(_ context.Context, transactionID int64) ([]domain.AllocationRecord, error) {
	defer r.v().lock()()
	out := []domain.AllocationRecord{}
	for _, rec := range r.v().st().records {
		if rec.TransactionID == transactionID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *recordStore) DeleteRecord(_ context.Context, id int64) error {
	defer r.v().lock()()
	st := r.v().st()

	if _, ok := st.records[id]; !ok {
		return errors.NotFound("allocation record")
	}
	delete(st.records, id)
	return nil
}
