package repository

import (
	"context"
	"time"

	"github.com/medflow/stockledger/internal/inventory/allocation"
	"github.com/medflow/stockledger/internal/inventory/domain"
)

// ItemFilter narrows an item listing.
type ItemFilter struct {
	Category string
	Limit    int
	Offset   int
}

// ItemStore is the catalog side of a unit of work.
type ItemStore interface {
	Create(ctx context.Context, item *domain.Item) error
	GetByID(ctx context.Context, id string) (*domain.ItemStock, error)
	Exists(ctx context.Context, id string) (bool, error)
	List(ctx context.Context, filter ItemFilter) ([]domain.ItemStock, int64, error)
	// Lock takes a row lock on the item for the rest of the unit of work.
	Lock(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

// BatchStore owns stock batches and their quantity mutations.
type BatchStore interface {
	allocation.BatchLedger
	Create(ctx context.Context, batch *domain.StockBatch) error
	GetByID(ctx context.Context, id int64) (*domain.StockBatch, error)
	ListByItem(ctx context.Context, itemID string) ([]domain.StockBatch, error)
	Update(ctx context.Context, batch *domain.StockBatch) error
	TotalStock(ctx context.Context, itemID string) (int, error)
	// ListExpiring returns batches of every item that still hold stock and
	// expire on or before until, soonest first.
	ListExpiring(ctx context.Context, until time.Time) ([]domain.StockBatch, error)
}

// TransactionStore owns transaction rows.
type TransactionStore interface {
	Create(ctx context.Context, tx *domain.Transaction) error
	GetByID(ctx context.Context, id int64) (*domain.Transaction, error)
	GetForUpdate(ctx context.Context, id int64) (*domain.Transaction, error)
	ListByItem(ctx context.Context, itemID string) ([]domain.Transaction, error)
	ListByItemForUpdate(ctx context.Context, itemID string) ([]domain.Transaction, error)
	UpdateQuantity(ctx context.Context, tx *domain.Transaction) error
	Delete(ctx context.Context, id int64) error
}

// RecordStore owns allocation records.
type RecordStore interface {
	allocation.RecordStore
}

// Repositories are the stores of one unit of work, or of plain reads.
type Repositories struct {
	Items        ItemStore
	Batches      BatchStore
	Transactions TransactionStore
	Records      RecordStore
}

// UnitOfWork runs fn atomically: every mutation made through repos commits
// together, or none does.
type UnitOfWork interface {
	Execute(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
	// Reader returns repositories for reads outside a unit of work.
	Reader() Repositories
}

// dateArg renders a calendar date for a DATE column or comparison.
func dateArg(t time.Time) string {
	return domain.DateOf(t).Format(domain.DateLayout)
}
