package service

import (
	"context"
	"time"

	"github.com/medflow/stockledger/internal/inventory/domain"
	"github.com/medflow/stockledger/internal/inventory/repository"
	"github.com/medflow/stockledger/pkg/actor"
	"github.com/medflow/stockledger/pkg/logger"
)

// Publisher receives domain events once their unit of work has committed.
type Publisher interface {
	PublishItemCreated(ctx context.Context, item *domain.Item)
	PublishItemDeleted(ctx context.Context, itemID string, reversed int, deletedBy string)
	PublishBatchReceived(ctx context.Context, batch *domain.StockBatch, performedBy string)
	PublishBatchUpdated(ctx context.Context, batch *domain.StockBatch, performedBy string)
	PublishTransaction(ctx context.Context, eventType string, tx *domain.Transaction, performedBy string)
}

// NameResolver maps actor IDs to display names. Unknown IDs are left out.
type NameResolver interface {
	Names(ctx context.Context, userIDs []string) (map[string]string, error)
}

// InventoryService handles inventory business logic
type InventoryService struct {
	uow       repository.UnitOfWork
	publisher Publisher
	names     NameResolver
	logger    *logger.Logger
	now       func() time.Time
}

// Option configures an InventoryService
type Option func(*InventoryService)

// WithNameResolver enables actor_name on transaction reads
func WithNameResolver(names NameResolver) Option {
	return func(s *InventoryService) { s.names = names }
}

// WithClock replaces time.Now, which decides "today" for expiry checks
func WithClock(now func() time.Time) Option {
	return func(s *InventoryService) { s.now = now }
}

// NewInventoryService creates a new inventory service. publisher may be nil.
func NewInventoryService(uow repository.UnitOfWork, publisher Publisher, log *logger.Logger, opts ...Option) *InventoryService {
	s := &InventoryService{
		uow:       uow,
		publisher: publisher,
		logger:    log.WithComponent("inventory"),
		now:       time.Now,
	}
	if publisher == nil {
		s.publisher = discard{}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type discard struct{}

func (discard) PublishItemCreated(context.Context, *domain.Item)                        {}
func (discard) PublishItemDeleted(context.Context, string, int, string)                 {}
func (discard) PublishBatchReceived(context.Context, *domain.StockBatch, string)        {}
func (discard) PublishBatchUpdated(context.Context, *domain.StockBatch, string)         {}
func (discard) PublishTransaction(context.Context, string, *domain.Transaction, string) {}

// today is the reference date for allocation and expiry checks
func (s *InventoryService) today() time.Time {
	return domain.DateOf(s.now())
}

// itemLog scopes the service logger to one item and the acting user
func (s *InventoryService) itemLog(ctx context.Context, itemID string) *logger.Logger {
	return s.logger.WithItemID(itemID).WithActorID(actorID(ctx))
}

func actorID(ctx context.Context) string {
	return actor.IDFromContext(ctx)
}

func actorRef(ctx context.Context) *string {
	if id := actorID(ctx); id != "" {
		return &id
	}
	return nil
}

func (s *InventoryService) resolveNames(ctx context.Context, txs []domain.Transaction) {
	if s.names == nil || len(txs) == 0 {
		return
	}

	ids := make([]string, 0, len(txs))
	for _, tx := range txs {
		ids = append(ids, tx.CreatedBy)
	}

	names, err := s.names.Names(ctx, ids)
	if err != nil {
		// display data only
		s.logger.Warn().Err(err).Msg("failed to resolve actor names")
		return
	}
	for i := range txs {
		txs[i].ActorName = names[txs[i].CreatedBy]
	}
}
