package service

import (
	"context"

	"github.com/medflow/stockledger/internal/inventory/allocation"
	"github.com/medflow/stockledger/internal/inventory/domain"
	"github.com/medflow/stockledger/internal/inventory/repository"
	"github.com/medflow/stockledger/pkg/errors"
)

// ItemDetail is an item with its live stock and every batch, expired ones
// included, soonest expiration first.
type ItemDetail struct {
	domain.ItemStock
	Batches []domain.StockBatch `json:"batches"`
}

// CreateItem validates and stores a catalog item
func (s *InventoryService) CreateItem(ctx context.Context, item *domain.Item) error {
	item.ApplyDefaults()
	if err := item.Validate(); err != nil {
		return err
	}
	item.CreatedBy = actorRef(ctx)

	err := s.uow.Execute(ctx, func(ctx context.Context, repos repository.Repositories) error {
		return repos.Items.Create(ctx, item)
	})
	if err != nil {
		return err
	}

	s.logger.Info().Str("item_id", item.ID).Str("category", string(item.Category)).Msg("item created")
	s.publisher.PublishItemCreated(ctx, item)
	return nil
}

// ItemExists reports whether the item is in the catalog
func (s *InventoryService) ItemExists(ctx context.Context, id string) (bool, error) {
	return s.uow.Reader().Items.Exists(ctx, id)
}

// GetItem gets an item with its total stock and batches
func (s *InventoryService) GetItem(ctx context.Context, id string) (*ItemDetail, error) {
	repos := s.uow.Reader()

	item, err := repos.Items.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	batches, err := repos.Batches.ListByItem(ctx, id)
	if err != nil {
		return nil, err
	}

	return &ItemDetail{ItemStock: *item, Batches: batches}, nil
}

// ListItems lists items, newest first, optionally of one category
func (s *InventoryService) ListItems(ctx context.Context, page, perPage int, category string) ([]domain.ItemStock, int64, error) {
	if category != "" && !domain.Category(category).Valid() {
		return nil, 0, errors.InvalidField("category", "invalid category: "+category)
	}

	return s.uow.Reader().Items.List(ctx, repository.ItemFilter{
		Category: category,
		Limit:    perPage,
		Offset:   (page - 1) * perPage,
	})
}

// DeleteItem removes an item with all of its stock. Every transaction of the
// item is reversed and deleted first, so no allocation record outlives the
// batch it points at.
func (s *InventoryService) DeleteItem(ctx context.Context, id string) error {
	reversed := 0

	err := s.uow.Execute(ctx, func(ctx context.Context, repos repository.Repositories) error {
		reversed = 0
		if err := repos.Items.Lock(ctx, id); err != nil {
			return err
		}

		txs, err := repos.Transactions.ListByItemForUpdate(ctx, id)
		if err != nil {
			return err
		}

		engine := allocation.NewEngine(repos.Batches, repos.Records)
		for _, tx := range txs {
			if _, err := engine.Reverse(ctx, tx.ID); err != nil {
				return err
			}
			if err := repos.Transactions.Delete(ctx, tx.ID); err != nil {
				return err
			}
			reversed++
		}

		return repos.Items.Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	s.logger.Info().Str("item_id", id).Int("reversed_transactions", reversed).Msg("item deleted")
	s.publisher.PublishItemDeleted(ctx, id, reversed, actorID(ctx))
	return nil
}
