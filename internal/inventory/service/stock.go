package service

import (
	"context"

	"github.com/medflow/stockledger/internal/inventory/domain"
	"github.com/medflow/stockledger/internal/inventory/repository"
	"github.com/medflow/stockledger/pkg/errors"
)

// CreateBatch receives a new batch of an item. Missing dates default to
// today; an expiration date before today is rejected.
func (s *InventoryService) CreateBatch(ctx context.Context, batch *domain.StockBatch) error {
	today := s.today()
	if batch.DeliveryDate.IsZero() {
		batch.DeliveryDate = today
	}
	if batch.ExpirationDate.IsZero() {
		batch.ExpirationDate = today
	}
	batch.DeliveryDate = domain.DateOf(batch.DeliveryDate)
	batch.ExpirationDate = domain.DateOf(batch.ExpirationDate)

	details := make(map[string]string)
	if batch.Quantity < 0 {
		details["quantity"] = "must not be negative"
	} else if batch.Quantity > domain.MaxQuantity {
		details["quantity"] = "out of range"
	}
	if batch.ExpirationDate.Before(today) {
		details["expiration_date"] = "must not be in the past"
	}
	if len(details) > 0 {
		return errors.Validation(details)
	}
	batch.CreatedBy = actorRef(ctx)

	err := s.uow.Execute(ctx, func(ctx context.Context, repos repository.Repositories) error {
		exists, err := repos.Items.Exists(ctx, batch.ItemID)
		if err != nil {
			return err
		}
		if !exists {
			return errors.NotFound("item")
		}
		return repos.Batches.Create(ctx, batch)
	})
	if err != nil {
		return err
	}

	s.itemLog(ctx, batch.ItemID).Info().
		Int64("batch_id", batch.ID).
		Int("quantity", batch.Quantity).
		Str("expiration_date", batch.ExpirationDate.Format(domain.DateLayout)).
		Msg("batch received")
	s.publisher.PublishBatchReceived(ctx, batch, actorID(ctx))
	return nil
}

// GetBatch gets a batch by ID
func (s *InventoryService) GetBatch(ctx context.Context, id int64) (*domain.StockBatch, error) {
	return s.uow.Reader().Batches.GetByID(ctx, id)
}

// ListBatches lists every batch of an item, soonest expiration first
func (s *InventoryService) ListBatches(ctx context.Context, itemID string) ([]domain.StockBatch, error) {
	repos := s.uow.Reader()
	if err := requireItem(ctx, repos, itemID); err != nil {
		return nil, err
	}
	return repos.Batches.ListByItem(ctx, itemID)
}

// UpdateBatch corrects a batch's dates or quantity outside of allocation.
// Zero dates keep their stored value. Unlike CreateBatch, an expiration in
// the past is accepted.
func (s *InventoryService) UpdateBatch(ctx context.Context, batch *domain.StockBatch) error {
	if batch.Quantity < 0 {
		return errors.InvalidField("quantity", "must not be negative")
	}
	if batch.Quantity > domain.MaxQuantity {
		return errors.InvalidField("quantity", "out of range")
	}

	err := s.uow.Execute(ctx, func(ctx context.Context, repos repository.Repositories) error {
		existing, err := repos.Batches.GetByID(ctx, batch.ID)
		if err != nil {
			return err
		}
		if batch.DeliveryDate.IsZero() {
			batch.DeliveryDate = existing.DeliveryDate
		}
		if batch.ExpirationDate.IsZero() {
			batch.ExpirationDate = existing.ExpirationDate
		}
		return repos.Batches.Update(ctx, batch)
	})
	if err != nil {
		return err
	}

	s.itemLog(ctx, batch.ItemID).Info().
		Int64("batch_id", batch.ID).
		Int("quantity", batch.Quantity).
		Msg("batch updated")
	s.publisher.PublishBatchUpdated(ctx, batch, actorID(ctx))
	return nil
}

// TotalStock sums every batch of the item, expired ones included
func (s *InventoryService) TotalStock(ctx context.Context, itemID string) (int, error) {
	repos := s.uow.Reader()
	if err := requireItem(ctx, repos, itemID); err != nil {
		return 0, err
	}
	return repos.Batches.TotalStock(ctx, itemID)
}

func requireItem(ctx context.Context, repos repository.Repositories, itemID string) error {
	exists, err := repos.Items.Exists(ctx, itemID)
	if err != nil {
		return err
	}
	if !exists {
		return errors.NotFound("item")
	}
	return nil
}
