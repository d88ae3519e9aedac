package service

import (
	"context"
	"strings"

	"github.com/medflow/stockledger/internal/inventory/allocation"
	"github.com/medflow/stockledger/internal/inventory/domain"
	"github.com/medflow/stockledger/internal/inventory/repository"
	"github.com/medflow/stockledger/pkg/errors"
	"github.com/medflow/stockledger/pkg/messaging"
)

func validQuantity(quantity int) error {
	if quantity <= 0 {
		return errors.InvalidField("quantity", "must be greater than zero")
	}
	if quantity > domain.MaxQuantity {
		return errors.InvalidField("quantity", "out of range")
	}
	return nil
}

// CreateTransaction dispenses quantity of an item, drawing from the batches
// that expire soonest. The row and its allocation records commit together;
// if stock is short nothing is written.
func (s *InventoryService) CreateTransaction(ctx context.Context, itemID, createdBy string, quantity int) (*domain.Transaction, error) {
	if err := validQuantity(quantity); err != nil {
		return nil, err
	}
	if strings.TrimSpace(createdBy) == "" {
		return nil, errors.InvalidField("created_by", "an actor is required")
	}

	var tx *domain.Transaction
	err := s.uow.Execute(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if err := requireItem(ctx, repos, itemID); err != nil {
			return err
		}

		tx = &domain.Transaction{ItemID: itemID, CreatedBy: createdBy, Quantity: quantity}
		if err := repos.Transactions.Create(ctx, tx); err != nil {
			return err
		}

		records, err := allocation.NewEngine(repos.Batches, repos.Records).
			Allocate(ctx, tx.ID, itemID, quantity, s.today())
		if err != nil {
			return err
		}
		tx.Allocations = records
		return nil
	})
	if err != nil {
		s.logAllocationFailure(ctx, err, itemID, 0, quantity)
		return nil, err
	}

	s.itemLog(ctx, itemID).Info().
		Int64("transaction_id", tx.ID).
		Int("quantity", quantity).
		Int("batches", len(tx.Allocations)).
		Msg("transaction allocated")
	s.publisher.PublishTransaction(ctx, messaging.EventTransactionCreated, tx, createdBy)
	return tx, nil
}

// UpdateTransaction changes a transaction's quantity by giving back its
// current allocation and allocating the new quantity afresh. On failure the
// transaction and every batch keep their previous state.
func (s *InventoryService) UpdateTransaction(ctx context.Context, id int64, quantity int) (*domain.Transaction, error) {
	if err := validQuantity(quantity); err != nil {
		return nil, err
	}

	var tx *domain.Transaction
	err := s.uow.Execute(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		tx, err = repos.Transactions.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}

		engine := allocation.NewEngine(repos.Batches, repos.Records)
		if _, err := engine.Reverse(ctx, tx.ID); err != nil {
			return err
		}

		records, err := engine.Allocate(ctx, tx.ID, tx.ItemID, quantity, s.today())
		if err != nil {
			return err
		}

		tx.Quantity = quantity
		tx.Allocations = records
		return repos.Transactions.UpdateQuantity(ctx, tx)
	})
	if err != nil {
		s.logAllocationFailure(ctx, err, "", id, quantity)
		return nil, err
	}

	s.itemLog(ctx, tx.ItemID).Info().
		Int64("transaction_id", tx.ID).
		Int("quantity", quantity).
		Msg("transaction reallocated")
	s.publisher.PublishTransaction(ctx, messaging.EventTransactionUpdated, tx, actorID(ctx))
	return tx, nil
}

// DeleteTransaction returns a transaction's stock to its batches and removes it
func (s *InventoryService) DeleteTransaction(ctx context.Context, id int64) error {
	var tx *domain.Transaction
	err := s.uow.Execute(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		tx, err = repos.Transactions.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}

		// kept for the event; Reverse deletes them
		tx.Allocations, err = repos.Records.ListByTransaction(ctx, id)
		if err != nil {
			return err
		}

		if _, err := allocation.NewEngine(repos.Batches, repos.Records).Reverse(ctx, id); err != nil {
			return err
		}
		return repos.Transactions.Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	s.itemLog(ctx, tx.ItemID).Info().
		Int64("transaction_id", id).
		Int("quantity", tx.Quantity).
		Msg("transaction reversed")
	s.publisher.PublishTransaction(ctx, messaging.EventTransactionDeleted, tx, actorID(ctx))
	return nil
}

// GetTransaction gets a transaction with its allocation records
func (s *InventoryService) GetTransaction(ctx context.Context, id int64) (*domain.Transaction, error) {
	repos := s.uow.Reader()

	tx, err := repos.Transactions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	tx.Allocations, err = repos.Records.ListByTransaction(ctx, id)
	if err != nil {
		return nil, err
	}

	txs := []domain.Transaction{*tx}
	s.resolveNames(ctx, txs)
	return &txs[0], nil
}

// ListTransactions lists an item's transactions, oldest first, each with
// its allocation records
func (s *InventoryService) ListTransactions(ctx context.Context, itemID string) ([]domain.Transaction, error) {
	repos := s.uow.Reader()
	if err := requireItem(ctx, repos, itemID); err != nil {
		return nil, err
	}

	txs, err := repos.Transactions.ListByItem(ctx, itemID)
	if err != nil {
		return nil, err
	}

	for i := range txs {
		txs[i].Allocations, err = repos.Records.ListByTransaction(ctx, txs[i].ID)
		if err != nil {
			return nil, err
		}
	}

	s.resolveNames(ctx, txs)
	return txs, nil
}

func (s *InventoryService) logAllocationFailure(ctx context.Context, err error, itemID string, txID int64, quantity int) {
	if !errors.Is(err, errors.ErrInsufficientStock) {
		return
	}
	s.itemLog(ctx, itemID).Info().
		Int64("transaction_id", txID).
		Int("quantity", quantity).
		Msg("allocation rejected: insufficient stock")
}
