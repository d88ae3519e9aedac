package events

import (
	"context"

	"github.com/medflow/stockledger/internal/inventory/domain"
	"github.com/medflow/stockledger/pkg/logger"
	"github.com/medflow/stockledger/pkg/messaging"
)

// Sender is the transport the publisher hands events to.
type Sender interface {
	Publish(ctx context.Context, eventType string, data any) error
}

// InventoryEventPublisher publishes inventory events after commit. Failures
// are logged and never reach the caller; a nil publisher is a no-op.
type InventoryEventPublisher struct {
	sender Sender
	logger *logger.Logger
}

// NewInventoryEventPublisher creates a publisher on the inventory exchange
func NewInventoryEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*InventoryEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeInventoryEvents, "inventory-service", log)
	if err != nil {
		return nil, err
	}
	return NewWithSender(publisher, log), nil
}

// NewWithSender creates a publisher on an arbitrary transport
func NewWithSender(sender Sender, log *logger.Logger) *InventoryEventPublisher {
	return &InventoryEventPublisher{sender: sender, logger: log}
}

// PublishItemCreated publishes an item created event
func (p *InventoryEventPublisher) PublishItemCreated(ctx context.Context, item *domain.Item) {
	if p == nil {
		return
	}
	data := messaging.ItemCreatedEvent{
		ItemID:   item.ID,
		ItemName: item.ItemName,
		Category: string(item.Category),
	}
	if item.CreatedBy != nil {
		data.CreatedBy = *item.CreatedBy
	}
	p.publish(ctx, messaging.EventItemCreated, data, item.ID)
}

// PublishItemDeleted publishes an item deleted event
func (p *InventoryEventPublisher) PublishItemDeleted(ctx context.Context, itemID string, reversed int, deletedBy string) {
	if p == nil {
		return
	}
	p.publish(ctx, messaging.EventItemDeleted, messaging.ItemDeletedEvent{
		ItemID:               itemID,
		ReversedTransactions: reversed,
		DeletedBy:            deletedBy,
	}, itemID)
}

// PublishBatchReceived publishes a batch received event
func (p *InventoryEventPublisher) PublishBatchReceived(ctx context.Context, batch *domain.StockBatch, performedBy string) {
	if p == nil {
		return
	}
	p.publish(ctx, messaging.EventBatchReceived, batchEvent(batch, performedBy), batch.ItemID)
}

// PublishBatchUpdated publishes a batch updated event
func (p *InventoryEventPublisher) PublishBatchUpdated(ctx context.Context, batch *domain.StockBatch, performedBy string) {
	if p == nil {
		return
	}
	p.publish(ctx, messaging.EventBatchUpdated, batchEvent(batch, performedBy), batch.ItemID)
}

// PublishTransaction publishes a transaction event of eventType, one of the
// messaging.EventTransaction* constants.
func (p *InventoryEventPublisher) PublishTransaction(ctx context.Context, eventType string, tx *domain.Transaction, performedBy string) {
	if p == nil {
		return
	}

	allocations := make([]messaging.AllocationData, len(tx.Allocations))
	for i, rec := range tx.Allocations {
		allocations[i] = messaging.AllocationData{BatchID: rec.BatchID, Quantity: rec.Quantity}
	}

	p.publish(ctx, eventType, messaging.TransactionEvent{
		TransactionID: tx.ID,
		ItemID:        tx.ItemID,
		Quantity:      tx.Quantity,
		CreatedBy:     tx.CreatedBy,
		PerformedBy:   performedBy,
		Allocated:     domain.Allocated(tx.Allocations),
		Allocations:   allocations,
	}, tx.ItemID)
}

// PublishStockExpiring publishes the result of an expiry scan
func (p *InventoryEventPublisher) PublishStockExpiring(ctx context.Context, event messaging.StockExpiringEvent) {
	if p == nil {
		return
	}
	p.publish(ctx, messaging.EventStockExpiring, event, "")
}

func (p *InventoryEventPublisher) publish(ctx context.Context, eventType string, data any, itemID string) {
	if err := p.sender.Publish(ctx, eventType, data); err != nil {
		p.logger.Error().Err(err).
			Str("event_type", eventType).
			Str("item_id", itemID).
			Msg("failed to publish inventory event")
	}
}

func batchEvent(batch *domain.StockBatch, performedBy string) messaging.BatchEvent {
	return messaging.BatchEvent{
		BatchID:        batch.ID,
		ItemID:         batch.ItemID,
		DeliveryDate:   batch.DeliveryDate.Format(domain.DateLayout),
		ExpirationDate: batch.ExpirationDate.Format(domain.DateLayout),
		Quantity:       batch.Quantity,
		PerformedBy:    performedBy,
	}
}
