package messaging

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	// User events
	EventUserCreated = "user.created"
	EventUserUpdated = "user.updated"
	EventUserDeleted = "user.deleted"

	// Inventory events
	EventItemCreated        = "inventory.item.created"
	EventItemDeleted        = "inventory.item.deleted"
	EventBatchReceived      = "inventory.batch.received"
	EventBatchUpdated       = "inventory.batch.updated"
	EventTransactionCreated = "inventory.transaction.created"
	EventTransactionUpdated = "inventory.transaction.updated"
	EventTransactionDeleted = "inventory.transaction.deleted"
	EventStockExpiring      = "inventory.stock.expiring"
)

// Exchange names
const (
	ExchangeUserEvents      = "user.events"
	ExchangeInventoryEvents = "inventory.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data any) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            GenerateEventID(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v any) error {
	return json.Unmarshal(e.Data, v)
}

// User Events

// UserCreatedEvent is published when a user is created
type UserCreatedEvent struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	RoleName  string `json:"role_name"`
}

// FullName returns the user's full name
func (e *UserCreatedEvent) FullName() string {
	return strings.TrimSpace(e.FirstName + " " + e.LastName)
}

// UserUpdatedEvent is published when a user is updated. Fields maps each
// changed field to {"from": old, "to": new}.
type UserUpdatedEvent struct {
	UserID string         `json:"user_id"`
	Fields map[string]any `json:"fields"`
}

// ChangedTo returns the new value of a changed string field.
func (e *UserUpdatedEvent) ChangedTo(field string) (string, bool) {
	change, ok := e.Fields[field].(map[string]any)
	if !ok {
		return "", false
	}
	to, ok := change["to"].(string)
	return to, ok
}

// UserDeletedEvent is published when a user is deleted
type UserDeletedEvent struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// Inventory Events

// ItemCreatedEvent is published when a catalog item is created
type ItemCreatedEvent struct {
	ItemID    string `json:"item_id"`
	ItemName  string `json:"item_name"`
	Category  string `json:"category"`
	CreatedBy string `json:"created_by,omitempty"`
}

// ItemDeletedEvent is published when an item and its stock are removed
type ItemDeletedEvent struct {
	ItemID               string `json:"item_id"`
	ReversedTransactions int    `json:"reversed_transactions"`
	DeletedBy            string `json:"deleted_by,omitempty"`
}

// BatchEvent is published when a batch is received or edited
type BatchEvent struct {
	BatchID        int64  `json:"batch_id"`
	ItemID         string `json:"item_id"`
	DeliveryDate   string `json:"delivery_date"`
	ExpirationDate string `json:"expiration_date"`
	Quantity       int    `json:"quantity"`
	PerformedBy    string `json:"performed_by,omitempty"`
}

// AllocationData is one batch draw of a transaction
type AllocationData struct {
	BatchID  int64 `json:"batch_id"`
	Quantity int   `json:"quantity"`
}

// TransactionEvent is published when a dispensing transaction is created,
// updated or deleted. On delete, Allocations lists what was returned to stock.
type TransactionEvent struct {
	TransactionID int64            `json:"transaction_id"`
	ItemID        string           `json:"item_id"`
	Quantity      int              `json:"quantity"`
	CreatedBy     string           `json:"created_by"`
	PerformedBy   string           `json:"performed_by,omitempty"`
	Allocated     int              `json:"allocated"`
	Allocations   []AllocationData `json:"allocations"`
}

// ExpiringBatchData is one batch in a StockExpiringEvent
type ExpiringBatchData struct {
	BatchID        int64  `json:"batch_id"`
	ItemID         string `json:"item_id"`
	ExpirationDate string `json:"expiration_date"`
	Quantity       int    `json:"quantity"`
	Status         string `json:"status"`
}

// StockExpiringEvent is published by the periodic expiry scan when stock has
// expired or is about to.
type StockExpiringEvent struct {
	AsOf         string              `json:"as_of"`
	WithinDays   int                 `json:"within_days"`
	ExpiredUnits int                 `json:"expired_units"`
	Batches      []ExpiringBatchData `json:"batches"`
}

// GenerateEventID generates a unique event ID
func GenerateEventID() string {
	return uuid.New().String()
}
