package domain

import "time"

// Transaction is a dispensing event against one item. Quantity always
// equals the sum of its allocation records.
type Transaction struct {
	ID          int64              `json:"id" db:"id"`
	ItemID      string             `json:"item_id" db:"item_id"`
	CreatedBy   string             `json:"created_by" db:"created_by"`
	Quantity    int                `json:"quantity" db:"quantity"`
	CreatedAt   time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at" db:"updated_at"`
	ActorName   string             `json:"actor_name,omitempty" db:"-"`
	Allocations []AllocationRecord `json:"allocations,omitempty" db:"-"`
}

// AllocationRecord links a transaction to the batch it drew Quantity from.
type AllocationRecord struct {
	ID            int64     `json:"id" db:"id"`
	TransactionID int64     `json:"transaction_id" db:"transaction_id"`
	BatchID       int64     `json:"batch_id" db:"batch_id"`
	Quantity      int       `json:"quantity" db:"quantity"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// Allocated sums the quantities of records.
func Allocated(records []AllocationRecord) int {
	total := 0
	for _, r := range records {
		total += r.Quantity
	}
	return total
}
