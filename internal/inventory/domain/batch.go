package domain

import (
	"math"
	"time"
)

// MaxQuantity is the largest quantity a batch, item or transaction may hold.
// Quantity columns are 32-bit.
const MaxQuantity = math.MaxInt32

// StockBatch is a quantity of an item received on one day with one
// expiration date. Quantity never drops below zero.
type StockBatch struct {
	ID             int64     `json:"id" db:"id"`
	ItemID         string    `json:"item_id" db:"item_id"`
	DeliveryDate   time.Time `json:"delivery_date" db:"delivery_date"`
	ExpirationDate time.Time `json:"expiration_date" db:"expiration_date"`
	Quantity       int       `json:"quantity" db:"quantity"`
	CreatedBy      *string   `json:"created_by,omitempty" db:"created_by"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// EligibleOn reports whether the batch may be allocated on day. A batch
// expiring on day itself is still eligible.
func (b *StockBatch) EligibleOn(day time.Time) bool {
	return !DateOf(b.ExpirationDate).Before(DateOf(day))
}

// LessFIFO orders batches by expiration date, then id.
func LessFIFO(a, b *StockBatch) bool {
	if !a.ExpirationDate.Equal(b.ExpirationDate) {
		return a.ExpirationDate.Before(b.ExpirationDate)
	}
	return a.ID < b.ID
}

// TotalQuantity sums the quantity of every batch, expired or not.
func TotalQuantity(batches []StockBatch) int {
	total := 0
	for _, b := range batches {
		total += b.Quantity
	}
	return total
}
