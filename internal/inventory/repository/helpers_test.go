package repository_test

import (
	"time"

	"github.com/medflow/stockledger/internal/inventory/domain"
)

func newBatch(itemID string, delivered, expires time.Time, qty int) *domain.StockBatch {
	return &domain.StockBatch{
		ItemID:         itemID,
		DeliveryDate:   delivered,
		ExpirationDate: expires,
		Quantity:       qty,
	}
}

func newItem(name string) *domain.Item {
	return &domain.Item{
		Category:    domain.CategoryPainRelievers,
		Subcategory: "Analgesics",
		ItemName:    name,
		BrandName:   "Biogesic",
		GenericName: "Paracetamol",
		DosageForm:  "Tablet",
		Packaging:   domain.PackagingTenBlister,
		Quantity:    10,
		UnitSize:    domain.UnitTablets,
	}
}
