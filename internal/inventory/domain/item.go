package domain

import (
	"strings"
	"time"

	"github.com/medflow/stockledger/pkg/errors"
)

// Item is catalog reference data. Its Quantity is the declared nominal size
// and is never used as a stock counter.
type Item struct {
	ID              string    `json:"id" db:"id"`
	Category        Category  `json:"category" db:"category"`
	Subcategory     string    `json:"subcategory" db:"subcategory"`
	ItemName        string    `json:"item_name" db:"item_name"`
	BrandName       string    `json:"brand_name" db:"brand_name"`
	GenericName     string    `json:"generic_name" db:"generic_name"`
	DosageForm      string    `json:"dosage_form" db:"dosage_form"`
	StrengthPerSize *string   `json:"strength_per_size" db:"strength_per_size"`
	Packaging       Packaging `json:"packaging" db:"packaging"`
	Quantity        int       `json:"quantity" db:"quantity"`
	UnitSize        UnitType  `json:"unit_size" db:"unit_size"`
	CreatedBy       *string   `json:"created_by,omitempty" db:"created_by"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// ItemStock is an item read together with its live stock figure.
type ItemStock struct {
	Item
	TotalStock int `json:"total_stock" db:"total_stock"`
}

// ApplyDefaults fills the enumerations that have a default value.
func (i *Item) ApplyDefaults() {
	if i.Category == "" {
		i.Category = CategoryOTCMedicines
	}
	if i.UnitSize == "" {
		i.UnitSize = UnitEach
	}
}

// Validate checks enumeration membership and required names.
func (i *Item) Validate() error {
	details := make(map[string]string)

	if !i.Category.Valid() {
		details["category"] = "invalid category: " + string(i.Category)
	}
	if !ValidSubcategory(i.Subcategory) {
		details["subcategory"] = "invalid subcategory: " + i.Subcategory
	}
	if !i.Packaging.Valid() {
		details["packaging"] = "invalid packaging: " + string(i.Packaging)
	}
	if !i.UnitSize.Valid() {
		details["unit_size"] = "invalid unit type: " + string(i.UnitSize)
	}

	required := map[string]string{
		"item_name":    i.ItemName,
		"brand_name":   i.BrandName,
		"generic_name": i.GenericName,
		"dosage_form":  i.DosageForm,
	}
	for field, value := range required {
		if strings.TrimSpace(value) == "" {
			details[field] = "this field is required"
		}
	}

	if i.Quantity < 0 {
		details["quantity"] = "must not be negative"
	} else if i.Quantity > MaxQuantity {
		details["quantity"] = "out of range"
	}

	if len(details) > 0 {
		return errors.Validation(details)
	}
	return nil
}
