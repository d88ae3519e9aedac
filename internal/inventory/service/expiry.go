package service

import (
	"context"
	"time"

	"github.com/medflow/stockledger/internal/inventory/domain"
	"github.com/medflow/stockledger/pkg/errors"
)

// Expiry statuses, by days left until the expiration date
const (
	ExpiryExpired      = "expired"       // past its date, no longer allocatable
	ExpiryExpiring     = "expiring"      // within 30 days
	ExpiryExpiringSoon = "expiring_soon" // further out, inside the window
)

const (
	expiringThresholdDays = 30
	defaultExpiryWindow   = 90
	maxExpiryWindow       = 365
)

// ExpiringBatch is a batch that still holds stock and expires within the
// report window, or already has.
type ExpiringBatch struct {
	domain.StockBatch
	ItemName        string `json:"item_name"`
	DaysUntilExpiry int    `json:"days_until_expiry"`
	Status          string `json:"status"`
}

// ExpiryReport lists expiring stock as of one day.
type ExpiryReport struct {
	AsOf         string          `json:"as_of"`
	WithinDays   int             `json:"within_days"`
	ExpiredUnits int             `json:"expired_units"`
	TotalUnits   int             `json:"total_units"`
	Batches      []ExpiringBatch `json:"batches"`
}

// ExpiryReport lists every non-empty batch expiring within withinDays of
// today, expired ones included. Zero selects the default window.
func (s *InventoryService) ExpiryReport(ctx context.Context, withinDays int) (*ExpiryReport, error) {
	if withinDays == 0 {
		withinDays = defaultExpiryWindow
	}
	if withinDays < 0 || withinDays > maxExpiryWindow {
		return nil, errors.InvalidField("days", "must be between 1 and 365")
	}

	today := s.today()
	repos := s.uow.Reader()

	batches, err := repos.Batches.ListExpiring(ctx, today.AddDate(0, 0, withinDays))
	if err != nil {
		return nil, err
	}

	report := &ExpiryReport{
		AsOf:       today.Format(domain.DateLayout),
		WithinDays: withinDays,
		TotalUnits: domain.TotalQuantity(batches),
		Batches:    make([]ExpiringBatch, 0, len(batches)),
	}

	names := make(map[string]string)
	for _, b := range batches {
		name, ok := names[b.ItemID]
		if !ok {
			item, err := repos.Items.GetByID(ctx, b.ItemID)
			if err != nil {
				return nil, err
			}
			name = item.ItemName
			names[b.ItemID] = name
		}

		days := daysBetween(today, b.ExpirationDate)
		entry := ExpiringBatch{StockBatch: b, ItemName: name, DaysUntilExpiry: days}
		switch {
		case !b.EligibleOn(today):
			entry.Status = ExpiryExpired
			report.ExpiredUnits += b.Quantity
		case days <= expiringThresholdDays:
			entry.Status = ExpiryExpiring
		default:
			entry.Status = ExpiryExpiringSoon
		}
		report.Batches = append(report.Batches, entry)
	}

	return report, nil
}

func daysBetween(from, to time.Time) int {
	return int(domain.DateOf(to).Sub(domain.DateOf(from)).Hours() / 24)
}
