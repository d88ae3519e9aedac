package service

import (
	"context"
	"time"

	"github.com/medflow/stockledger/internal/inventory/domain"
	"github.com/medflow/stockledger/pkg/logger"
	"github.com/medflow/stockledger/pkg/messaging"
)

// ExpiryNotifier receives the result of an expiry scan that found stock.
type ExpiryNotifier interface {
	PublishStockExpiring(ctx context.Context, event messaging.StockExpiringEvent)
}

// ExpiryScheduler runs the expiry report periodically and announces
// expired or expiring stock.
type ExpiryScheduler struct {
	service    *InventoryService
	notifier   ExpiryNotifier
	interval   time.Duration
	windowDays int
	logger     *logger.Logger
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewExpiryScheduler creates a new expiry scheduler
func NewExpiryScheduler(svc *InventoryService, notifier ExpiryNotifier, interval time.Duration, windowDays int, log *logger.Logger) *ExpiryScheduler {
	return &ExpiryScheduler{
		service:    svc,
		notifier:   notifier,
		interval:   interval,
		windowDays: windowDays,
		logger:     log.WithComponent("expiry-scheduler"),
	}
}

// Start starts the scheduler in a background goroutine. The first scan runs
// immediately.
func (s *ExpiryScheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		s.logger.Info().Dur("interval", s.interval).Int("window_days", s.windowDays).Msg("expiry scheduler started")

		s.Scan(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info().Msg("expiry scheduler stopped")
				return
			case <-ticker.C:
				s.Scan(ctx)
			}
		}
	}()
}

// Stop stops the scheduler goroutine and waits for a running scan to finish
func (s *ExpiryScheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

// Scan runs one expiry report and notifies when it lists any batch. It
// reports whether a notification was sent.
func (s *ExpiryScheduler) Scan(ctx context.Context) bool {
	start := time.Now()

	report, err := s.service.ExpiryReport(ctx, s.windowDays)
	if err != nil {
		s.logger.Error().Err(err).Msg("expiry scan failed")
		return false
	}

	s.logger.Info().
		Dur("duration", time.Since(start)).
		Int("batch_count", len(report.Batches)).
		Int("expired_units", report.ExpiredUnits).
		Msg("expiry scan completed")

	if len(report.Batches) == 0 || s.notifier == nil {
		return false
	}

	event := messaging.StockExpiringEvent{
		AsOf:         report.AsOf,
		WithinDays:   report.WithinDays,
		ExpiredUnits: report.ExpiredUnits,
		Batches:      make([]messaging.ExpiringBatchData, len(report.Batches)),
	}
	for i, b := range report.Batches {
		event.Batches[i] = messaging.ExpiringBatchData{
			BatchID:        b.ID,
			ItemID:         b.ItemID,
			ExpirationDate: b.ExpirationDate.Format(domain.DateLayout),
			Quantity:       b.Quantity,
			Status:         b.Status,
		}
	}
	s.notifier.PublishStockExpiring(ctx, event)
	return true
}
