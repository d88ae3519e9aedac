package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/medflow/stockledger/internal/inventory/service"
	"github.com/medflow/stockledger/pkg/httputil"
	"github.com/medflow/stockledger/pkg/logger"
)

// Handlers groups the inventory HTTP handlers
type Handlers struct {
	Items        *ItemHandler
	Batches      *BatchHandler
	Transactions *TransactionHandler
	Dashboard    *DashboardHandler
}

// NewHandlers creates every inventory handler on one service
func NewHandlers(svc *service.InventoryService, log *logger.Logger) *Handlers {
	return &Handlers{
		Items:        NewItemHandler(svc, log),
		Batches:      NewBatchHandler(svc, log),
		Transactions: NewTransactionHandler(svc, log),
		Dashboard:    NewDashboardHandler(svc, log),
	}
}

// Routes builds the inventory API, to be mounted under /api/v1/inventory.
// idempotent wraps transaction creation and may be nil.
func (h *Handlers) Routes(idempotent func(http.Handler) http.Handler) http.Handler {
	if idempotent == nil {
		idempotent = func(next http.Handler) http.Handler { return next }
	}

	r := chi.NewRouter()
	r.Use(httputil.ActorMiddleware)

	r.Route("/items", func(r chi.Router) {
		r.Get("/", h.Items.List)
		r.Post("/", h.Items.Create)
		r.Get("/{id}", h.Items.Get)
		r.Delete("/{id}", h.Items.Delete)
		r.Get("/{id}/stock", h.Items.Stock)
		r.Get("/{id}/batches", h.Batches.ListByItem)
		r.Post("/{id}/batches", h.Batches.Create)
		r.Get("/{id}/transactions", h.Transactions.ListByItem)
		r.With(idempotent).Post("/{id}/transactions", h.Transactions.Create)
	})

	r.Route("/batches", func(r chi.Router) {
		r.Get("/{id}", h.Batches.Get)
		r.Put("/{id}", h.Batches.Update)
	})

	r.Route("/transactions", func(r chi.Router) {
		r.Get("/{id}", h.Transactions.Get)
		r.Put("/{id}", h.Transactions.Update)
		r.Delete("/{id}", h.Transactions.Delete)
	})

	r.Get("/dashboard/expiring", h.Dashboard.Expiring)

	return r
}
