package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/medflow/stockledger/internal/inventory/service"
	"github.com/medflow/stockledger/pkg/actor"
	"github.com/medflow/stockledger/pkg/errors"
	"github.com/medflow/stockledger/pkg/httputil"
	"github.com/medflow/stockledger/pkg/logger"
)

// TransactionHandler handles dispensing transaction endpoints
type TransactionHandler struct {
	service *service.InventoryService
	logger  *logger.Logger
}

// NewTransactionHandler creates a new transaction handler
func NewTransactionHandler(svc *service.InventoryService, log *logger.Logger) *TransactionHandler {
	return &TransactionHandler{
		service: svc,
		logger:  log,
	}
}

// The quantity range is checked by the service.
type quantityRequest struct {
	Quantity *int `json:"quantity" validate:"required"`
}

func decodeQuantity(r *http.Request) (int, error) {
	var req quantityRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		return 0, err
	}
	if err := httputil.Validate(&req); err != nil {
		return 0, err
	}
	return *req.Quantity, nil
}

// ListByItem lists an item's transactions with their allocations
func (h *TransactionHandler) ListByItem(w http.ResponseWriter, r *http.Request) {
	txs, err := h.service.ListTransactions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, txs)
}

// Create dispenses stock of an item on behalf of the request's actor
func (h *TransactionHandler) Create(w http.ResponseWriter, r *http.Request) {
	quantity, err := decodeQuantity(r)
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	a := actor.FromContext(r.Context())
	if a == nil {
		httputil.Error(w, r, errors.Unauthorized("missing actor"))
		return
	}

	tx, err := h.service.CreateTransaction(r.Context(), chi.URLParam(r, "id"), a.ID, quantity)
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.Created(w, tx)
}

// Get gets a transaction with its allocations
func (h *TransactionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "id")
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	tx, err := h.service.GetTransaction(r.Context(), id)
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, tx)
}

// Update changes a transaction's quantity, reallocating its stock
func (h *TransactionHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "id")
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	quantity, err := decodeQuantity(r)
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	tx, err := h.service.UpdateTransaction(r.Context(), id, quantity)
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, tx)
}

// Delete deletes a transaction and returns its stock to the batches
func (h *TransactionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "id")
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	if err := h.service.DeleteTransaction(r.Context(), id); err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.NoContent(w)
}
