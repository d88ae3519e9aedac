package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/medflow/stockledger/internal/inventory/domain"
	"github.com/medflow/stockledger/internal/inventory/service"
	"github.com/medflow/stockledger/pkg/httputil"
	"github.com/medflow/stockledger/pkg/logger"
)

// BatchHandler handles batch endpoints
type BatchHandler struct {
	service *service.InventoryService
	logger  *logger.Logger
}

// NewBatchHandler creates a new batch handler
func NewBatchHandler(svc *service.InventoryService, log *logger.Logger) *BatchHandler {
	return &BatchHandler{
		service: svc,
		logger:  log,
	}
}

// batchRequest is shared by create and update. Dates are YYYY-MM-DD; an
// omitted date means today on create and "unchanged" on update.
type batchRequest struct {
	DeliveryDate   string `json:"delivery_date" validate:"omitempty,datetime=2006-01-02"`
	ExpirationDate string `json:"expiration_date" validate:"omitempty,datetime=2006-01-02"`
	Quantity       *int   `json:"quantity" validate:"required,gte=0,lte=2147483647"`
}

func (req *batchRequest) toBatch() (*domain.StockBatch, error) {
	delivered, err := optionalDate("delivery_date", req.DeliveryDate)
	if err != nil {
		return nil, err
	}
	expires, err := optionalDate("expiration_date", req.ExpirationDate)
	if err != nil {
		return nil, err
	}
	return &domain.StockBatch{
		DeliveryDate:   delivered,
		ExpirationDate: expires,
		Quantity:       *req.Quantity,
	}, nil
}

func (h *BatchHandler) decode(r *http.Request) (*domain.StockBatch, error) {
	var req batchRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		return nil, err
	}
	if err := httputil.Validate(&req); err != nil {
		return nil, err
	}
	return req.toBatch()
}

// ListByItem lists batches for an item
func (h *BatchHandler) ListByItem(w http.ResponseWriter, r *http.Request) {
	batches, err := h.service.ListBatches(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, batches)
}

// Get gets a batch by ID
func (h *BatchHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "id")
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	batch, err := h.service.GetBatch(r.Context(), id)
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, batch)
}

// Create receives a new batch for an item
func (h *BatchHandler) Create(w http.ResponseWriter, r *http.Request) {
	batch, err := h.decode(r)
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	batch.ItemID = chi.URLParam(r, "id")
	if err := h.service.CreateBatch(r.Context(), batch); err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.Created(w, batch)
}

// Update corrects a batch's dates or quantity
func (h *BatchHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "id")
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	batch, err := h.decode(r)
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	batch.ID = id
	if err := h.service.UpdateBatch(r.Context(), batch); err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, batch)
}
