package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/medflow/stockledger/internal/inventory/domain"
	"github.com/medflow/stockledger/internal/inventory/service"
	"github.com/medflow/stockledger/pkg/httputil"
	"github.com/medflow/stockledger/pkg/logger"
)

// ItemHandler handles item endpoints
type ItemHandler struct {
	service *service.InventoryService
	logger  *logger.Logger
}

// NewItemHandler creates a new item handler
func NewItemHandler(svc *service.InventoryService, log *logger.Logger) *ItemHandler {
	return &ItemHandler{
		service: svc,
		logger:  log,
	}
}

type createItemRequest struct {
	Category        string  `json:"category"`
	Subcategory     string  `json:"subcategory" validate:"required"`
	ItemName        string  `json:"item_name" validate:"required,max=128"`
	BrandName       string  `json:"brand_name" validate:"max=128"`
	GenericName     string  `json:"generic_name" validate:"max=128"`
	DosageForm      string  `json:"dosage_form" validate:"max=32"`
	StrengthPerSize *string `json:"strength_per_size" validate:"omitempty,max=32"`
	Packaging       string  `json:"packaging" validate:"required"`
	Quantity        int     `json:"quantity" validate:"gte=0,lte=2147483647"`
	UnitSize        string  `json:"unit_size"`
}

func (req *createItemRequest) toItem() *domain.Item {
	return &domain.Item{
		Category:        domain.Category(req.Category),
		Subcategory:     req.Subcategory,
		ItemName:        req.ItemName,
		BrandName:       req.BrandName,
		GenericName:     req.GenericName,
		DosageForm:      req.DosageForm,
		StrengthPerSize: req.StrengthPerSize,
		Packaging:       domain.Packaging(req.Packaging),
		Quantity:        req.Quantity,
		UnitSize:        domain.UnitType(req.UnitSize),
	}
}

// List lists inventory items
func (h *ItemHandler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := httputil.Pagination(r)
	category := r.URL.Query().Get("category")

	items, total, err := h.service.ListItems(r.Context(), page, perPage, category)
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, items, httputil.NewMeta(page, perPage, total))
}

// Get gets an item with its stock and batches
func (h *ItemHandler) Get(w http.ResponseWriter, r *http.Request) {
	item, err := h.service.GetItem(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, item)
}

// Create creates a new item
func (h *ItemHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, r, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, r, err)
		return
	}

	item := req.toItem()
	if err := h.service.CreateItem(r.Context(), item); err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.Created(w, item)
}

// Delete deletes an item together with its batches and transactions
func (h *ItemHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteItem(r.Context(), chi.URLParam(r, "id")); err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.NoContent(w)
}

// Stock returns the item's total stock across all batches
func (h *ItemHandler) Stock(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "id")

	total, err := h.service.TotalStock(r.Context(), itemID)
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]any{
		"item_id":     itemID,
		"total_stock": total,
	})
}
