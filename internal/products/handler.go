package products

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/scentstock/scentstock/internal/platform/httpx"
	"github.com/scentstock/scentstock/internal/shared"
)

// Handler wires HTTP endpoints for the product catalogue.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs products handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers product routes under /api.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Get("/{id}", h.get)
		r.Put("/{id}", h.update)
		r.Delete("/{id}", h.delete)
		r.Delete("/{id}/incoming/{index}", h.clearIncoming)
	})
}

type createRequest struct {
	Name          string          `json:"name" validate:"required"`
	Category      string          `json:"category" validate:"required"`
	ProductCode   string          `json:"productCode"`
	Tag           string          `json:"tag"`
	Unit          string          `json:"unit"`
	CurrentStock  decimal.Decimal `json:"currentStock"`
	MinStockLevel decimal.Decimal `json:"minStockLevel"`
	Supplier      string          `json:"supplier"`
	SupplierCode  string          `json:"supplier_code"`
	UnitPerBox    decimal.Decimal `json:"unitPerBox"`
	ShopifySKUs   SKUMap          `json:"shopifySkus"`
}

type updateRequest struct {
	Name          *string          `json:"name"`
	Category      *string          `json:"category"`
	ProductCode   *string          `json:"productCode"`
	Tag           *string          `json:"tag"`
	Unit          *string          `json:"unit"`
	CurrentStock  *decimal.Decimal `json:"currentStock"`
	MinStockLevel *decimal.Decimal `json:"minStockLevel"`
	Supplier      *string          `json:"supplier"`
	SupplierCode  *string          `json:"supplier_code"`
	UnitPerBox    *decimal.Decimal `json:"unitPerBox"`
	ShopifySKUs   *SKUMap          `json:"shopifySkus"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.List(r.Context(), ListFilter{
		Category: r.URL.Query().Get("category"),
		Search:   r.URL.Query().Get("search"),
	})
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	p, err := h.service.Create(r.Context(), CreateInput(req))
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	p, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), UpdateInput(req))
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *Handler) clearIncoming(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		httpx.Fail(w, h.logger, fmt.Errorf("%w: index must be an integer", shared.ErrInvalidArgument))
		return
	}
	if err := h.service.ClearIncomingOrder(r.Context(), chi.URLParam(r, "id"), index); err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true})
}
