package inventory

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

// Handler wires HTTP endpoints for stock movements and the ledger.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers inventory routes under /api.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/stock/add", h.handleDirected(DirectionAdd))
	r.Post("/stock/remove", h.handleDirected(DirectionRemove))
	r.Post("/stock/adjust", h.handleAdjust)
	r.Get("/transactions", h.handleListTransactions)
}

type stockRequest struct {
	ProductID      string          `json:"productId" validate:"required"`
	Quantity       decimal.Decimal `json:"quantity"`
	Notes          string          `json:"notes"`
	Note           string          `json:"note"`
	Type           string          `json:"type"`
	ShopifyOrderID string          `json:"shopifyOrderId"`
}

func (req stockRequest) note() string {
	if req.Notes != "" {
		return req.Notes
	}
	return req.Note
}

type stockResponse struct {
	Success     bool            `json:"success"`
	NewStock    decimal.Decimal `json:"newStock"`
	StockBoxes  int64           `json:"stockBoxes"`
	Transaction Transaction     `json:"transaction"`
}

func (h *Handler) handleDirected(direction Direction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req stockRequest
		if err := httpx.DecodeJSON(r, &req); err != nil {
			h.fail(w, err)
			return
		}
		h.adjust(w, r, req, string(direction), req.note())
	}
}

func (h *Handler) handleAdjust(w http.ResponseWriter, r *http.Request) {
	var req stockRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	if req.Type == "" {
		h.fail(w, fmt.Errorf("%w: type required", shared.ErrInvalidArgument))
		return
	}
	note := req.note()
	if note == "" {
		note = fmt.Sprintf("Manual %s adjustment", req.Type)
	}
	h.adjust(w, r, req, req.Type, note)
}

func (h *Handler) adjust(w http.ResponseWriter, r *http.Request, req stockRequest, direction, note string) {
	result, err := h.service.AdjustStock(r.Context(), AdjustInput{
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
		Direction: direction,
		Note:      note,
		OrderRef:  req.ShopifyOrderID,
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stockResponse{
		Success:     true,
		NewStock:    result.NewStock,
		StockBoxes:  result.StockBoxes,
		Transaction: result.Transaction,
	})
}

func (h *Handler) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := TransactionFilter{
		ProductID: q.Get("productId"),
		Type:      q.Get("type"),
		Category:  q.Get("category"),
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			h.fail(w, fmt.Errorf("%w: limit must be an integer", shared.ErrInvalidArgument))
			return
		}
		filter.Limit = limit
	}
	if v := q.Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil {
			h.fail(w, fmt.Errorf("%w: offset must be an integer", shared.ErrInvalidArgument))
			return
		}
		filter.Offset = offset
	}
	entries, err := h.service.ListTransactions(r.Context(), filter)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entries)
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	httpx.Fail(w, h.logger, err)
}
