package bom

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/scentstock/scentstock/internal/platform/httpx"
)

// Handler wires HTTP endpoints for BOM maintenance.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs bom handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers BOM routes under /api.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/bom", h.list)
	r.Post("/bom", h.add)
	r.Put("/bom/{variant}/component/{code}", h.update)
	r.Delete("/bom/{variant}/component/{code}", h.delete)
}

type addRequest struct {
	Variant       string          `json:"variant" validate:"required"`
	ComponentCode string          `json:"componentCode" validate:"required"`
	ComponentName string          `json:"componentName"`
	Quantity      decimal.Decimal `json:"quantity"`
}

type updateRequest struct {
	ComponentName *string          `json:"componentName"`
	Quantity      *decimal.Decimal `json:"quantity"`
}

type bomResponse struct {
	Success bool        `json:"success"`
	BOM     []Component `json:"bom"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	grouped, err := h.service.List(r.Context(), r.URL.Query().Get("variant"))
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, grouped)
}

func (h *Handler) add(w http.ResponseWriter, r *http.Request) {
	var req addRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	out, err := h.service.AddComponent(r.Context(), AddInput(req))
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, bomResponse{Success: true, BOM: out})
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	out, err := h.service.UpdateComponent(r.Context(), chi.URLParam(r, "variant"), chi.URLParam(r, "code"), UpdateInput(req))
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, bomResponse{Success: true, BOM: out})
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.DeleteComponent(r.Context(), chi.URLParam(r, "variant"), chi.URLParam(r, "code"))
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, bomResponse{Success: true, BOM: out})
}
