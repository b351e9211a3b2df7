package export

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/scentstock/scentstock/internal/platform/httpx"
	"github.com/scentstock/scentstock/internal/shared"
)

// Handler serves export downloads.
type Handler struct {
	logger  *slog.Logger
	service *Service
	now     func() time.Time
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, now: time.Now}
}

// MountRoutes registers export routes under /api.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/export", func(r chi.Router) {
		r.Get("/products", h.products)
		r.Get("/transactions", h.transactions)
	})
}

func (h *Handler) products(w http.ResponseWriter, r *http.Request) {
	format, err := exportFormat(r)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	rows, err := h.service.Products(r.Context())
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	if format == "json" {
		httpx.JSON(w, http.StatusOK, rows)
		return
	}
	var buf bytes.Buffer
	if err := WriteProductsCSV(&buf, rows); err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	h.writeCSV(w, "products", buf.Bytes())
}

func (h *Handler) transactions(w http.ResponseWriter, r *http.Request) {
	format, err := exportFormat(r)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	rows, err := h.service.Transactions(r.Context())
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	if format == "json" {
		httpx.JSON(w, http.StatusOK, rows)
		return
	}
	var buf bytes.Buffer
	if err := WriteTransactionsCSV(&buf, rows); err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	h.writeCSV(w, "transactions", buf.Bytes())
}

func (h *Handler) writeCSV(w http.ResponseWriter, name string, data []byte) {
	filename := fmt.Sprintf("%s-%s.csv", name, h.now().UTC().Format("20060102"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func exportFormat(r *http.Request) (string, error) {
	switch f := strings.ToLower(r.URL.Query().Get("format")); f {
	case "", "json":
		return "json", nil
	case "csv":
		return "csv", nil
	default:
		return "", fmt.Errorf("%w: unsupported export format %q", shared.ErrInvalidArgument, f)
	}
}
