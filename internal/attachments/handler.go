package attachments

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/scentstock/scentstock/internal/platform/httpx"
	"github.com/scentstock/scentstock/internal/shared"
)

// DefaultMaxUploadBytes bounds an upload request when no limit is configured.
const DefaultMaxUploadBytes = 50 << 20

// Handler exposes attachment endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	maxBytes int64
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, service *Service, maxBytes int64) *Handler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &Handler{logger: logger, service: service, maxBytes: maxBytes}
}

// MountRoutes registers attachment routes under /api.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/attachments", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/upload", h.upload)
		r.Delete("/{id}", h.delete)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.List(r.Context(), ListFilter{
		OilID:    r.URL.Query().Get("oilId"),
		FileType: r.URL.Query().Get("fileType"),
	})
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > h.maxBytes {
		httpx.Problem(w, http.StatusRequestEntityTooLarge, "Payload Too Large", "file exceeds upload limit")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httpx.Problem(w, http.StatusRequestEntityTooLarge, "Payload Too Large", "file exceeds upload limit")
			return
		}
		httpx.Fail(w, h.logger, fmt.Errorf("%w: invalid multipart form", shared.ErrInvalidArgument))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		httpx.Fail(w, h.logger, fmt.Errorf("%w: no file uploaded", shared.ErrInvalidArgument))
		return
	}
	defer file.Close()

	fileType := header.Header.Get("Content-Type")
	if fileType == "" {
		fileType = "application/octet-stream"
	}
	uploadedBy := r.FormValue("uploadedBy")
	if uploadedBy == "" {
		if actor := shared.ActorFromContext(r.Context()); actor != shared.SystemActor {
			uploadedBy = actor
		}
	}
	a, err := h.service.Upload(r.Context(), UploadInput{
		FileName:          header.Filename,
		FileType:          fileType,
		AssociatedOilID:   r.FormValue("associatedOilId"),
		AssociatedOilName: r.FormValue("associatedOilName"),
		UploadedBy:        uploadedBy,
		Notes:             r.FormValue("notes"),
	}, file)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, a)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Fail(w, h.logger, fmt.Errorf("%w: invalid attachment id", shared.ErrInvalidArgument))
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]bool{"success": true})
}
