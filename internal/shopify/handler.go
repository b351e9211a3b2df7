package shopify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/scentstock/scentstock/internal/platform/httpx"
	"github.com/scentstock/scentstock/internal/shared"
)

const maxWebhookBytes = 5 << 20

// Handler receives Shopify webhooks.
type Handler struct {
	logger  *slog.Logger
	service *Service
	secret  []byte
}

// NewHandler constructs the webhook handler. An empty secret disables
// signature verification.
func NewHandler(logger *slog.Logger, service *Service, secret string) *Handler {
	h := &Handler{logger: logger, service: service}
	if secret != "" {
		h.secret = []byte(secret)
	}
	return h
}

// MountRoutes registers the webhook route under /api.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/webhook/shopify", h.receive)
}

func (h *Handler) receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		httpx.Fail(w, h.logger, fmt.Errorf("%w: unreadable body", shared.ErrInvalidArgument))
		return
	}
	if !h.verify(body, r.Header.Get("X-Shopify-Hmac-Sha256")) {
		h.logger.Warn("shopify webhook signature mismatch", slog.String("remote", r.RemoteAddr))
		httpx.Fail(w, h.logger, fmt.Errorf("%w: invalid webhook signature", shared.ErrUnauthorized))
		return
	}

	topic := strings.TrimSpace(r.Header.Get("X-Shopify-Topic"))
	h.logger.Info("shopify webhook received", slog.String("topic", topic))

	handle := h.service.HandleIntake
	switch topic {
	case TopicOrdersFulfilled, TopicFulfillmentsCreate:
		handle = h.service.HandleFulfillment
	case TopicOrdersCreate, "":
	default:
		httpx.JSON(w, http.StatusOK, map[string]any{"received": true, "message": "Webhook received but not processed"})
		return
	}

	order, err := DecodeOrder(body)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	result, err := handle(r.Context(), order.LineItems, order.Ref)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) verify(body []byte, signature string) bool {
	if len(h.secret) == 0 {
		return true
	}
	given, err := base64.StdEncoding.DecodeString(strings.TrimSpace(signature))
	if err != nil || len(given) == 0 {
		return false
	}
	mac := hmac.New(sha256.New, h.secret)
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), given)
}
