// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/scentstock/scentstock/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	msg := shared.UserSafeMessage(err)
	switch {
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", msg)
	case errors.Is(err, shared.ErrInvalidArgument):
		Problem(w, http.StatusBadRequest, "Invalid Argument", msg)
	case errors.Is(err, shared.ErrInsufficientStock):
		Problem(w, http.StatusUnprocessableEntity, "Insufficient Stock", msg)
	case errors.Is(err, shared.ErrConflict):
		Problem(w, http.StatusConflict, "Conflict", msg)
	case errors.Is(err, shared.ErrInvalidCredentials), errors.Is(err, shared.ErrUnauthorized):
		Problem(w, http.StatusUnauthorized, "Unauthorized", msg)
	case errors.Is(err, shared.ErrForbidden):
		Problem(w, http.StatusForbidden, "Forbidden", msg)
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", msg)
	}
}

// Fail logs errors that are not part of the domain taxonomy and writes the
// problem response.
func Fail(w http.ResponseWriter, logger *slog.Logger, err error) {
	if logger != nil && !shared.IsDomainError(err) {
		logger.Error("request failed", slog.Any("error", err))
	}
	RespondError(w, err)
}
