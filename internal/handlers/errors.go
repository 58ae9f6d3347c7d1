package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/bookingd/apiserver/internal/lib/sl"
	"github.com/bookingd/apiserver/internal/services"
)

// statusFor maps a service error kind to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, services.ErrInvalidCredentials), errors.Is(err, services.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError renders err. Unclassified errors are logged and hidden
// behind a generic 500.
func writeServiceError(w http.ResponseWriter, log *slog.Logger, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error("request failed", sl.Err(err))
		writeError(w, status, "internal server error")
		return
	}

	var svcErr *services.Error
	if !errors.As(err, &svcErr) {
		writeError(w, status, err.Error())
		return
	}
	if len(svcErr.Details) == 0 {
		writeError(w, status, svcErr.Message)
		return
	}

	body := make(map[string]any, len(svcErr.Details)+1)
	for k, v := range svcErr.Details {
		body[k] = v
	}
	body["error"] = svcErr.Message
	writeJSON(w, status, body)
}
