package handler

import (
	"errors"
	"log/slog"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-identity-api/internal/domain"
)

const genericError = "internal server error"

// httpError maps service errors to responses. Domain errors are shown to the
// caller as is; anything else is logged with the request id and replaced by a
// generic message.
func httpError(w http.ResponseWriter, r *http.Request, err error) {
	if domain.IsDomainError(err) {
		writeError(w, domainStatus(err), err.Error())
		return
	}
	reqID := chimiddleware.GetReqID(r.Context())
	if errors.Is(err, domain.ErrDelivery) {
		slog.Error("otp delivery failed", "request_id", reqID, "path", r.URL.Path, "err", err)
		writeJSON(w, http.StatusBadGateway, MessageEnvelope{
			Error:     "could not send the verification code, try again",
			RequestID: reqID,
		})
		return
	}
	slog.Error("request failed", "request_id", reqID, "method", r.Method, "path", r.URL.Path, "err", err)
	writeJSON(w, http.StatusInternalServerError, MessageEnvelope{Error: genericError, RequestID: reqID})
}

func domainStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrValidation):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadRequest
	}
}
