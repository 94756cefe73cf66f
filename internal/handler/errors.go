package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/facturo/facturo/internal/auth"
	"github.com/facturo/facturo/internal/middleware"
	"github.com/facturo/facturo/internal/policy"
	"github.com/facturo/facturo/internal/service"
	"github.com/facturo/facturo/internal/tenant"
)

// ErrorResponse is the error envelope of every endpoint.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody describes a single failure.
type ErrorBody struct {
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Details map[string][]string `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: ErrorBody{Code: code, Message: message}})
}

// writeServiceError maps a service error to its HTTP status. Anything not
// recognised is logged and reported as a 500 without detail.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var validation *service.ValidationError
	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: ErrorBody{
			Code:    "VALIDATION_FAILED",
			Message: "Validation failed",
			Details: validation.Fields,
		}})
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password")
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrTokenExpired),
		errors.Is(err, auth.ErrRevoked),
		errors.Is(err, auth.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or missing token")
	case errors.Is(err, auth.ErrInactive):
		writeError(w, http.StatusForbidden, "INACTIVE_ACCOUNT", "Account is inactive")
	case errors.Is(err, policy.ErrForbidden), errors.Is(err, tenant.ErrNoTenant):
		writeError(w, http.StatusForbidden, "FORBIDDEN", "You are not allowed to perform this action")
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
	default:
		logger.Error("request failed",
			slog.String("error", err.Error()),
			slog.String("endpoint", r.Method+" "+r.URL.Path),
			slog.String("request_id", middleware.GetRequestID(r.Context())),
		)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred")
	}
}
