package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/facturo/facturo/internal/auth"
	"github.com/facturo/facturo/internal/metrics"
	"github.com/facturo/facturo/internal/model"
	"github.com/facturo/facturo/internal/tenant"
)

// Authenticator resolves a bearer token to its current user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*model.User, error)
}

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	Logger        *slog.Logger
	Authenticator Authenticator
	Metrics       metrics.Recorder
}

// Authenticate returns a middleware that requires a valid bearer token.
// On success the user and its tenant scope are bound to the request context.
func Authenticate(cfg AuthConfig) func(http.Handler) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	recorder := cfg.Metrics
	if recorder == nil {
		recorder = metrics.NewNoop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			defer func() {
				recorder.ObserveAuthenticateDuration(time.Since(start))
			}()

			token := BearerToken(r)
			if token == "" {
				reject(w, r, logger, recorder, metrics.RejectMissing)
				return
			}

			user, err := cfg.Authenticator.Authenticate(r.Context(), token)
			if err != nil {
				reason := rejectReason(err)
				if reason == "" {
					logger.Error("authentication lookup failed",
						slog.String("error", err.Error()),
						slog.String("request_id", GetRequestID(r.Context())),
					)
					writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred")
					return
				}
				reject(w, r, logger, recorder, reason)
				return
			}

			scope := tenant.Resolve(user)
			notePrincipal(r.Context(), user.ID, scope.AccountID())

			ctx := auth.ContextWithUser(r.Context(), user)
			ctx = tenant.WithScope(ctx, scope)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken extracts the token from "Authorization: Bearer <token>".
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// rejectReason maps an authentication error to its metric label.
// An empty result means the failure was not the caller's fault.
func rejectReason(err error) string {
	switch {
	case errors.Is(err, auth.ErrTokenExpired):
		return metrics.RejectExpired
	case errors.Is(err, auth.ErrInvalidToken):
		return metrics.RejectInvalid
	case errors.Is(err, auth.ErrRevoked):
		return metrics.RejectRevoked
	case errors.Is(err, auth.ErrInactive):
		return metrics.RejectInactive
	case errors.Is(err, auth.ErrUnauthorized):
		return metrics.RejectUnknown
	default:
		return ""
	}
}

func reject(w http.ResponseWriter, r *http.Request, logger *slog.Logger, recorder metrics.Recorder, reason string) {
	recorder.IncTokenRejected(reason)
	logger.Warn("authentication failed",
		slog.String("reason", reason),
		slog.String("ip", r.RemoteAddr),
		slog.String("endpoint", r.Method+" "+r.URL.Path),
		slog.String("request_id", GetRequestID(r.Context())),
	)
	writeAuthError(w)
}

// writeAuthError writes a 401 Unauthorized response.
// Uses the same message for all auth failures to prevent enumeration.
func writeAuthError(w http.ResponseWriter) {
	writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or missing token")
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":{"code":"` + code + `","message":"` + message + `"}}`))
}
