// Package handler provides HTTP request handlers.
package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/facturo/facturo/internal/auth"
	"github.com/facturo/facturo/internal/model"
	"github.com/facturo/facturo/internal/tenant"
)

// Version is reported by the root endpoint.
const Version = "0.1.0"

// Handler serves the endpoints that need no dependencies.
type Handler struct{}

// New creates a new Handler instance.
func New() *Handler {
	return &Handler{}
}

// Hello reports the service name and version.
// GET /
func (h *Handler) Hello(w http.ResponseWriter, r *http.Request) {
	response := map[string]string{
		"message": "facturo auth",
		"version": Version,
	}
	writeJSON(w, http.StatusOK, response)
}

// NotFound handles 404 responses.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
}

// MethodNotAllowed handles 405 responses.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
}

// Identity returns the authenticated user and the tenant scope bound to ctx
// by the auth middleware. The user is nil on public routes.
func Identity(ctx context.Context) (*model.User, tenant.Scope) {
	scope, ok := tenant.FromContext(ctx)
	if !ok {
		scope = tenant.None()
	}
	return auth.UserFromContext(ctx), scope
}

// errEmptyBody is returned by decodeBody when no JSON was sent.
var errEmptyBody = errors.New("empty request body")

// decodeBody decodes a JSON body into dst. Bodies may be flat or nested
// under a "user" key.
func decodeBody(r *http.Request, dst any) error {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return err
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return errEmptyBody
	}

	var wrapper struct {
		User json.RawMessage `json:"user"`
	}
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return err
	}
	if len(wrapper.User) > 0 && !bytes.Equal(wrapper.User, []byte("null")) {
		raw = wrapper.User
	}
	return json.Unmarshal(raw, dst)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
