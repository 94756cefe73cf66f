package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/facturo/facturo/internal/auth"
	"github.com/facturo/facturo/internal/model"
	"github.com/facturo/facturo/internal/tenant"
)

func TestHandler_Hello(t *testing.T) {
	h := New()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	h.Hello(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}

	contentType := rec.Header().Get("Content-Type")
	if contentType != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", contentType)
	}

	var response map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if response["version"] != Version {
		t.Errorf("unexpected version: %s", response["version"])
	}
}

func TestHandler_NotFound(t *testing.T) {
	h := New()

	req := httptest.NewRequest(http.MethodGet, "/nonexistent", nil)
	rec := httptest.NewRecorder()

	h.NotFound(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rec.Code)
	}

	var response ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if response.Error.Code != "NOT_FOUND" {
		t.Errorf("unexpected error code: %s", response.Error.Code)
	}
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	h := New()

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()

	h.MethodNotAllowed(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status 405, got %d", rec.Code)
	}

	var response ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if response.Error.Code != "METHOD_NOT_ALLOWED" {
		t.Errorf("unexpected error code: %s", response.Error.Code)
	}
}

func TestDecodeBody(t *testing.T) {
	type body struct {
		Email string `json:"email"`
	}

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"flat", `{"email":"a@b.test"}`, "a@b.test", false},
		{"wrapped", `{"user":{"email":"a@b.test"}}`, "a@b.test", false},
		{"null wrapper falls back to flat", `{"user":null,"email":"a@b.test"}`, "a@b.test", false},
		{"empty", ``, "", true},
		{"whitespace", "  \n", "", true},
		{"malformed", `{"email":`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.input))
			var got body
			err := decodeBody(req, &got)
			if (err != nil) != tt.wantErr {
				t.Fatalf("decodeBody() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got.Email != tt.want {
				t.Errorf("email = %q, want %q", got.Email, tt.want)
			}
		})
	}
}

func TestIdentity(t *testing.T) {
	user, scope := Identity(context.Background())
	if user != nil {
		t.Errorf("expected nil user on a bare context, got %+v", user)
	}
	if scope.HasTenant() {
		t.Error("expected no tenant on a bare context")
	}

	account := "01JACME"
	u := &model.User{ID: "01JUSER", AccountID: &account, Active: true}
	ctx := auth.ContextWithUser(context.Background(), u)
	ctx = tenant.WithScope(ctx, tenant.Resolve(u))

	user, scope = Identity(ctx)
	if user == nil || user.ID != u.ID {
		t.Fatalf("unexpected user: %+v", user)
	}
	if scope.AccountID() != account {
		t.Errorf("scope account = %q, want %q", scope.AccountID(), account)
	}
}
