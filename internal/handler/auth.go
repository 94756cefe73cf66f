package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/facturo/facturo/internal/handler/dto"
	"github.com/facturo/facturo/internal/middleware"
	"github.com/facturo/facturo/internal/service"
)

// AuthHandler handles session and own-account endpoints.
type AuthHandler struct {
	service *service.AuthService
	logger  *slog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(svc *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{service: svc, logger: logger}
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	user, err := h.service.Register(r.Context(), service.RegisterInput{
		AccountName:          req.AccountName,
		Email:                req.Email,
		Password:             req.Password,
		PasswordConfirmation: req.PasswordConfirmation,
		FirstName:            req.FirstName,
		LastName:             req.LastName,
		Phone:                req.Phone,
		State:                req.State,
		CompanyName:          req.CompanyName,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	account, err := h.service.Account(r.Context(), user)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.RegisterResponse{
		Message: "User created",
		User:    dto.UserFromModel(user),
		Account: dto.AccountFromModel(account),
	})
}

// Login handles POST /auth/login. The token is returned in the body and in
// the Authorization response header.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Missing credentials")
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Missing credentials")
		return
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	w.Header().Set("Authorization", "Bearer "+result.Token)
	writeJSON(w, http.StatusOK, dto.LoginResponse{
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
		User:      dto.UserFromModel(result.User),
	})
}

// Logout handles DELETE /auth/logout. Every token of the caller stops
// validating, including the one used for this request.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	user, _ := Identity(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or missing token")
		return
	}

	if err := h.service.Logout(r.Context(), user.ID); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	h.logger.Info("session revoked",
		slog.String("user_id", user.ID),
		slog.String("request_id", middleware.GetRequestID(r.Context())),
	)
	writeJSON(w, http.StatusOK, dto.MessageResponse{Message: "Logged out"})
}

// Validate handles GET /auth/validate. The caller's tenant is included when
// it has one.
func (h *AuthHandler) Validate(w http.ResponseWriter, r *http.Request) {
	user, _ := Identity(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or missing token")
		return
	}
	account, err := h.service.Account(r.Context(), user)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.UserEnvelope{
		User:    dto.UserFromModel(user),
		Account: dto.AccountFromModel(account),
	})
}

// UpdateAccount handles PATCH /auth/account.
func (h *AuthHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	user, _ := Identity(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or missing token")
		return
	}

	var req dto.UpdateAccountRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	updated, err := h.service.UpdateAccount(r.Context(), user.ID, service.UpdateAccountInput{
		FirstName:            req.FirstName,
		LastName:             req.LastName,
		Phone:                req.Phone,
		State:                req.State,
		CompanyName:          req.CompanyName,
		CurrentPassword:      req.CurrentPassword,
		Password:             req.Password,
		PasswordConfirmation: req.PasswordConfirmation,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.UserEnvelope{User: dto.UserFromModel(updated)})
}

// DeleteAccount handles DELETE /auth/account.
func (h *AuthHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	user, _ := Identity(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or missing token")
		return
	}

	var req dto.DeleteAccountRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	if err := h.service.DeleteAccount(r.Context(), user.ID, req.CurrentPassword); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.MessageResponse{Message: "Account deleted"})
}
