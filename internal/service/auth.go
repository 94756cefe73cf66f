package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/facturo/facturo/internal/auth"
	"github.com/facturo/facturo/internal/metrics"
	"github.com/facturo/facturo/internal/model"
	"github.com/facturo/facturo/internal/tenant"
)

// AuthService handles registration, sessions and the caller's own account.
type AuthService struct {
	store   Store
	hasher  *auth.Hasher
	tokens  *auth.TokenService
	metrics metrics.Recorder
	logger  *slog.Logger
	now     func() time.Time
}

// NewAuthService creates a new AuthService.
func NewAuthService(store Store, hasher *auth.Hasher, tokens *auth.TokenService, recorder metrics.Recorder, logger *slog.Logger) *AuthService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		store:   store,
		hasher:  hasher,
		tokens:  tokens,
		metrics: recorder,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// RegisterInput defines input for registering an organization and its admin.
type RegisterInput struct {
	AccountName          string
	Email                string
	Password             string
	PasswordConfirmation *string
	FirstName            string
	LastName             string
	Phone                string
	State                string
	CompanyName          string
}

// accountName picks the tenant display name.
func (in RegisterInput) accountName() string {
	for _, name := range []string{in.AccountName, in.CompanyName} {
		if n := strings.TrimSpace(name); n != "" {
			return n
		}
	}
	return strings.TrimSpace(in.FirstName + " " + in.LastName)
}

// Register creates a new account with the registrant as its first admin.
// It is the only operation that runs outside any tenant.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	v := &ValidationError{}
	validateEmail(v, in.Email)
	validatePassword(v, in.Password, in.PasswordConfirmation)
	validateRequired(v, "first_name", in.FirstName)
	validateRequired(v, "last_name", in.LastName)
	if err := v.Err(); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}
	generation, err := auth.NewGenerationID()
	if err != nil {
		return nil, err
	}

	now := s.now()
	account := &model.Account{
		ID:        ulid.Make().String(),
		Name:      in.accountName(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	user := &model.User{
		ID:                ulid.Make().String(),
		Email:             model.NormalizeEmail(in.Email),
		PasswordHash:      hash,
		FirstName:         strings.TrimSpace(in.FirstName),
		LastName:          strings.TrimSpace(in.LastName),
		Phone:             in.Phone,
		State:             in.State,
		CompanyName:       in.CompanyName,
		Admin:             true,
		Active:            true,
		TokenGenerationID: generation,
		Version:           1,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	bootstrap := tenant.WithoutTenant(ctx, "registration")
	if err := s.store.CreateAccountWithAdmin(bootstrap, account, user); err != nil {
		return nil, mapStoreError(err)
	}

	s.metrics.IncRegistration()
	s.logger.Info("account registered",
		slog.String("account_id", account.ID),
		slog.String("user_id", user.ID),
	)
	return user, nil
}

// LoginResult is a freshly issued session.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      *model.User
}

// Login verifies credentials and issues a token. Unknown email and wrong
// password both return auth.ErrInvalidCredentials. auth.ErrInactive is only
// returned after the password verified.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(mapStoreError(err), ErrNotFound) {
			_ = s.hasher.VerifyDummy(password)
			s.metrics.IncLogin(metrics.LoginInvalidCredentials)
			return nil, auth.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if err := s.hasher.Verify(user.PasswordHash, password); err != nil {
		s.metrics.IncLogin(metrics.LoginInvalidCredentials)
		if errors.Is(err, auth.ErrInvalidCredentials) {
			return nil, auth.ErrInvalidCredentials
		}
		return nil, err
	}

	if !user.Active {
		s.metrics.IncLogin(metrics.LoginInactive)
		return nil, auth.ErrInactive
	}

	// First login for a user created without a generation id.
	if user.TokenGenerationID == "" {
		candidate, err := auth.NewGenerationID()
		if err != nil {
			return nil, err
		}
		user, err = s.store.EnsureTokenGeneration(ctx, user.ID, candidate)
		if err != nil {
			return nil, fmt.Errorf("ensure token generation: %w", mapStoreError(err))
		}
	}

	token, expiresAt, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}

	s.metrics.IncLogin(metrics.LoginSuccess)
	s.logger.Info("user logged in", slog.String("user_id", user.ID))
	return &LoginResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// Authenticate resolves a bearer token to its current user. Failures are
// reported as auth.ErrInvalidToken (possibly wrapping auth.ErrTokenExpired),
// auth.ErrRevoked or auth.ErrUnauthorized for a missing or inactive user.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*model.User, error) {
	session, err := s.tokens.Validate(token)
	if err != nil {
		return nil, err
	}

	user, err := s.store.GetUserByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(mapStoreError(err), ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown user", auth.ErrUnauthorized)
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	if !user.Active {
		return nil, fmt.Errorf("%w: %w", auth.ErrUnauthorized, auth.ErrInactive)
	}
	if auth.IsRevoked(session, user) {
		return nil, auth.ErrRevoked
	}
	return user, nil
}

// Account returns the tenant the user belongs to, or nil for a user without
// one.
func (s *AuthService) Account(ctx context.Context, user *model.User) (*model.Account, error) {
	if !user.HasAccount() {
		return nil, nil
	}
	account, err := s.store.GetAccountByID(ctx, user.AccountIDValue())
	if err != nil {
		return nil, mapStoreError(err)
	}
	return account, nil
}

// Logout revokes every outstanding token of the user.
func (s *AuthService) Logout(ctx context.Context, userID string) error {
	if _, err := auth.Revoke(ctx, s.store, userID); err != nil {
		return mapStoreError(err)
	}
	s.metrics.IncRevocation()
	s.logger.Info("sessions revoked", slog.String("user_id", userID))
	return nil
}

// UpdateAccountInput is a self-service profile and password change.
// A password change requires CurrentPassword.
type UpdateAccountInput struct {
	FirstName   *string
	LastName    *string
	Phone       *string
	State       *string
	CompanyName *string

	CurrentPassword      string
	Password             string
	PasswordConfirmation *string
}

func (in UpdateAccountInput) profile() model.UserChanges {
	return model.UserChanges{
		FirstName:   trimmedPtr(in.FirstName),
		LastName:    trimmedPtr(in.LastName),
		Phone:       in.Phone,
		State:       in.State,
		CompanyName: in.CompanyName,
	}
}

func (in UpdateAccountInput) changesPassword() bool {
	return in.Password != "" || in.CurrentPassword != ""
}

// UpdateAccount applies profile changes and, when requested, a password
// change to the caller's own record. Everything is checked before the single
// store write, so a rejected request changes nothing.
//
// The token generation is left untouched: sessions issued before a password
// change stay valid until they expire or the user logs out.
func (s *AuthService) UpdateAccount(ctx context.Context, userID string, in UpdateAccountInput) (*model.User, error) {
	changes := in.profile()
	if changes.IsEmpty() && !in.changesPassword() {
		return nil, fieldError("base", "nothing to update")
	}

	v := &ValidationError{}
	validateOptionalRequired(v, "first_name", changes.FirstName)
	validateOptionalRequired(v, "last_name", changes.LastName)
	if in.changesPassword() {
		if in.CurrentPassword == "" {
			v.Add("current_password", "is required to change the password")
		}
		validatePassword(v, in.Password, in.PasswordConfirmation)
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	passwordOnly := changes.IsEmpty()
	if in.changesPassword() {
		current, err := s.store.GetUserByID(ctx, userID)
		if err != nil {
			return nil, mapStoreError(err)
		}
		if err := s.hasher.Verify(current.PasswordHash, in.CurrentPassword); err != nil {
			return nil, err
		}
		hash, err := s.hasher.Hash(in.Password)
		if err != nil {
			return nil, err
		}
		changes.PasswordHash = &hash
	}

	var user *model.User
	var err error
	if passwordOnly {
		user, err = s.store.UpdatePasswordHash(ctx, userID, *changes.PasswordHash)
	} else {
		user, err = s.store.UpdateUser(ctx, userID, changes)
	}
	if err != nil {
		return nil, mapStoreError(err)
	}
	if changes.PasswordHash != nil {
		s.logger.Info("password changed", slog.String("user_id", userID))
	}
	return user, nil
}

// UpdatePassword re-verifies current before storing next. It deliberately
// keeps the token generation, so existing sessions stay valid.
func (s *AuthService) UpdatePassword(ctx context.Context, userID, current, next string, confirmation *string) (*model.User, error) {
	return s.UpdateAccount(ctx, userID, UpdateAccountInput{
		CurrentPassword:      current,
		Password:             next,
		PasswordConfirmation: confirmation,
	})
}

// DeleteAccount removes the caller after re-verifying their password. The
// tenant goes with them when they were its last user.
func (s *AuthService) DeleteAccount(ctx context.Context, userID, currentPassword string) error {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return mapStoreError(err)
	}
	if err := s.hasher.Verify(user.PasswordHash, currentPassword); err != nil {
		return err
	}
	if err := s.store.DeleteUserAccount(ctx, userID); err != nil {
		return mapStoreError(err)
	}

	s.metrics.IncUserDeleted()
	s.logger.Info("account deleted", slog.String("user_id", userID))
	return nil
}
