package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/facturo/facturo/internal/auth"
	"github.com/facturo/facturo/internal/metrics"
	"github.com/facturo/facturo/internal/model"
	"github.com/facturo/facturo/internal/policy"
)

// UserService manages users inside the caller's tenant. Every method takes
// the authenticated actor and a context carrying the actor's tenant scope.
type UserService struct {
	store    Store
	hasher   *auth.Hasher
	policies *policy.Registry
	metrics  metrics.Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// NewUserService creates a new UserService.
func NewUserService(store Store, hasher *auth.Hasher, policies *policy.Registry, recorder metrics.Recorder, logger *slog.Logger) *UserService {
	if policies == nil {
		policies = policy.New()
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &UserService{
		store:    store,
		hasher:   hasher,
		policies: policies,
		metrics:  recorder,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// List returns the users of the actor's tenant.
func (s *UserService) List(ctx context.Context, actor *model.User) ([]*model.User, error) {
	if err := s.policies.Authorize(actor, policy.ActionIndex, policy.Collection(policy.ResourceUser)); err != nil {
		return nil, err
	}
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return users, nil
}

// load resolves a target user. The actor's own record is always reachable;
// anyone else is looked up within the tenant, so an id from another tenant
// reads as ErrNotFound before the policy runs.
func (s *UserService) load(ctx context.Context, actor *model.User, id string) (*model.User, error) {
	var (
		user *model.User
		err  error
	)
	if id == actor.ID {
		user, err = s.store.GetUserByID(ctx, id)
	} else {
		user, err = s.store.GetScopedUser(ctx, id)
	}
	if err != nil {
		return nil, mapStoreError(err)
	}
	return user, nil
}

// Get returns a single user.
func (s *UserService) Get(ctx context.Context, actor *model.User, id string) (*model.User, error) {
	user, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := s.policies.Authorize(actor, policy.ActionShow, policy.User(user)); err != nil {
		return nil, err
	}
	return user, nil
}

// CreateUserInput defines input for adding a user to the tenant.
type CreateUserInput struct {
	Email                string
	Password             string
	PasswordConfirmation *string
	FirstName            string
	LastName             string
	Phone                string
	State                string
	CompanyName          string
	Admin                bool
	Active               *bool
}

// Create adds a user to the actor's tenant. A random password is assigned
// when none is given.
func (s *UserService) Create(ctx context.Context, actor *model.User, in CreateUserInput) (*model.User, error) {
	if err := s.policies.Authorize(actor, policy.ActionCreate, policy.Collection(policy.ResourceUser)); err != nil {
		return nil, err
	}

	password := in.Password
	confirmation := in.PasswordConfirmation
	if password == "" {
		generated, err := auth.RandomPassword()
		if err != nil {
			return nil, err
		}
		password, confirmation = generated, nil
	}

	v := &ValidationError{}
	validateEmail(v, in.Email)
	validatePassword(v, password, confirmation)
	validateRequired(v, "first_name", in.FirstName)
	validateRequired(v, "last_name", in.LastName)
	if err := v.Err(); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}
	generation, err := auth.NewGenerationID()
	if err != nil {
		return nil, err
	}

	active := true
	if in.Active != nil {
		active = *in.Active
	}

	now := s.now()
	user := &model.User{
		ID:                ulid.Make().String(),
		Email:             model.NormalizeEmail(in.Email),
		PasswordHash:      hash,
		FirstName:         strings.TrimSpace(in.FirstName),
		LastName:          strings.TrimSpace(in.LastName),
		Phone:             in.Phone,
		State:             in.State,
		CompanyName:       in.CompanyName,
		Admin:             in.Admin,
		Active:            active,
		TokenGenerationID: generation,
		Version:           1,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.store.CreateScopedUser(ctx, user); err != nil {
		return nil, mapStoreError(err)
	}

	s.metrics.IncUserCreated()
	s.logger.Info("user created",
		slog.String("user_id", user.ID),
		slog.String("account_id", user.AccountIDValue()),
		slog.String("actor_id", actor.ID),
	)
	return user, nil
}

// UpdateUserInput is a partial update. Nil fields are left untouched.
// The account a user belongs to can never be changed.
type UpdateUserInput struct {
	Email                *string
	FirstName            *string
	LastName             *string
	Phone                *string
	State                *string
	CompanyName          *string
	Admin                *bool
	Active               *bool
	Password             *string
	PasswordConfirmation *string
}

func (in UpdateUserInput) changes() model.UserChanges {
	return model.UserChanges{
		Email:        in.Email,
		FirstName:    trimmedPtr(in.FirstName),
		LastName:     trimmedPtr(in.LastName),
		Phone:        in.Phone,
		State:        in.State,
		CompanyName:  in.CompanyName,
		Admin:        in.Admin,
		Active:       in.Active,
		PasswordHash: in.Password,
	}
}

// Update changes a user. Fields the actor may not touch are dropped
// silently, so a self-demotion succeeds with the flag unchanged.
func (s *UserService) Update(ctx context.Context, actor *model.User, id string, in UpdateUserInput) (*model.User, error) {
	target, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := s.policies.Authorize(actor, policy.ActionUpdate, policy.User(target)); err != nil {
		return nil, err
	}

	changes := policy.PermittedChanges(actor, target, in.changes())

	v := &ValidationError{}
	if changes.Email != nil {
		validateEmail(v, *changes.Email)
	}
	validateOptionalRequired(v, "first_name", changes.FirstName)
	validateOptionalRequired(v, "last_name", changes.LastName)
	if changes.PasswordHash != nil {
		validatePassword(v, *changes.PasswordHash, in.PasswordConfirmation)
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	if changes.IsEmpty() {
		return target, nil
	}

	if changes.PasswordHash != nil {
		hash, err := s.hasher.Hash(*changes.PasswordHash)
		if err != nil {
			return nil, err
		}
		changes.PasswordHash = &hash
	}

	var updated *model.User
	if target.ID == actor.ID {
		updated, err = s.store.UpdateUser(ctx, target.ID, changes)
	} else {
		updated, err = s.store.UpdateScopedUser(ctx, target.ID, changes)
	}
	if err != nil {
		return nil, mapStoreError(err)
	}

	s.metrics.IncUserUpdated()
	s.logger.Info("user updated",
		slog.String("user_id", updated.ID),
		slog.String("actor_id", actor.ID),
	)
	return updated, nil
}

// Delete removes a user of the tenant. An admin can never delete themselves
// here; self-deletion goes through AuthService.DeleteAccount.
func (s *UserService) Delete(ctx context.Context, actor *model.User, id string) error {
	target, err := s.load(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.policies.Authorize(actor, policy.ActionDestroy, policy.User(target)); err != nil {
		return err
	}
	if err := s.store.DeleteScopedUser(ctx, target.ID); err != nil {
		return mapStoreError(err)
	}

	s.metrics.IncUserDeleted()
	s.logger.Info("user deleted",
		slog.String("user_id", target.ID),
		slog.String("actor_id", actor.ID),
	)
	return nil
}
