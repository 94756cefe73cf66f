// Package memstore is an in-memory implementation of the user store with
// the same tenant scoping and error contract as the Postgres repository.
// It backs unit tests and local runs without a database.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/facturo/facturo/internal/model"
	"github.com/facturo/facturo/internal/repository"
	"github.com/facturo/facturo/internal/tenant"
)

// Store holds accounts and users. Every method returns copies, so callers
// can never mutate stored rows.
type Store struct {
	lock     sync.RWMutex
	accounts map[string]*model.Account
	users    map[string]*model.User
	emailIDs map[string]string // normalized email to user id
	now      func() time.Time
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		accounts: make(map[string]*model.Account),
		users:    make(map[string]*model.User),
		emailIDs: make(map[string]string),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error {
	return nil
}

// CreateAccountWithAdmin inserts the account and its first admin atomically.
// It only runs inside tenant.WithoutTenant.
func (s *Store) CreateAccountWithAdmin(ctx context.Context, account *model.Account, admin *model.User) error {
	if _, unscoped, err := tenant.AccountFilter(ctx); err != nil || !unscoped {
		return fmt.Errorf("create account outside bootstrap: %w", tenant.ErrNoTenant)
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	if _, ok := s.emailIDs[model.NormalizeEmail(admin.Email)]; ok {
		return repository.ErrEmailExists
	}

	a := *account
	s.accounts[a.ID] = &a
	admin.AccountID = &a.ID
	s.insertLocked(admin)
	return nil
}

// GetAccountByID retrieves an account.
func (s *Store) GetAccountByID(_ context.Context, id string) (*model.Account, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	a, ok := s.accounts[id]
	if !ok {
		return nil, repository.ErrAccountNotFound
	}
	c := *a
	return &c, nil
}

func (s *Store) insertLocked(u *model.User) {
	u.Email = model.NormalizeEmail(u.Email)
	if u.Version == 0 {
		u.Version = 1
	}
	s.users[u.ID] = u.Clone()
	s.emailIDs[u.Email] = u.ID
}

// GetUserByID retrieves a user without tenant filtering.
func (s *Store) GetUserByID(_ context.Context, id string) (*model.User, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return u.Clone(), nil
}

// GetUserByEmail retrieves a user by case-insensitive email.
func (s *Store) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	id, ok := s.emailIDs[model.NormalizeEmail(email)]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return s.users[id].Clone(), nil
}

// mutate applies fn to the stored user under the write lock and bumps its
// version when fn reports a change.
func (s *Store) mutate(id string, visible func(*model.User) bool, fn func(*model.User) (bool, error)) (*model.User, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	u, ok := s.users[id]
	if !ok || (visible != nil && !visible(u)) {
		return nil, repository.ErrUserNotFound
	}

	next := u.Clone()
	changed, err := fn(next)
	if err != nil {
		return nil, err
	}
	if changed {
		next.Version++
		next.UpdatedAt = s.now()
	}

	if next.Email != u.Email {
		if owner, taken := s.emailIDs[next.Email]; taken && owner != id {
			return nil, repository.ErrEmailExists
		}
		delete(s.emailIDs, u.Email)
		s.emailIDs[next.Email] = id
	}

	s.users[id] = next
	return next.Clone(), nil
}

// EnsureTokenGeneration assigns candidate only when no id is set.
func (s *Store) EnsureTokenGeneration(_ context.Context, userID, candidate string) (*model.User, error) {
	return s.mutate(userID, nil, func(u *model.User) (bool, error) {
		if u.TokenGenerationID != "" {
			return false, nil
		}
		u.TokenGenerationID = candidate
		return true, nil
	})
}

// RotateTokenGeneration replaces the generation id.
func (s *Store) RotateTokenGeneration(_ context.Context, userID, generationID string) (*model.User, error) {
	return s.mutate(userID, nil, func(u *model.User) (bool, error) {
		u.TokenGenerationID = generationID
		return true, nil
	})
}

// UpdatePasswordHash stores a new hash and leaves the generation id alone.
func (s *Store) UpdatePasswordHash(_ context.Context, userID, hash string) (*model.User, error) {
	return s.mutate(userID, nil, func(u *model.User) (bool, error) {
		u.PasswordHash = hash
		return true, nil
	})
}

// UpdateUser applies changes to the user's own record.
func (s *Store) UpdateUser(_ context.Context, userID string, changes model.UserChanges) (*model.User, error) {
	return s.mutate(userID, nil, func(u *model.User) (bool, error) {
		changes.Apply(u)
		return true, nil
	})
}

// DeleteUserAccount removes the user and its account when it was the last member.
func (s *Store) DeleteUserAccount(_ context.Context, userID string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return repository.ErrUserNotFound
	}
	s.deleteLocked(u)

	if u.HasAccount() && s.countLocked(*u.AccountID) == 0 {
		delete(s.accounts, *u.AccountID)
	}
	return nil
}

func (s *Store) deleteLocked(u *model.User) {
	delete(s.users, u.ID)
	delete(s.emailIDs, u.Email)
}

func (s *Store) countLocked(accountID string) int {
	n := 0
	for _, u := range s.users {
		if u.AccountIDValue() == accountID {
			n++
		}
	}
	return n
}

// scope returns the visibility predicate for the context's tenant.
func scope(ctx context.Context) (func(*model.User) bool, error) {
	accountID, unscoped, err := tenant.AccountFilter(ctx)
	if err != nil {
		return nil, err
	}
	if unscoped {
		return func(*model.User) bool { return true }, nil
	}
	return func(u *model.User) bool { return u.AccountIDValue() == accountID }, nil
}

// ListUsers returns users of the bound tenant, oldest first.
func (s *Store) ListUsers(ctx context.Context) ([]*model.User, error) {
	visible, err := scope(ctx)
	if err != nil {
		return nil, err
	}

	s.lock.RLock()
	defer s.lock.RUnlock()

	users := make([]*model.User, 0)
	for _, u := range s.users {
		if visible(u) {
			users = append(users, u.Clone())
		}
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].ID < users[j].ID
		}
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users, nil
}

// GetScopedUser retrieves a user of the bound tenant.
func (s *Store) GetScopedUser(ctx context.Context, id string) (*model.User, error) {
	visible, err := scope(ctx)
	if err != nil {
		return nil, err
	}

	s.lock.RLock()
	defer s.lock.RUnlock()

	u, ok := s.users[id]
	if !ok || !visible(u) {
		return nil, repository.ErrUserNotFound
	}
	return u.Clone(), nil
}

// CreateScopedUser inserts a user into the bound tenant.
func (s *Store) CreateScopedUser(ctx context.Context, u *model.User) error {
	accountID, unscoped, err := tenant.AccountFilter(ctx)
	if err != nil {
		return err
	}
	if !unscoped {
		u.AccountID = &accountID
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	if _, ok := s.emailIDs[model.NormalizeEmail(u.Email)]; ok {
		return repository.ErrEmailExists
	}
	if _, ok := s.users[u.ID]; ok {
		return fmt.Errorf("failed to create user: duplicate id %s", u.ID)
	}
	s.insertLocked(u)
	return nil
}

// UpdateScopedUser applies changes to a user of the bound tenant.
func (s *Store) UpdateScopedUser(ctx context.Context, id string, changes model.UserChanges) (*model.User, error) {
	visible, err := scope(ctx)
	if err != nil {
		return nil, err
	}
	return s.mutate(id, visible, func(u *model.User) (bool, error) {
		changes.Apply(u)
		return true, nil
	})
}

// DeleteScopedUser deletes a user of the bound tenant.
func (s *Store) DeleteScopedUser(ctx context.Context, id string) error {
	visible, err := scope(ctx)
	if err != nil {
		return err
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	u, ok := s.users[id]
	if !ok || !visible(u) {
		return repository.ErrUserNotFound
	}
	s.deleteLocked(u)
	return nil
}
