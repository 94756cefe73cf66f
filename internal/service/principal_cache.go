package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/facturo/facturo/internal/cache"
	"github.com/facturo/facturo/internal/metrics"
	"github.com/facturo/facturo/internal/model"
	"github.com/facturo/facturo/internal/repository"
)

// PrincipalCache is the subset of cache.Cache the store decorator needs.
type PrincipalCache interface {
	GetPrincipal(ctx context.Context, userID string) (*model.User, error)
	PutPrincipal(ctx context.Context, u *model.User) (bool, error)
	TombstonePrincipal(ctx context.Context, userID string) error
	InvalidatePrincipal(ctx context.Context, userID string, version int64) error
	DeletePrincipal(ctx context.Context, userID string) error
}

var _ PrincipalCache = (*cache.Cache)(nil)

// ErrStalePrincipal means a committed write could not be reflected in the
// principal cache, so the previous row may still authenticate.
var ErrStalePrincipal = errors.New("principal cache not invalidated")

// cachedStore serves GetUserByID from the principal cache and writes every
// mutated row through. Writes are version-guarded in the cache, so a rotate
// racing a read-through fill always leaves the newer row cached. Writes that
// revoke access fail with ErrStalePrincipal when the cache cannot be updated.
type cachedStore struct {
	Store
	cache   PrincipalCache
	metrics metrics.Recorder
	logger  *slog.Logger
}

// NewCachedStore wraps store with a principal cache. A nil cache returns
// store unchanged.
func NewCachedStore(store Store, c PrincipalCache, recorder metrics.Recorder, logger *slog.Logger) Store {
	if c == nil {
		return store
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &cachedStore{Store: store, cache: c, metrics: recorder, logger: logger}
}

func (s *cachedStore) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	cached, err := s.cache.GetPrincipal(ctx, id)
	switch {
	case errors.Is(err, cache.ErrTombstoned):
		s.metrics.IncPrincipalCacheHit()
		return nil, repository.ErrUserNotFound
	case err != nil:
		s.logger.Warn("principal cache read failed", slog.String("user_id", id), slog.String("error", err.Error()))
	case cached != nil:
		s.metrics.IncPrincipalCacheHit()
		return cached, nil
	}

	s.metrics.IncPrincipalCacheMiss()
	user, err := s.Store.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.put(ctx, user)
	return user, nil
}

// put writes u through after a write that does not revoke anything. On
// failure the entry is invalidated on a best-effort basis.
func (s *cachedStore) put(ctx context.Context, u *model.User) {
	if err := s.seal(ctx, u); err != nil {
		s.logger.Warn("principal cache left stale", slog.String("user_id", u.ID), slog.String("error", err.Error()))
	}
}

// seal makes the cache agree with u, which was just committed. The row is
// written at its version; failing that, an invalidation marker at the same
// version is written so a read-through fill of an older row cannot land.
// An error means a superseded row may still be served until its TTL.
func (s *cachedStore) seal(ctx context.Context, u *model.User) error {
	_, err := s.cache.PutPrincipal(ctx, u)
	if err == nil {
		return nil
	}
	s.logger.Warn("principal cache write failed", slog.String("user_id", u.ID), slog.String("error", err.Error()))

	markErr := s.cache.InvalidatePrincipal(ctx, u.ID, u.Version)
	if markErr == nil {
		return nil
	}
	if delErr := s.cache.DeletePrincipal(ctx, u.ID); delErr != nil {
		return fmt.Errorf("%w: %w", ErrStalePrincipal, errors.Join(err, markErr, delErr))
	}
	// The entry is gone, but nothing stops an older in-flight fill.
	return fmt.Errorf("%w: %w", ErrStalePrincipal, errors.Join(err, markErr))
}

func (s *cachedStore) tombstone(ctx context.Context, id string) error {
	err := s.cache.TombstonePrincipal(ctx, id)
	if err == nil {
		return nil
	}
	s.logger.Warn("principal cache tombstone failed", slog.String("user_id", id), slog.String("error", err.Error()))
	if delErr := s.cache.DeletePrincipal(ctx, id); delErr != nil {
		err = errors.Join(err, delErr)
	}
	return fmt.Errorf("%w: %w", ErrStalePrincipal, err)
}

func (s *cachedStore) written(ctx context.Context, u *model.User, err error) (*model.User, error) {
	if err != nil {
		return nil, err
	}
	s.put(ctx, u)
	return u, nil
}

// revoked is written for rows whose new state must be seen by the very next
// authentication: a rotated generation, or a changed active or admin flag.
func (s *cachedStore) revoked(ctx context.Context, u *model.User, err error) (*model.User, error) {
	if err != nil {
		return nil, err
	}
	if err := s.seal(ctx, u); err != nil {
		s.logger.Error("principal cache not invalidated", slog.String("user_id", u.ID), slog.String("error", err.Error()))
		return nil, err
	}
	return u, nil
}

func revokes(changes model.UserChanges) bool {
	return changes.Active != nil || changes.Admin != nil
}

func (s *cachedStore) EnsureTokenGeneration(ctx context.Context, userID, candidate string) (*model.User, error) {
	u, err := s.Store.EnsureTokenGeneration(ctx, userID, candidate)
	return s.written(ctx, u, err)
}

func (s *cachedStore) RotateTokenGeneration(ctx context.Context, userID, generationID string) (*model.User, error) {
	u, err := s.Store.RotateTokenGeneration(ctx, userID, generationID)
	return s.revoked(ctx, u, err)
}

func (s *cachedStore) UpdatePasswordHash(ctx context.Context, userID, hash string) (*model.User, error) {
	u, err := s.Store.UpdatePasswordHash(ctx, userID, hash)
	return s.written(ctx, u, err)
}

func (s *cachedStore) UpdateUser(ctx context.Context, userID string, changes model.UserChanges) (*model.User, error) {
	u, err := s.Store.UpdateUser(ctx, userID, changes)
	if revokes(changes) {
		return s.revoked(ctx, u, err)
	}
	return s.written(ctx, u, err)
}

func (s *cachedStore) UpdateScopedUser(ctx context.Context, id string, changes model.UserChanges) (*model.User, error) {
	u, err := s.Store.UpdateScopedUser(ctx, id, changes)
	if revokes(changes) {
		return s.revoked(ctx, u, err)
	}
	return s.written(ctx, u, err)
}

func (s *cachedStore) DeleteUserAccount(ctx context.Context, userID string) error {
	if err := s.Store.DeleteUserAccount(ctx, userID); err != nil {
		return err
	}
	return s.tombstone(ctx, userID)
}

func (s *cachedStore) DeleteScopedUser(ctx context.Context, id string) error {
	if err := s.Store.DeleteScopedUser(ctx, id); err != nil {
		return err
	}
	return s.tombstone(ctx, id)
}
