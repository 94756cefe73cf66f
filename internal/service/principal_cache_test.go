package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/facturo/facturo/internal/auth"
	"github.com/facturo/facturo/internal/cache"
	"github.com/facturo/facturo/internal/metrics"
	"github.com/facturo/facturo/internal/model"
	"github.com/facturo/facturo/internal/repository"
	"github.com/facturo/facturo/internal/repository/memstore"
	"github.com/facturo/facturo/internal/tenant"
	"github.com/facturo/facturo/internal/testutil"
)

// fakePrincipalCache mirrors the version guard of the Redis script.
type fakePrincipalCache struct {
	mu          sync.Mutex
	entries     map[string]*model.User
	markers     map[string]int64
	tombstoned  map[string]bool
	failPuts    bool
	failMarks   bool
	failDeletes bool
	failReads   bool
}

func newFakePrincipalCache() *fakePrincipalCache {
	return &fakePrincipalCache{
		entries:    map[string]*model.User{},
		markers:    map[string]int64{},
		tombstoned: map[string]bool{},
	}
}

var errRedisDown = errors.New("redis down")

// failAllWrites makes every cache mutation fail.
func (f *fakePrincipalCache) failAllWrites(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failPuts, f.failMarks, f.failDeletes = fail, fail, fail
}

func (f *fakePrincipalCache) GetPrincipal(_ context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failReads {
		return nil, errRedisDown
	}
	if f.tombstoned[id] {
		return nil, cache.ErrTombstoned
	}
	if u, ok := f.entries[id]; ok {
		return u.Clone(), nil
	}
	return nil, nil
}

func (f *fakePrincipalCache) PutPrincipal(_ context.Context, u *model.User) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPuts {
		return false, errRedisDown
	}
	if f.tombstoned[u.ID] {
		return false, nil
	}
	if cur, ok := f.entries[u.ID]; ok && cur.Version >= u.Version {
		return false, nil
	}
	if v, ok := f.markers[u.ID]; ok && v > u.Version {
		return false, nil
	}
	delete(f.markers, u.ID)
	f.entries[u.ID] = u.Clone()
	return true, nil
}

func (f *fakePrincipalCache) InvalidatePrincipal(_ context.Context, id string, version int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failMarks {
		return errRedisDown
	}
	if f.tombstoned[id] {
		return nil
	}
	if cur, ok := f.entries[id]; ok && cur.Version >= version {
		return nil
	}
	if v, ok := f.markers[id]; ok && v >= version {
		return nil
	}
	delete(f.entries, id)
	f.markers[id] = version
	return nil
}

func (f *fakePrincipalCache) TombstonePrincipal(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failMarks {
		return errRedisDown
	}
	f.tombstoned[id] = true
	delete(f.entries, id)
	delete(f.markers, id)
	return nil
}

func (f *fakePrincipalCache) DeletePrincipal(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDeletes {
		return errRedisDown
	}
	delete(f.entries, id)
	delete(f.markers, id)
	return nil
}

func seedCachedStore(t *testing.T) (Store, *fakePrincipalCache, *metrics.InMemoryRecorder, *model.User) {
	t.Helper()
	base := memstore.New()
	account := testutil.NewTestAccount(t, "Acme")
	u := testutil.NewTestUser(t, "a@acme.com")
	require.NoError(t, base.CreateAccountWithAdmin(tenant.WithoutTenant(context.Background(), "registration"), account, u))

	fc := newFakePrincipalCache()
	recorder := metrics.NewInMemory()
	return NewCachedStore(base, fc, recorder, nil), fc, recorder, u
}

func TestCachedStore_NilCacheIsPassthrough(t *testing.T) {
	base := memstore.New()
	require.Same(t, Store(base), NewCachedStore(base, nil, nil, nil))
}

func TestCachedStore_ReadThroughThenHit(t *testing.T) {
	s, _, recorder, u := seedCachedStore(t)

	_, err := s.GetUserByID(context.Background(), u.ID)
	require.NoError(t, err)
	_, err = s.GetUserByID(context.Background(), u.ID)
	require.NoError(t, err)

	snap := recorder.Snapshot()
	require.Equal(t, uint64(1), snap.PrincipalCacheMisses)
	require.Equal(t, uint64(1), snap.PrincipalCacheHits)
}

func TestCachedStore_RotationVisibleImmediately(t *testing.T) {
	s, _, _, u := seedCachedStore(t)

	_, err := s.GetUserByID(context.Background(), u.ID)
	require.NoError(t, err)

	rotated, err := s.RotateTokenGeneration(context.Background(), u.ID, "gen-rotated")
	require.NoError(t, err)

	got, err := s.GetUserByID(context.Background(), u.ID)
	require.NoError(t, err)
	require.Equal(t, "gen-rotated", got.TokenGenerationID)
	require.Equal(t, rotated.Version, got.Version)
}

func TestCachedStore_StaleFillDoesNotRegress(t *testing.T) {
	s, fc, _, u := seedCachedStore(t)
	stale := u.Clone()

	_, err := s.RotateTokenGeneration(context.Background(), u.ID, "gen-rotated")
	require.NoError(t, err)

	// A read that started before the rotation lands afterwards.
	applied, err := fc.PutPrincipal(context.Background(), stale)
	require.NoError(t, err)
	require.False(t, applied)

	got, err := s.GetUserByID(context.Background(), u.ID)
	require.NoError(t, err)
	require.Equal(t, "gen-rotated", got.TokenGenerationID)
}

func TestCachedStore_FailedWriteLeavesMarker(t *testing.T) {
	s, fc, _, u := seedCachedStore(t)
	stale := u.Clone()

	_, err := s.GetUserByID(context.Background(), u.ID)
	require.NoError(t, err)

	fc.failPuts = true
	_, err = s.RotateTokenGeneration(context.Background(), u.ID, "gen-rotated")
	require.NoError(t, err)
	fc.failPuts = false

	// A fill that read the row before the rotation must not land.
	applied, err := fc.PutPrincipal(context.Background(), stale)
	require.NoError(t, err)
	require.False(t, applied)

	got, err := s.GetUserByID(context.Background(), u.ID)
	require.NoError(t, err)
	require.Equal(t, "gen-rotated", got.TokenGenerationID)
}

func TestCachedStore_RotationFailsWhenCacheUnwritable(t *testing.T) {
	s, fc, _, u := seedCachedStore(t)

	_, err := s.GetUserByID(context.Background(), u.ID)
	require.NoError(t, err)

	fc.failAllWrites(true)
	_, err = s.RotateTokenGeneration(context.Background(), u.ID, "gen-rotated")
	require.ErrorIs(t, err, ErrStalePrincipal)
}

func TestCachedStore_DeactivationMustReachCache(t *testing.T) {
	s, fc, _, u := seedCachedStore(t)
	ctx := tenant.WithScope(context.Background(), tenant.Resolve(u))

	_, err := s.GetUserByID(context.Background(), u.ID)
	require.NoError(t, err)

	fc.failAllWrites(true)
	_, err = s.UpdateScopedUser(ctx, u.ID, envChanges(false))
	require.ErrorIs(t, err, ErrStalePrincipal)

	fc.failAllWrites(false)
	fc.failPuts = true
	_, err = s.UpdateScopedUser(ctx, u.ID, envChanges(false))
	require.NoError(t, err)

	got, err := s.GetUserByID(context.Background(), u.ID)
	require.NoError(t, err)
	require.False(t, got.Active)
}

func TestCachedStore_ProfileWriteToleratesCacheFailure(t *testing.T) {
	s, fc, _, u := seedCachedStore(t)
	fc.failAllWrites(true)

	updated, err := s.UpdateUser(context.Background(), u.ID, model.UserChanges{Phone: strPtr("555-0100")})
	require.NoError(t, err)
	require.Equal(t, "555-0100", updated.Phone)
}

func TestCachedStore_DeleteFailsWhenCacheUnwritable(t *testing.T) {
	s, fc, _, u := seedCachedStore(t)
	fc.failAllWrites(true)

	require.ErrorIs(t, s.DeleteUserAccount(context.Background(), u.ID), ErrStalePrincipal)
}

func TestLogout_CacheWriteFailures(t *testing.T) {
	newAuth := func(t *testing.T) (*AuthService, *fakePrincipalCache, string) {
		t.Helper()
		env := newTestEnv(t)
		fc := newFakePrincipalCache()
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		svc := NewAuthService(NewCachedStore(env.store, fc, env.metrics, logger),
			auth.NewHasher(bcrypt.MinCost), env.tokens, env.metrics, logger)

		_, err := svc.Register(context.Background(), RegisterInput{
			Email: "a@acme.com", Password: "password123", FirstName: "Ada", LastName: "Admin",
		})
		require.NoError(t, err)
		res, err := svc.Login(context.Background(), "a@acme.com", "password123")
		require.NoError(t, err)
		_, err = svc.Authenticate(context.Background(), res.Token)
		require.NoError(t, err)
		return svc, fc, res.Token
	}

	t.Run("marker written", func(t *testing.T) {
		svc, fc, token := newAuth(t)
		user, err := svc.Authenticate(context.Background(), token)
		require.NoError(t, err)

		fc.failPuts = true
		fc.failDeletes = true
		require.NoError(t, svc.Logout(context.Background(), user.ID))

		_, err = svc.Authenticate(context.Background(), token)
		require.ErrorIs(t, err, auth.ErrRevoked)
	})

	t.Run("cache unwritable", func(t *testing.T) {
		svc, fc, token := newAuth(t)
		user, err := svc.Authenticate(context.Background(), token)
		require.NoError(t, err)

		fc.failAllWrites(true)
		err = svc.Logout(context.Background(), user.ID)
		require.ErrorIs(t, err, ErrStalePrincipal, "logout must not report success while the old row is cached")
	})
}

func TestCachedStore_ReadErrorFallsBack(t *testing.T) {
	s, fc, _, u := seedCachedStore(t)
	fc.failReads = true

	got, err := s.GetUserByID(context.Background(), u.ID)
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)
}

func TestCachedStore_DeleteTombstones(t *testing.T) {
	s, _, _, u := seedCachedStore(t)

	_, err := s.GetUserByID(context.Background(), u.ID)
	require.NoError(t, err)
	require.NoError(t, s.DeleteUserAccount(context.Background(), u.ID))

	_, err = s.GetUserByID(context.Background(), u.ID)
	require.ErrorIs(t, err, repository.ErrUserNotFound)
}
