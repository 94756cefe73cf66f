package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/facturo/facturo/internal/auth"
	"github.com/facturo/facturo/internal/metrics"
	"github.com/facturo/facturo/internal/model"
	"github.com/facturo/facturo/internal/policy"
	"github.com/facturo/facturo/internal/repository/memstore"
	"github.com/facturo/facturo/internal/tenant"
)

type testEnv struct {
	store   *memstore.Store
	auth    *AuthService
	users   *UserService
	tokens  *auth.TokenService
	metrics *metrics.InMemoryRecorder
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := memstore.New()
	hasher := auth.NewHasher(bcrypt.MinCost)
	tokens, err := auth.NewTokenService("service-test-secret", time.Hour)
	require.NoError(t, err)

	recorder := metrics.NewInMemory()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return &testEnv{
		store:   store,
		auth:    NewAuthService(store, hasher, tokens, recorder, logger),
		users:   NewUserService(store, hasher, policy.New(), recorder, logger),
		tokens:  tokens,
		metrics: recorder,
	}
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

// register creates an account and returns its admin and a scoped context.
func (e *testEnv) register(t *testing.T, company, email string) (*model.User, context.Context) {
	t.Helper()
	admin, err := e.auth.Register(context.Background(), RegisterInput{
		Email:       email,
		Password:    "password123",
		FirstName:   "Ada",
		LastName:    "Admin",
		CompanyName: company,
	})
	require.NoError(t, err)
	return admin, tenant.WithScope(context.Background(), tenant.Resolve(admin))
}

func (e *testEnv) addMember(t *testing.T, ctx context.Context, admin *model.User, email string) *model.User {
	t.Helper()
	u, err := e.users.Create(ctx, admin, CreateUserInput{
		Email:     email,
		Password:  "password123",
		FirstName: "Mia",
		LastName:  "Member",
	})
	require.NoError(t, err)
	return u
}

func envChanges(active bool) model.UserChanges {
	return model.UserChanges{Active: &active}
}
