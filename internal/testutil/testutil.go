// Package testutil holds fixtures shared by the store, cache and handler tests.
package testutil

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"

	"github.com/facturo/facturo/internal/migrate"
	"github.com/facturo/facturo/internal/model"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

// schemaLockID serializes packages that share one test database.
const schemaLockID int64 = 0x6661637475726f // "facturo"

// NewTestDB connects to DATABASE_URL, takes the shared schema lock for the
// lifetime of the test and rebuilds the schema from the embedded migrations.
// It skips under -short or when DATABASE_URL is unset.
func NewTestDB(t testing.TB) (context.Context, *pgxpool.Pool) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}
	dsn := RequireEnv(t, "DATABASE_URL")
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(pool.Close)

	unlock, err := lockSchema(ctx, pool)
	if err != nil {
		t.Fatalf("lock schema: %v", err)
	}
	t.Cleanup(func() { _ = unlock() })

	if err := ResetSchema(dsn); err != nil {
		t.Fatalf("reset schema: %v", err)
	}
	return ctx, pool
}

// lockSchema holds a session advisory lock on a dedicated connection.
func lockSchema(ctx context.Context, pool *pgxpool.Pool) (func() error, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", schemaLockID); err != nil {
		conn.Release()
		return nil, fmt.Errorf("advisory lock: %w", err)
	}
	return func() error {
		defer conn.Release()
		_, err := conn.Exec(context.Background(), "SELECT pg_advisory_unlock($1)", schemaLockID)
		return err
	}, nil
}

// ResetSchema rolls every migration back and applies them again.
func ResetSchema(dsn string) error {
	if err := migrate.Run(dsn, migrate.Down); err != nil {
		return err
	}
	return migrate.Run(dsn, migrate.Up)
}

// FlushRedis clears the current Redis database.
func FlushRedis(ctx context.Context, client *redis.Client) error {
	return client.FlushDB(ctx).Err()
}

// NewTestAccount returns an unsaved account.
func NewTestAccount(t testing.TB, name string) *model.Account {
	t.Helper()
	now := time.Now().UTC()
	return &model.Account{
		ID:        ulid.Make().String(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewTestUser creates an active member with a placeholder hash and a
// generation id. AccountID is left for the store to fill in.
func NewTestUser(t testing.TB, email string) *model.User {
	t.Helper()
	now := time.Now().UTC()
	return &model.User{
		ID:                ulid.Make().String(),
		Email:             email,
		PasswordHash:      "not-a-real-hash",
		FirstName:         "Test",
		LastName:          "User",
		Active:            true,
		TokenGenerationID: UniqueID("gen"),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

var seq atomic.Uint64

// UniqueID returns prefix followed by a process-wide counter.
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, seq.Add(1))
}
