// Package main creates a root user that belongs to no tenant.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/facturo/facturo/internal/auth"
	"github.com/facturo/facturo/internal/model"
	"github.com/facturo/facturo/internal/repository"
	"github.com/facturo/facturo/internal/tenant"
)

type output struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	Password string `json:"password,omitempty"`
	Created  bool   `json:"created"`
}

func main() {
	var (
		databaseURL = flag.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
		email       = flag.String("email", "root@facturo.local", "Root user email")
		password    = flag.String("password", os.Getenv("BOOTSTRAP_PASSWORD"), "Root user password; generated when empty")
		cost        = flag.Int("bcrypt-cost", 12, "bcrypt work factor")
		format      = flag.String("format", "plain", "Output format: plain or json")
	)
	flag.Parse()

	if *databaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo, err := repository.New(ctx, *databaseURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "connect database:", err)
		os.Exit(1)
	}
	defer repo.Close()

	out, err := ensureRoot(ctx, repo, auth.NewHasher(*cost), *email, *password)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}

	switch strings.ToLower(*format) {
	case "plain":
		if !out.Created {
			fmt.Println("root user already exists:", out.UserID)
			return
		}
		fmt.Println(out.UserID)
		if out.Password != "" {
			fmt.Println(out.Password)
		}
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
	default:
		fmt.Fprintln(os.Stderr, "invalid format; use plain or json")
		os.Exit(1)
	}
}

// ensureRoot creates the root user unless the email is taken. It refuses to
// reuse an email that belongs to a tenant user. The generated password is
// only reported when this call created it.
func ensureRoot(ctx context.Context, repo *repository.Repository, hasher *auth.Hasher, email, password string) (*output, error) {
	existing, err := repo.GetUserByEmail(ctx, email)
	if err == nil {
		if existing.HasAccount() {
			return nil, fmt.Errorf("email %s already used by tenant user %s", email, existing.ID)
		}
		return &output{UserID: existing.ID, Email: existing.Email}, nil
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	generated := ""
	if password == "" {
		if password, err = auth.RandomPassword(); err != nil {
			return nil, fmt.Errorf("generate password: %w", err)
		}
		generated = password
	}

	hash, err := hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	generation, err := auth.NewGenerationID()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	user := &model.User{
		ID:                ulid.Make().String(),
		Email:             model.NormalizeEmail(email),
		PasswordHash:      hash,
		FirstName:         "Root",
		LastName:          "User",
		Admin:             true,
		Active:            true,
		TokenGenerationID: generation,
		Version:           1,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := repo.CreateScopedUser(tenant.WithoutTenant(ctx, "root bootstrap"), user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &output{UserID: user.ID, Email: user.Email, Password: generated, Created: true}, nil
}
