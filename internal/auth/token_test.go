package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/facturo/facturo/internal/model"
)

const testSecret = "test-signing-secret"

func newTestTokenService(t *testing.T) *TokenService {
	t.Helper()
	s, err := NewTokenService(testSecret, time.Hour)
	require.NoError(t, err)
	return s
}

func activeUser() *model.User {
	return &model.User{ID: "01HUSER", Email: "a@acme.com", Active: true, TokenGenerationID: "gen-1"}
}

func TestNewTokenService_MissingSecret(t *testing.T) {
	_, err := NewTokenService("", time.Hour)
	require.ErrorIs(t, err, ErrMissingSecret)
}

func TestNewTokenService_DefaultLifetime(t *testing.T) {
	s, err := NewTokenService(testSecret, 0)
	require.NoError(t, err)
	require.Equal(t, DefaultTokenLifetime, s.Lifetime())
}

func TestTokenService_IssueThenValidate(t *testing.T) {
	s := newTestTokenService(t)
	user := activeUser()

	token, expiresAt, err := s.Issue(user)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	session, err := s.Validate(token)
	require.NoError(t, err)
	require.Equal(t, user.ID, session.UserID)
	require.Equal(t, ScopeUser, session.Scope)
	require.Equal(t, user.TokenGenerationID, session.RevocationTag)
	require.False(t, session.IssuedAt.IsZero())
}

func TestTokenService_IssuePreconditions(t *testing.T) {
	s := newTestTokenService(t)

	inactive := activeUser()
	inactive.Active = false
	_, _, err := s.Issue(inactive)
	require.ErrorIs(t, err, ErrInactive)

	noGen := activeUser()
	noGen.TokenGenerationID = ""
	_, _, err = s.Issue(noGen)
	require.ErrorIs(t, err, ErrNoGeneration)
}

func TestTokenService_ValidateExpired(t *testing.T) {
	s := newTestTokenService(t)
	s.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	token, _, err := s.Issue(activeUser())
	require.NoError(t, err)

	s.now = time.Now
	_, err = s.Validate(token)
	require.ErrorIs(t, err, ErrInvalidToken)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenService_ValidateRejects(t *testing.T) {
	s := newTestTokenService(t)
	good, _, err := s.Issue(activeUser())
	require.NoError(t, err)

	other, err := NewTokenService("another-secret", time.Hour)
	require.NoError(t, err)
	foreign, _, err := other.Issue(activeUser())
	require.NoError(t, err)

	parts := strings.Split(good, ".")
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "01HUSER",
			ID:        "gen-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Scope: ScopeUser,
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	wrongScope, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "01HUSER",
			ID:        "gen-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Scope: "admin",
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "01HUSER", ID: "gen-1"},
		Scope:            ScopeUser,
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "invalid.token.here"},
		{"wrong secret", foreign},
		{"tampered payload", tampered},
		{"alg none", noneToken},
		{"wrong scope", wrongScope},
		{"missing exp", noExpiry},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Validate(tt.token)
			require.ErrorIs(t, err, ErrInvalidToken)
			require.False(t, errors.Is(err, ErrTokenExpired))
		})
	}
}
