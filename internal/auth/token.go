package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/facturo/facturo/internal/model"
)

// ScopeUser is the only scope marker issued today.
const ScopeUser = "user"

// DefaultTokenLifetime applies when the configured lifetime is zero.
const DefaultTokenLifetime = 2 * time.Hour

// Claims is the canonical claim set: sub, scp, iat, exp and jti, where jti
// carries the user's token-generation identifier at issuance.
type Claims struct {
	jwt.RegisteredClaims
	Scope string `json:"scp"`
}

// Session is a decoded, signature-checked and unexpired token.
type Session struct {
	UserID        string
	Scope         string
	RevocationTag string
	IssuedAt      time.Time
	ExpiresAt     time.Time
}

// TokenService issues and validates HS256 bearer tokens. It holds no
// mutable state and is safe for concurrent use.
type TokenService struct {
	secret   []byte
	lifetime time.Duration
	now      func() time.Time
}

// NewTokenService returns a TokenService signing with secret.
// An empty secret is a configuration error.
func NewTokenService(secret string, lifetime time.Duration) (*TokenService, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	if lifetime <= 0 {
		lifetime = DefaultTokenLifetime
	}
	return &TokenService{
		secret:   []byte(secret),
		lifetime: lifetime,
		now:      time.Now,
	}, nil
}

// Lifetime returns how long issued tokens stay valid.
func (s *TokenService) Lifetime() time.Duration {
	return s.lifetime
}

// Issue signs a token for an active user whose credentials were just verified.
func (s *TokenService) Issue(user *model.User) (string, time.Time, error) {
	if !user.Active {
		return "", time.Time{}, ErrInactive
	}
	if user.TokenGenerationID == "" {
		return "", time.Time{}, ErrNoGeneration
	}

	now := s.now().UTC()
	expiresAt := now.Add(s.lifetime)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ID:        user.TokenGenerationID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Scope: ScopeUser,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return token, expiresAt, nil
}

// Validate checks signature, algorithm, scope and expiry. It does not check
// revocation; callers compare Session.RevocationTag with the stored user.
func (s *TokenService) Validate(tokenString string) (*Session, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(token *jwt.Token) (any, error) {
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidToken, ErrTokenExpired)
		}
		return nil, ErrInvalidToken
	}

	if claims.Subject == "" || claims.ID == "" || claims.Scope != ScopeUser {
		return nil, ErrInvalidToken
	}

	session := &Session{
		UserID:        claims.Subject,
		Scope:         claims.Scope,
		RevocationTag: claims.ID,
		ExpiresAt:     claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		session.IssuedAt = claims.IssuedAt.Time
	}
	return session, nil
}
