package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/facturo/facturo/internal/model"
)

// generationBytes gives 128 bits of randomness per identifier.
const generationBytes = 16

// GenerationRotator atomically replaces a user's token-generation identifier
// and returns the updated row.
type GenerationRotator interface {
	RotateTokenGeneration(ctx context.Context, userID, generationID string) (*model.User, error)
}

// NewGenerationID returns a fresh random token-generation identifier.
// Identifiers are opaque and never derived from the previous value.
func NewGenerationID() (string, error) {
	b := make([]byte, generationBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token generation id: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Revoke invalidates every token issued to the user so far with one write.
// Individual sessions cannot be revoked on their own.
func Revoke(ctx context.Context, store GenerationRotator, userID string) (*model.User, error) {
	id, err := NewGenerationID()
	if err != nil {
		return nil, err
	}
	user, err := store.RotateTokenGeneration(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("rotate token generation: %w", err)
	}
	return user, nil
}

// IsRevoked reports whether the session was issued under an older generation.
func IsRevoked(session *Session, user *model.User) bool {
	return user.TokenGenerationID == "" || session.RevocationTag != user.TokenGenerationID
}
