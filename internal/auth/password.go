package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

const (
	randomPasswordLength   = 12
	randomPasswordAlphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"
)

// Hasher hashes and verifies passwords using bcrypt.
// Callers must not log or persist plaintext passwords.
type Hasher struct {
	cost      int
	dummyHash []byte
}

// NewHasher returns a Hasher with the given bcrypt cost, clamped to bcrypt's range.
func NewHasher(cost int) *Hasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}

	// Compared against when the email is unknown so both failure paths cost the same.
	dummy, _ := bcrypt.GenerateFromPassword([]byte("facturo-dummy-password"), cost)

	return &Hasher{cost: cost, dummyHash: dummy}
}

// Cost returns the configured work factor.
func (h *Hasher) Cost() int {
	return h.cost
}

// Hash produces a bcrypt hash suitable for storage.
func (h *Hasher) Hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

// Verify compares password against hash. A mismatch returns
// ErrInvalidCredentials; a corrupt hash returns a wrapped error.
func (h *Hasher) Verify(hash, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err == nil {
		return nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrInvalidCredentials
	}
	return fmt.Errorf("verify password: %w", err)
}

// VerifyDummy burns the same work as Verify and always fails.
func (h *Hasher) VerifyDummy(password string) error {
	_ = bcrypt.CompareHashAndPassword(h.dummyHash, []byte(password))
	return ErrInvalidCredentials
}

// RandomPassword returns a base58 password for users created without one.
func RandomPassword() (string, error) {
	max := big.NewInt(int64(len(randomPasswordAlphabet)))
	b := make([]byte, randomPasswordLength)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate password: %w", err)
		}
		b[i] = randomPasswordAlphabet[n.Int64()]
	}
	return string(b), nil
}
