package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/facturo/facturo/internal/model"
)

type fakeRotator struct {
	users map[string]*model.User
	err   error
}

func (f *fakeRotator) RotateTokenGeneration(_ context.Context, userID, generationID string) (*model.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.users[userID]
	if !ok {
		return nil, errors.New("not found")
	}
	u.TokenGenerationID = generationID
	return u.Clone(), nil
}

func TestNewGenerationID_RandomAndOpaque(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id, err := NewGenerationID()
		require.NoError(t, err)
		require.Len(t, id, 32)
		require.False(t, seen[id], "duplicate generation id")
		seen[id] = true
	}
}

func TestRevoke_InvalidatesEarlierTokens(t *testing.T) {
	s := newTestTokenService(t)
	u := activeUser()
	other := &model.User{ID: "01HOTHER", Active: true, TokenGenerationID: "gen-other"}
	store := &fakeRotator{users: map[string]*model.User{u.ID: u, other.ID: other}}

	first, _, err := s.Issue(u)
	require.NoError(t, err)
	second, _, err := s.Issue(u)
	require.NoError(t, err)
	otherToken, _, err := s.Issue(other)
	require.NoError(t, err)

	updated, err := Revoke(context.Background(), store, u.ID)
	require.NoError(t, err)
	require.NotEqual(t, "gen-1", updated.TokenGenerationID)

	for _, tok := range []string{first, second} {
		session, err := s.Validate(tok)
		require.NoError(t, err, "signature stays valid after revoke")
		require.True(t, IsRevoked(session, updated))
	}

	session, err := s.Validate(otherToken)
	require.NoError(t, err)
	require.False(t, IsRevoked(session, other), "other users are unaffected")

	fresh, _, err := s.Issue(updated)
	require.NoError(t, err)
	session, err = s.Validate(fresh)
	require.NoError(t, err)
	require.False(t, IsRevoked(session, updated))
}

func TestRevoke_StoreError(t *testing.T) {
	store := &fakeRotator{err: errors.New("db down")}
	_, err := Revoke(context.Background(), store, "u1")
	require.Error(t, err)
}

func TestIsRevoked_EmptyStoredGeneration(t *testing.T) {
	session := &Session{UserID: "u1", RevocationTag: ""}
	require.True(t, IsRevoked(session, &model.User{ID: "u1"}))
}
