package metrics

import (
	"sync"
	"testing"
	"time"
)

func TestInMemoryRecorder_Counts(t *testing.T) {
	t.Parallel()

	m := NewInMemory()
	m.IncLogin(LoginSuccess)
	m.IncLogin(LoginSuccess)
	m.IncLogin(LoginInvalidCredentials)
	m.IncTokenRejected(RejectRevoked)
	m.IncRevocation()
	m.ObserveAuthenticateDuration(2 * time.Millisecond)

	s := m.Snapshot()
	if s.Logins[LoginSuccess] != 2 || s.Logins[LoginInvalidCredentials] != 1 {
		t.Errorf("logins = %v", s.Logins)
	}
	if s.TokensRejected[RejectRevoked] != 1 {
		t.Errorf("rejected = %v", s.TokensRejected)
	}
	if s.Revocations != 1 || s.AuthenticateCount != 1 {
		t.Errorf("snapshot = %+v", s)
	}
	if s.AuthenticateDurationTotal != (2 * time.Millisecond).Nanoseconds() {
		t.Errorf("duration total = %d", s.AuthenticateDurationTotal)
	}
}

func TestInMemoryRecorder_SnapshotIsCopy(t *testing.T) {
	t.Parallel()

	m := NewInMemory()
	m.IncLogin(LoginSuccess)
	s := m.Snapshot()
	s.Logins[LoginSuccess] = 100

	if got := m.Snapshot().Logins[LoginSuccess]; got != 1 {
		t.Errorf("snapshot mutation leaked: %d", got)
	}
}

func TestInMemoryRecorder_Concurrent(t *testing.T) {
	t.Parallel()

	m := NewInMemory()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.IncLogin(LoginSuccess)
			m.IncTokenRejected(RejectExpired)
			m.IncPrincipalCacheHit()
		}()
	}
	wg.Wait()

	s := m.Snapshot()
	if s.Logins[LoginSuccess] != 50 || s.TokensRejected[RejectExpired] != 50 || s.PrincipalCacheHits != 50 {
		t.Errorf("snapshot = %+v", s)
	}
}
