package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	Logins                    map[string]uint64
	TokensRejected            map[string]uint64
	Registrations             uint64
	Revocations               uint64
	AuthenticateCount         uint64
	AuthenticateDurationTotal int64
	PrincipalCacheHits        uint64
	PrincipalCacheMisses      uint64
	UsersCreated              uint64
	UsersUpdated              uint64
	UsersDeleted              uint64
}

// InMemoryRecorder stores metrics in memory. It backs /metrics and tests.
type InMemoryRecorder struct {
	mu             sync.Mutex
	logins         map[string]uint64
	tokensRejected map[string]uint64

	registrations             uint64
	revocations               uint64
	authenticateCount         uint64
	authenticateDurationTotal int64
	principalCacheHits        uint64
	principalCacheMisses      uint64
	usersCreated              uint64
	usersUpdated              uint64
	usersDeleted              uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{
		logins:         make(map[string]uint64),
		tokensRejected: make(map[string]uint64),
	}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	logins := copyCounts(m.logins)
	rejected := copyCounts(m.tokensRejected)
	m.mu.Unlock()

	return Snapshot{
		Logins:                    logins,
		TokensRejected:            rejected,
		Registrations:             atomic.LoadUint64(&m.registrations),
		Revocations:               atomic.LoadUint64(&m.revocations),
		AuthenticateCount:         atomic.LoadUint64(&m.authenticateCount),
		AuthenticateDurationTotal: atomic.LoadInt64(&m.authenticateDurationTotal),
		PrincipalCacheHits:        atomic.LoadUint64(&m.principalCacheHits),
		PrincipalCacheMisses:      atomic.LoadUint64(&m.principalCacheMisses),
		UsersCreated:              atomic.LoadUint64(&m.usersCreated),
		UsersUpdated:              atomic.LoadUint64(&m.usersUpdated),
		UsersDeleted:              atomic.LoadUint64(&m.usersDeleted),
	}
}

func copyCounts(in map[string]uint64) map[string]uint64 {
	out := make(map[string]uint64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// IncLogin counts a login attempt by outcome.
func (m *InMemoryRecorder) IncLogin(outcome string) {
	m.mu.Lock()
	m.logins[outcome]++
	m.mu.Unlock()
}

// IncRegistration increments the registration counter.
func (m *InMemoryRecorder) IncRegistration() {
	atomic.AddUint64(&m.registrations, 1)
}

// IncRevocation increments the revocation counter.
func (m *InMemoryRecorder) IncRevocation() {
	atomic.AddUint64(&m.revocations, 1)
}

// IncTokenRejected counts a rejected bearer token by reason.
func (m *InMemoryRecorder) IncTokenRejected(reason string) {
	m.mu.Lock()
	m.tokensRejected[reason]++
	m.mu.Unlock()
}

// ObserveAuthenticateDuration records time spent authenticating a request.
func (m *InMemoryRecorder) ObserveAuthenticateDuration(duration time.Duration) {
	atomic.AddUint64(&m.authenticateCount, 1)
	atomic.AddInt64(&m.authenticateDurationTotal, duration.Nanoseconds())
}

// IncPrincipalCacheHit increments cache hit counter.
func (m *InMemoryRecorder) IncPrincipalCacheHit() {
	atomic.AddUint64(&m.principalCacheHits, 1)
}

// IncPrincipalCacheMiss increments cache miss counter.
func (m *InMemoryRecorder) IncPrincipalCacheMiss() {
	atomic.AddUint64(&m.principalCacheMisses, 1)
}

// IncUserCreated increments user created counter.
func (m *InMemoryRecorder) IncUserCreated() {
	atomic.AddUint64(&m.usersCreated, 1)
}

// IncUserUpdated increments user updated counter.
func (m *InMemoryRecorder) IncUserUpdated() {
	atomic.AddUint64(&m.usersUpdated, 1)
}

// IncUserDeleted increments user deleted counter.
func (m *InMemoryRecorder) IncUserDeleted() {
	atomic.AddUint64(&m.usersDeleted, 1)
}
