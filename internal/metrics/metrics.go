// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Login outcomes.
const (
	LoginSuccess            = "success"
	LoginInvalidCredentials = "invalid_credentials"
	LoginInactive           = "inactive"
)

// Token rejection reasons.
const (
	RejectMissing  = "missing"
	RejectInvalid  = "invalid"
	RejectExpired  = "expired"
	RejectRevoked  = "revoked"
	RejectUnknown  = "unknown_user"
	RejectInactive = "inactive"
)

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Session metrics
	IncLogin(outcome string)
	IncRegistration()
	IncRevocation()
	IncTokenRejected(reason string)
	ObserveAuthenticateDuration(duration time.Duration)

	// Principal cache metrics
	IncPrincipalCacheHit()
	IncPrincipalCacheMiss()

	// User management metrics
	IncUserCreated()
	IncUserUpdated()
	IncUserDeleted()
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
