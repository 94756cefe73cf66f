package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncLogin is a no-op.
func (n *NoopRecorder) IncLogin(outcome string) {}

// IncRegistration is a no-op.
func (n *NoopRecorder) IncRegistration() {}

// IncRevocation is a no-op.
func (n *NoopRecorder) IncRevocation() {}

// IncTokenRejected is a no-op.
func (n *NoopRecorder) IncTokenRejected(reason string) {}

// ObserveAuthenticateDuration is a no-op.
func (n *NoopRecorder) ObserveAuthenticateDuration(duration time.Duration) {}

// IncPrincipalCacheHit is a no-op.
func (n *NoopRecorder) IncPrincipalCacheHit() {}

// IncPrincipalCacheMiss is a no-op.
func (n *NoopRecorder) IncPrincipalCacheMiss() {}

// IncUserCreated is a no-op.
func (n *NoopRecorder) IncUserCreated() {}

// IncUserUpdated is a no-op.
func (n *NoopRecorder) IncUserUpdated() {}

// IncUserDeleted is a no-op.
func (n *NoopRecorder) IncUserDeleted() {}
