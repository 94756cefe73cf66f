package handler

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/facturo/facturo/internal/metrics"
)

// MetricsHandler exposes in-memory metrics.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// Metrics returns metrics in Prometheus exposition format.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	writeLabeled(w, "facturo_logins_total", "outcome", snap.Logins)
	writeMetric(w, "facturo_registrations_total %d\n", snap.Registrations)
	writeMetric(w, "facturo_revocations_total %d\n", snap.Revocations)
	writeLabeled(w, "facturo_tokens_rejected_total", "reason", snap.TokensRejected)

	writeMetric(w, "facturo_authenticate_duration_seconds_count %d\n", snap.AuthenticateCount)
	writeMetric(w, "facturo_authenticate_duration_seconds_sum %.6f\n", float64(snap.AuthenticateDurationTotal)/1e9)

	writeMetric(w, "facturo_principal_cache_hits_total %d\n", snap.PrincipalCacheHits)
	writeMetric(w, "facturo_principal_cache_misses_total %d\n", snap.PrincipalCacheMisses)

	writeMetric(w, "facturo_users_created_total %d\n", snap.UsersCreated)
	writeMetric(w, "facturo_users_updated_total %d\n", snap.UsersUpdated)
	writeMetric(w, "facturo_users_deleted_total %d\n", snap.UsersDeleted)
}

// writeLabeled writes one line per label value in a stable order.
func writeLabeled(w http.ResponseWriter, name, label string, values map[string]uint64) {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		writeMetric(w, "%s{%s=%q} %d\n", name, label, k, values[k])
	}
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
