package handler

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/queueup/queueup/internal/metrics"
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

	writeMetric(w, "queueup_recruitments_created_total %d\n", snap.RecruitmentsCreated)
	writeMetric(w, "queueup_recruitments_updated_total %d\n", snap.RecruitmentsUpdated)
	writeMetric(w, "queueup_recruitments_deleted_total %d\n", snap.RecruitmentsDeleted)

	writeLabeledMetric(w, "queueup_status_changes_total", "status", snap.StatusChanges)

	writeMetric(w, "queueup_joins_total{result=\"accepted\"} %d\n", snap.JoinsAccepted)
	writeLabeledMetric(w, "queueup_joins_rejected_total", "reason", snap.JoinsRejected)
	writeMetric(w, "queueup_leaves_total{result=\"accepted\"} %d\n", snap.LeavesAccepted)
	writeLabeledMetric(w, "queueup_leaves_rejected_total", "reason", snap.LeavesRejected)

	writeMetric(w, "queueup_join_duration_seconds_count %d\n", snap.JoinDurationCount)
	writeMetric(w, "queueup_join_duration_seconds_sum %.6f\n", float64(snap.JoinDurationTotalNs)/1e9)

	writeMetric(w, "queueup_events_published_total{status=\"success\"} %d\n", snap.EventsPublished)
	writeMetric(w, "queueup_events_published_total{status=\"dropped\"} %d\n", snap.EventsDropped)

	writeMetric(w, "queueup_websocket_clients %d\n", snap.ConnectedClients)
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}

// writeLabeledMetric emits one sample per label value in a stable order.
func writeLabeledMetric(w http.ResponseWriter, name, label string, counts map[string]uint64) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		writeMetric(w, "%s{%s=%q} %d\n", name, label, k, counts[k])
	}
}
