package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// IndexedFiles is the current number of paths held in the Vault
	// Indexer's side table.
	IndexedFiles = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "oversync_indexed_files",
			Help: "Number of files currently tracked in the vault index",
		},
	)

	// PeersConnected mirrors SyncStatus.PeersConnected.
	PeersConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "oversync_peers_connected",
			Help: "Number of peers currently connected",
		},
	)

	// BlobUploadsTotal counts successful peer blob announcements.
	BlobUploadsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "oversync_blob_uploads_total",
			Help: "Total number of blobs added to the peer blob store",
		},
	)

	// MirrorCommitsTotal counts successful remote-mirror update_state
	// commits.
	MirrorCommitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "oversync_mirror_commits_total",
			Help: "Total number of remote mirror commits",
		},
	)

	// SyncErrorsTotal counts errors from detached dispatch tasks
	// (peer blob add, remote mirror upload/commit), labeled by the
	// stage that failed.
	SyncErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oversync_sync_errors_total",
			Help: "Total number of errors in detached sync dispatch tasks",
		},
		[]string{"stage"},
	)

	// RemoteBlobsAppliedTotal counts inbound blobs successfully
	// decrypted and materialized into the vault.
	RemoteBlobsAppliedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "oversync_remote_blobs_applied_total",
			Help: "Total number of remote blobs decrypted and written to the vault",
		},
	)

	// WatchEventLatency measures time from a watcher event being
	// observed to the indexer update it produced completing.
	WatchEventLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "oversync_watch_event_latency_seconds",
			Help:    "Time from a filesystem change event to the completed index update",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(
		IndexedFiles,
		PeersConnected,
		BlobUploadsTotal,
		MirrorCommitsTotal,
		SyncErrorsTotal,
		RemoteBlobsAppliedTotal,
		WatchEventLatency,
	)
}

// Handler returns the Prometheus scrape handler, served at /metrics
// the same way the teacher repo exposes it.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the time elapsed since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to the histogram in vec
// selected by labels.
func (t *Timer) ObserveDurationVec(vec *prometheus.HistogramVec, labels ...string) {
	vec.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}
