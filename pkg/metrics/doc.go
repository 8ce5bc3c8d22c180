// Package metrics exposes the Sync Engine's Prometheus metrics:
// indexed file count, connected peers, blob uploads, mirror commits,
// and sync errors, scraped over /metrics the same way the teacher
// repo's pkg/metrics exposes cluster metrics.
package metrics
