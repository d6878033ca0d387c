// Package prometheus provides Prometheus-backed metric collectors.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/caskfs/caskfs/pkg/metrics"
)

// VaultMetrics counts versioning activity.
//
// A nil *VaultMetrics is valid and records nothing, so callers can
// wire the collector unconditionally.
type VaultMetrics struct {
	uploads       *prometheus.CounterVec
	uploadBytes   prometheus.Counter
	downloadBytes prometheus.Counter
	lockConflicts prometheus.Counter
	verifications *prometheus.CounterVec
	hashDuration  prometheus.Histogram
}

// NewVaultMetrics creates the vault collector set.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
// All methods are safe on a nil receiver.
func NewVaultMetrics() *VaultMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &VaultMetrics{
		uploads: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "caskfs_uploads_total",
				Help: "Total upload attempts by outcome",
			},
			[]string{"outcome"}, // "committed", "conflict", "storage_error", "rejected"
		),
		uploadBytes: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "caskfs_upload_bytes_total",
				Help: "Total payload bytes accepted into the content store",
			},
		),
		downloadBytes: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "caskfs_download_bytes_total",
				Help: "Total payload bytes served to clients",
			},
		),
		lockConflicts: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "caskfs_lock_conflicts_total",
				Help: "Total lock acquisitions refused because another holder had the file",
			},
		),
		verifications: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "caskfs_verifications_total",
				Help: "Total integrity verifications by result",
			},
			[]string{"result"}, // "valid", "invalid"
		),
		hashDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "caskfs_hash_duration_seconds",
				Help:    "Time spent computing SHA-256 digests",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
}

// RecordUpload counts one upload attempt with the given outcome.
func (m *VaultMetrics) RecordUpload(outcome string, bytes int64) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(outcome).Inc()
	if bytes > 0 {
		m.uploadBytes.Add(float64(bytes))
	}
}

// RecordDownload counts payload bytes served.
func (m *VaultMetrics) RecordDownload(bytes int64) {
	if m == nil {
		return
	}
	m.downloadBytes.Add(float64(bytes))
}

// RecordLockConflict counts one refused acquisition.
func (m *VaultMetrics) RecordLockConflict() {
	if m == nil {
		return
	}
	m.lockConflicts.Inc()
}

// RecordVerification counts one integrity check.
func (m *VaultMetrics) RecordVerification(valid bool) {
	if m == nil {
		return
	}
	result := "valid"
	if !valid {
		result = "invalid"
	}
	m.verifications.WithLabelValues(result).Inc()
}

// ObserveHashDuration records one digest computation.
func (m *VaultMetrics) ObserveHashDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.hashDuration.Observe(d.Seconds())
}
