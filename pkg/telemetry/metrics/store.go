package metrics

import (
	"time"

	"mercator-hq/policyd/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// StoreMetrics tracks policy store replacements.
//
// Metrics:
//   - policyd_store_updates_total: replacements by backend and result
//   - policyd_store_update_duration_seconds: replacement latency
//   - policyd_store_active_policies: size of the active set
type StoreMetrics struct {
	updatesTotal   *prometheus.CounterVec
	updateDuration *prometheus.HistogramVec
	activePolicies *prometheus.GaugeVec
}

// NewStoreMetrics creates and registers store metrics with the provided registry.
func NewStoreMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *StoreMetrics {
	sm := &StoreMetrics{
		updatesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "updates_total",
				Help:      "Total number of policy set replacements",
			},
			[]string{"backend", "result"},
		),

		updateDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "update_duration_seconds",
				Help:      "Duration of policy set replacements in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 9), // 100µs to ~6.5s
			},
			[]string{"backend"},
		),

		activePolicies: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "active_policies",
				Help:      "Number of policies in the active set",
			},
			[]string{"backend"},
		),
	}

	registry.MustRegister(
		sm.updatesTotal,
		sm.updateDuration,
		sm.activePolicies,
	)

	return sm
}

// RecordUpdate records a replacement attempt.
func (sm *StoreMetrics) RecordUpdate(backend string, success bool, duration time.Duration) {
	result := "success"
	if !success {
		result = "error"
	}
	sm.updatesTotal.WithLabelValues(backend, result).Inc()
	sm.updateDuration.WithLabelValues(backend).Observe(duration.Seconds())
}

// SetActive sets the active set size.
func (sm *StoreMetrics) SetActive(backend string, count int) {
	sm.activePolicies.WithLabelValues(backend).Set(float64(count))
}
