package metrics

import (
	"strconv"
	"time"

	"mercator-hq/policyd/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector owns the Prometheus registry of policyd and records store and
// HTTP metrics.
//
// A disabled collector accepts every call and records nothing.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	storeMetrics   *StoreMetrics
	requestMetrics *RequestMetrics
}

// NewCollector creates a collector. If registry is nil a fresh registry is
// used, never the global default one.
//
// Example:
//
//	cfg := &config.MetricsConfig{
//		Enabled:   true,
//		Namespace: "policyd",
//		Subsystem: "store",
//	}
//	collector := metrics.NewCollector(cfg, nil)
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if cfg == nil {
		cfg = &config.MetricsConfig{Enabled: true}
	}
	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = config.DefaultMetricsSubsystem
	}

	return &Collector{
		config:         cfg,
		registry:       registry,
		storeMetrics:   NewStoreMetrics(cfg, registry),
		requestMetrics: NewRequestMetrics(cfg, registry),
	}
}

// RecordStoreUpdate records one policy set replacement.
func (c *Collector) RecordStoreUpdate(backend string, success bool, duration time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.storeMetrics.RecordUpdate(backend, success, duration)
}

// SetActivePolicies sets the size of the active policy set.
func (c *Collector) SetActivePolicies(backend string, count int) {
	if !c.config.Enabled {
		return
	}
	c.storeMetrics.SetActive(backend, count)
}

// RecordHTTPRequest records a served HTTP request.
func (c *Collector) RecordHTTPRequest(route, method string, status int, duration time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.requestMetrics.RecordRequest(route, method, strconv.Itoa(status), duration)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
