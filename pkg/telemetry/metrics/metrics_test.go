package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mercator-hq/policyd/pkg/config"
	"mercator-hq/policyd/pkg/policy/store"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

var _ store.Recorder = (*Collector)(nil)

func testConfig() *config.MetricsConfig {
	return &config.MetricsConfig{
		Enabled:   true,
		Namespace: "test",
		Subsystem: "store",
	}
}

func TestCollector_NewCollector(t *testing.T) {
	cfg := testConfig()
	registry := prometheus.NewRegistry()

	collector := NewCollector(cfg, registry)

	if collector.config != cfg {
		t.Error("Collector config not set correctly")
	}
	if collector.Registry() != registry {
		t.Error("Collector registry not set correctly")
	}
}

func TestCollector_Defaults(t *testing.T) {
	collector := NewCollector(nil, nil)

	if collector.config.Namespace != config.DefaultMetricsNamespace {
		t.Errorf("namespace = %q", collector.config.Namespace)
	}
	if collector.Registry() == nil {
		t.Fatal("expected a registry")
	}

	collector.RecordStoreUpdate("memory", true, time.Millisecond)
	n, err := testutil.GatherAndCount(collector.Registry(), "policyd_store_updates_total")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("series = %d, want 1", n)
	}
}

func TestCollector_RecordStoreUpdate(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())

	collector.RecordStoreUpdate("sqlite", true, 2*time.Millisecond)
	collector.RecordStoreUpdate("sqlite", true, 3*time.Millisecond)
	collector.RecordStoreUpdate("sqlite", false, time.Millisecond)

	if got := testutil.ToFloat64(collector.storeMetrics.updatesTotal.WithLabelValues("sqlite", "success")); got != 2 {
		t.Errorf("success count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.storeMetrics.updatesTotal.WithLabelValues("sqlite", "error")); got != 1 {
		t.Errorf("error count = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(collector.storeMetrics.updateDuration); got != 1 {
		t.Errorf("duration series = %d, want 1", got)
	}
}

func TestCollector_SetActivePolicies(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())

	collector.SetActivePolicies("redis", 7)
	collector.SetActivePolicies("redis", 3)

	expected := `
# HELP test_store_active_policies Number of policies in the active set
# TYPE test_store_active_policies gauge
test_store_active_policies{backend="redis"} 3
`
	if err := testutil.CollectAndCompare(collector.storeMetrics.activePolicies, strings.NewReader(expected)); err != nil {
		t.Error(err)
	}
}

func TestCollector_RecordHTTPRequest(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())

	collector.RecordHTTPRequest("/v1/policies", "PUT", 200, 5*time.Millisecond)
	collector.RecordHTTPRequest("/v1/policies", "PUT", 400, time.Millisecond)

	if got := testutil.ToFloat64(collector.requestMetrics.requestsTotal.WithLabelValues("/v1/policies", "PUT", "400")); got != 1 {
		t.Errorf("400 count = %v, want 1", got)
	}
}

func TestCollector_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	collector := NewCollector(cfg, prometheus.NewRegistry())

	collector.RecordStoreUpdate("memory", true, time.Millisecond)
	collector.SetActivePolicies("memory", 3)
	collector.RecordHTTPRequest("/health", "GET", 200, time.Millisecond)

	if got := testutil.CollectAndCount(collector.storeMetrics.updatesTotal); got != 0 {
		t.Errorf("expected no series when disabled, got %d", got)
	}
	if got := testutil.CollectAndCount(collector.requestMetrics.requestsTotal); got != 0 {
		t.Errorf("expected no series when disabled, got %d", got)
	}
}

func TestCollector_Handler(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())
	collector.SetActivePolicies("memory", 2)

	rec := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `test_store_active_policies{backend="memory"} 2`) {
		t.Errorf("metrics output missing gauge:\n%s", body)
	}
}

func TestInstrumentedStore_RecordsIntoCollector(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())
	st := store.NewInstrumented(store.NewMemoryStore(), "memory", collector)

	if _, err := st.UpdatePolicies(t.Context(), nil); err == nil {
		t.Fatal("expected nil set to be rejected")
	}

	if got := testutil.ToFloat64(collector.storeMetrics.updatesTotal.WithLabelValues("memory", "error")); got != 1 {
		t.Errorf("error count = %v, want 1", got)
	}
}
