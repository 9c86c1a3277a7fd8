// Package metrics provides Prometheus metrics collection for policyd.
//
// # Metrics
//
//   - policyd_store_updates_total{backend,result}
//   - policyd_store_update_duration_seconds{backend}
//   - policyd_store_active_policies{backend}
//   - policyd_http_requests_total{route,method,code}
//   - policyd_http_request_duration_seconds{route}
//
// The startup policy seed emits no metrics of its own; its replacement is
// recorded by the instrumented store like any other.
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	st = store.NewInstrumented(st, cfg.Store.Backend, collector)
//	mux.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
package metrics
