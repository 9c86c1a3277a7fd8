// Package telemetry groups the observability packages of policyd.
//
//   - logging: slog logger construction with redaction and request ids
//   - metrics: Prometheus collector for store and HTTP metrics
//   - health: liveness and readiness probes
package telemetry
