// Package server exposes the policy store over HTTP.
//
// Routes:
//
//	GET  /v1/policies           active policy set, in insertion order
//	PUT  /v1/policies           atomically replace the set (JSON array body)
//	GET  /v1/policies/snapshot  revision, version, applied_at and count
//	GET  /health                liveness
//	GET  /ready                 readiness (store reachability)
//	GET  /version               build information
//	GET  /metrics               Prometheus metrics, when enabled
//
// Every request passes through recovery, request-id, logging and metrics
// middleware. A replacement body is decoded exactly like a policy file, so a
// body that would fail the startup seed fails here with 400.
package server
