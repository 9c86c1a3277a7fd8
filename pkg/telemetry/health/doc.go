// Package health provides liveness and readiness probes for policyd.
//
// Liveness only reports that the process is serving. Readiness runs every
// registered component check concurrently, each bounded by the checker's
// timeout, and reports "degraded" (HTTP 503) when any check fails.
//
// Informational fields such as the outcome of the startup policy seed can be
// attached with SetInfo; they are reported but never affect readiness, so a
// failed seed does not take the service out of rotation.
//
//	checker := health.New(5 * time.Second)
//	checker.RegisterCheck("store", st.Ping)
//	checker.SetInfo("policy_seed", outcome.State.String())
//	mux.HandleFunc("/ready", checker.ReadinessHandler())
package health
