// Package server holds the process-wide state shared by the HTTP API and
// the MCP tools, plus the health and metrics endpoints.
//
// # Key Components
//
// ServerContext carries the shutdown context and the service layer
// (event, reminder and linking operations) together with the database
// handle used for health reporting.
//
// HealthChecker serves Kubernetes style probes:
//   - /healthz: liveness, always ok while the process runs
//   - /readyz: readiness, runs the registered dependency checks
//   - /health: database round trip with the server time
//
// MetricsServer exposes Prometheus metrics on a dedicated port so that
// operational data stays off the public listener.
package server
