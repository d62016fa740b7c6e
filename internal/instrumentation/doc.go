// Package instrumentation provides OpenTelemetry instrumentation for the
// calendarlink service.
//
// # Metrics
//
// Server/HTTP Metrics:
//   - http_requests_total: Counter of HTTP requests by method, path, and status
//   - http_request_duration_seconds: Histogram of HTTP request durations
//
// Google API Metrics:
//   - google_api_operations_total: Counter of Google API operations by service, operation, status
//   - google_api_operation_duration_seconds: Histogram of Google API operation durations
//   - remote_call_retries_total: Counter of retries scheduled by the resilient invoker
//
// Coordination Metrics:
//   - sequencer_lock_wait_seconds: Histogram of lock wait time by outcome
//   - sequencer_lock_timeouts_total: Counter of lock acquisitions that timed out
//
// OAuth Metrics:
//   - oauth_state_verifications_total: Counter of signed state verifications by result
//
// MCP Metrics:
//   - mcp_tool_invocations_total: Counter of tool invocations by tool and status
//   - mcp_tool_duration_seconds: Histogram of tool invocation durations
//
// With the prometheus exporter the metrics live in a registry owned by the
// Provider, next to the Go runtime and process collectors, and are served
// by Provider.MetricsHandler.
//
// # Tracing
//
// Distributed tracing spans are created for:
//   - HTTP request handling (via otelhttp)
//   - MCP tool invocations (tool.<name>)
//   - Google API calls (google.<service>.<operation>)
//   - Sequenced critical sections (sequencer.run)
//
// # Configuration
//
// Instrumentation can be configured via environment variables:
//   - INSTRUMENTATION_ENABLED: Enable/disable instrumentation (default: true)
//   - METRICS_EXPORTER: Metrics exporter type (prometheus, otlp, stdout, default: prometheus)
//   - TRACING_EXPORTER: Tracing exporter type (otlp, stdout, none, default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint for traces/metrics
//   - OTEL_EXPORTER_OTLP_INSECURE: Plain HTTP to the collector (default: false)
//   - OTEL_TRACES_SAMPLER_ARG: Sampling rate (0.0 to 1.0, default: 0.1)
//   - OTEL_SERVICE_NAME: Service name (default: calendarlink)
//
// The stdout exporters write to stderr.
//
// # Example Usage
//
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	recorder := provider.Metrics()
//	recorder.RecordGoogleAPIOperation(ctx, instrumentation.ServiceCalendar, "patch", instrumentation.StatusSuccess, time.Since(start))
//	recorder.RecordLockWait(ctx, instrumentation.LockAcquired, waited)
package instrumentation
