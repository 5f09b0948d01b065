// Package observability provides the service's logging, metrics, health,
// tracing and shutdown plumbing.
//
// Components:
//   - Logger: structured JSON logging over stdlib slog
//   - Metrics: Prometheus counters/histograms for the HTTP surface, the
//     upstream authority client, caches and permission reconciliation
//   - HealthChecker: liveness/readiness over redis, the audit database and
//     the upstream authority
//   - ShutdownManager: signal-driven graceful shutdown
//   - InitTracing: OpenTelemetry tracer provider wired to an OTLP endpoint
package observability
