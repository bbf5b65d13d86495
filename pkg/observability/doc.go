// Package observability provides logging, metrics, health checks, and
// graceful shutdown for the CRM services.
//
// # Logging
//
// Structured JSON logging over log/slog:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("mother_id", 42).Info("stage transition")
//
// # Metrics
//
// Prometheus metrics with a crm_ prefix, served on the health port:
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.HTTPRequestsTotal.WithLabelValues("GET", "/mothers", "200").Inc()
//
// # Health Checks
//
// Kubernetes-style probes on /health/live and /health/ready. The
// database is required; Redis is optional and only degrades readiness.
//
// # OpenTelemetry
//
// Optional OTLP trace and metric export:
//
//	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
//		Enabled:        true,
//		Endpoint:       "localhost:4317",
//		ServiceName:    "crm",
//		ServiceVersion: "1.0.0",
//	}, logger)
package observability
