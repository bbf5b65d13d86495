package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestSize     *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Pipeline metrics
	MothersCreatedTotal    *prometheus.CounterVec
	StageTransitionsTotal  *prometheus.CounterVec
	BansOpenedTotal        prometheus.Counter
	BansResolvedTotal      prometheus.Counter
	AssignmentsTotal       *prometheus.CounterVec
	AccessDeniedTotal      *prometheus.CounterVec

	// Mail ingestion metrics
	MailMessagesSeenTotal    prometheus.Counter
	MailMothersCreatedTotal  prometheus.Counter
	MailMessagesSkippedTotal prometheus.Counter
	MailFailuresTotal        prometheus.Counter
	MailSyncDuration         prometheus.Histogram

	// Bot metrics
	BotNotificationsTotal *prometheus.CounterVec
	BotRegistrationsTotal prometheus.Counter

	// Document metrics
	DocumentUploadsTotal  *prometheus.CounterVec
	DocumentUploadBytes   prometheus.Histogram

	// Cache metrics
	CacheHitsTotal      *prometheus.CounterVec
	CacheMissesTotal    *prometheus.CounterVec
	CacheEvictionsTotal *prometheus.CounterVec

	// Database metrics
	DBConnectionsActive       prometheus.Gauge
	DBConnectionsIdle         prometheus.Gauge
	DBConnectionsWaitCount    prometheus.Gauge
	DBConnectionsWaitDuration prometheus.Gauge

	// Redis metrics
	RedisConnectionsActive prometheus.Gauge
	RedisCommandsTotal     *prometheus.CounterVec

	// Business metrics
	MothersPerStage  *prometheus.GaugeVec
	UnresolvedBans   prometheus.Gauge
	ActiveStaffTotal prometheus.Gauge
	APITokensActive  prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		// HTTP metrics
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crm_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crm_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPRequestSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crm_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "path"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crm_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "path"},
		),

		// Pipeline metrics
		MothersCreatedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crm_mothers_created_total",
				Help: "Total number of mother records created",
			},
			[]string{"source"},
		),
		StageTransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crm_stage_transitions_total",
				Help: "Total number of stage transitions",
			},
			[]string{"from", "to"},
		),
		BansOpenedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "crm_bans_opened_total",
				Help: "Total number of bans opened",
			},
		),
		BansResolvedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "crm_bans_resolved_total",
				Help: "Total number of bans resolved",
			},
		),
		AssignmentsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crm_assignments_total",
				Help: "Total number of manager assignments",
			},
			[]string{"stage", "mode"},
		),
		AccessDeniedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crm_access_denied_total",
				Help: "Total number of denied access attempts",
			},
			[]string{"level"},
		),

		// Mail ingestion metrics
		MailMessagesSeenTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "crm_mail_messages_seen_total",
				Help: "Total number of inbox messages examined",
			},
		),
		MailMothersCreatedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "crm_mail_mothers_created_total",
				Help: "Total number of mothers created from mail",
			},
		),
		MailMessagesSkippedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "crm_mail_messages_skipped_total",
				Help: "Total number of already-ingested messages skipped",
			},
		),
		MailFailuresTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "crm_mail_failures_total",
				Help: "Total number of messages that failed to ingest",
			},
		),
		MailSyncDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "crm_mail_sync_duration_seconds",
				Help:    "Mail sync run duration in seconds",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
			},
		),

		// Bot metrics
		BotNotificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crm_bot_notifications_total",
				Help: "Total number of Telegram notifications sent",
			},
			[]string{"status"},
		),
		BotRegistrationsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "crm_bot_registrations_total",
				Help: "Total number of lab manager chat registrations",
			},
		),

		// Document metrics
		DocumentUploadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crm_document_uploads_total",
				Help: "Total number of document uploads",
			},
			[]string{"kind", "status"},
		),
		DocumentUploadBytes: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "crm_document_upload_bytes",
				Help:    "Uploaded document size in bytes",
				Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
			},
		),

		// Cache metrics
		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crm_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"key_type"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crm_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"key_type"},
		),
		CacheEvictionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crm_cache_evictions_total",
				Help: "Total number of cache evictions",
			},
			[]string{"key_type", "reason"},
		),

		// Database metrics
		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "crm_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "crm_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
		DBConnectionsWaitCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "crm_db_connections_wait_count",
				Help: "Total number of connections waited for",
			},
		),
		DBConnectionsWaitDuration: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "crm_db_connections_wait_duration_seconds",
				Help: "Total time spent waiting for connections",
			},
		),

		// Redis metrics
		RedisConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "crm_redis_connections_active",
				Help: "Number of active Redis connections",
			},
		),
		RedisCommandsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crm_redis_commands_total",
				Help: "Total number of Redis commands",
			},
			[]string{"command", "status"},
		),

		// Business metrics
		MothersPerStage: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "crm_mothers_per_stage",
				Help: "Number of mothers currently on each stage",
			},
			[]string{"stage"},
		),
		UnresolvedBans: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "crm_unresolved_bans",
				Help: "Number of open bans awaiting resolution",
			},
		),
		ActiveStaffTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "crm_active_staff_total",
				Help: "Number of active staff accounts",
			},
		),
		APITokensActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "crm_api_tokens_active",
				Help: "Number of active API tokens",
			},
		),
	}

	// Register all metrics
	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestSize,
		m.HTTPResponseSize,
		m.MothersCreatedTotal,
		m.StageTransitionsTotal,
		m.BansOpenedTotal,
		m.BansResolvedTotal,
		m.AssignmentsTotal,
		m.AccessDeniedTotal,
		m.MailMessagesSeenTotal,
		m.MailMothersCreatedTotal,
		m.MailMessagesSkippedTotal,
		m.MailFailuresTotal,
		m.MailSyncDuration,
		m.BotNotificationsTotal,
		m.BotRegistrationsTotal,
		m.DocumentUploadsTotal,
		m.DocumentUploadBytes,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CacheEvictionsTotal,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
		m.DBConnectionsWaitCount,
		m.DBConnectionsWaitDuration,
		m.RedisConnectionsActive,
		m.RedisCommandsTotal,
		m.MothersPerStage,
		m.UnresolvedBans,
		m.ActiveStaffTotal,
		m.APITokensActive,
	)

	return m
}

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			if r.ContentLength > 0 {
				metrics.HTTPRequestSize.WithLabelValues(r.Method, r.URL.Path).Observe(float64(r.ContentLength))
			}

			next.ServeHTTP(rw, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
			metrics.HTTPResponseSize.WithLabelValues(r.Method, r.URL.Path).Observe(float64(rw.bytesWritten))
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
