// Package telemetry provides application-level observability for the console backend.
//
// All metrics are registered against the default Prometheus registry and served
// by the side-channel HTTP server started in cmd/server:
//
//	GET http://<host>:<RMC_TELEMETRY_METRICS_PROMETHEUS_PORT>/metrics
//
// Default port: 9090. The endpoint is deliberately not part of the Gin router so
// the scrape path stays off the public ingress and outside the rate limiter.
//
// HTTP metrics use c.FullPath() (route template such as
// /api/v1/clusters/:id/queues) rather than the raw URL to prevent unbounded
// label cardinality from user-supplied vhost and resource names.
package telemetry

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics, labelled by method, route template, and status code.
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route template.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)
)

// Upstream (RabbitMQ Management API) proxy metrics.
//
// UpstreamCallsTotal is labelled {cluster, method, result} where result is the
// classified error kind ("ok", "unreachable", "authentication_failed", ...).
// The cluster label is the cluster name, which is operator-controlled and
// bounded, not a request parameter.
var (
	UpstreamCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_calls_total",
			Help: "Total number of calls proxied to upstream RabbitMQ management APIs, by cluster, method, and classified result.",
		},
		[]string{"cluster", "method", "result"},
	)

	UpstreamCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_call_duration_seconds",
			Help:    "Histogram of upstream management API call latencies, by cluster.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 15, 30},
		},
		[]string{"cluster"},
	)
)

// Audit pipeline metrics.
var (
	AuditQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "audit_queue_depth",
			Help: "Current number of audit records waiting in the asynchronous writer queue.",
		},
	)

	AuditRecordsWrittenTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_records_written_total",
			Help: "Total number of audit records persisted, by outcome of the write itself (ok, error).",
		},
		[]string{"result"},
	)

	AuditRecordsPurgedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_records_purged_total",
			Help: "Total number of audit records removed by the retention sweep.",
		},
	)
)

// Database connection pool gauges, polled by StartDBStatsCollector.
var (
	DBOpenConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_open_connections",
			Help: "Number of open connections in the database pool.",
		},
	)

	DBInUseConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_in_use_connections",
			Help: "Number of database connections currently in use.",
		},
	)

	DBIdleConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_idle_connections",
			Help: "Number of idle connections in the database pool.",
		},
	)
)

// StartDBStatsCollector polls db.Stats() every 30 seconds and exports the pool
// gauges above. It runs until the process exits; the goroutine holds only the
// *sql.DB handle so it never keeps anything else alive.
func StartDBStatsCollector(db *sql.DB) {
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			stats := db.Stats()
			DBOpenConnections.Set(float64(stats.OpenConnections))
			DBInUseConnections.Set(float64(stats.InUse))
			DBIdleConnections.Set(float64(stats.Idle))
		}
	}()
	slog.Debug("database pool stats collector started")
}
