package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"site-cloner/internal/database"
)

// PrometheusMetrics holds all Prometheus metrics. It also serves as the
// progress recorder of the rewrite driver and the clone service.
type PrometheusMetrics struct {
	// HTTP request metrics
	HttpRequestsTotal   *prometheus.CounterVec
	HttpRequestDuration *prometheus.HistogramVec

	// Clone metrics
	ClonesTotal   *prometheus.CounterVec
	CloneDuration *prometheus.HistogramVec

	// Rewrite metrics
	RewriteScanned  prometheus.Counter
	RewriteUpdated  prometheus.Counter
	RewriteFailed   *prometheus.CounterVec
	RewriteTableDur prometheus.Histogram

	// Connection pool metrics
	ConnectionPoolInUse prometheus.Gauge
	ConnectionPoolIdle  prometheus.Gauge
	DatabaseUp          prometheus.Gauge
}

var (
	metrics *PrometheusMetrics
)

// NewMetrics registers every metric with reg.
func NewMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	f := promauto.With(reg)
	return &PrometheusMetrics{
		HttpRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitecloner_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		HttpRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sitecloner_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		ClonesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitecloner_clones_total",
				Help: "Clone runs by outcome (success, partial, error)",
			},
			[]string{"status"},
		),
		CloneDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sitecloner_clone_duration_seconds",
				Help:    "Clone run time in seconds",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
			},
			[]string{"status"},
		),

		RewriteScanned: f.NewCounter(prometheus.CounterOpts{
			Name: "sitecloner_rewrite_rows_scanned_total",
			Help: "Column values selected for rewriting",
		}),
		RewriteUpdated: f.NewCounter(prometheus.CounterOpts{
			Name: "sitecloner_rewrite_rows_updated_total",
			Help: "Rows changed by rewrite updates",
		}),
		RewriteFailed: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitecloner_rewrite_rows_failed_total",
				Help: "Column values left untouched because they could not be rewritten",
			},
			[]string{"reason"},
		),
		RewriteTableDur: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "sitecloner_rewrite_table_duration_seconds",
			Help:    "Time spent rewriting one table",
			Buckets: prometheus.DefBuckets,
		}),

		ConnectionPoolInUse: f.NewGauge(prometheus.GaugeOpts{
			Name: "sitecloner_connection_pool_in_use",
			Help: "Connections currently in use",
		}),
		ConnectionPoolIdle: f.NewGauge(prometheus.GaugeOpts{
			Name: "sitecloner_connection_pool_idle",
			Help: "Idle connections in the pool",
		}),
		DatabaseUp: f.NewGauge(prometheus.GaugeOpts{
			Name: "sitecloner_database_up",
			Help: "Whether the last database health check passed (1=up, 0=down)",
		}),
	}
}

// InitMetrics registers the metrics with the default registry.
func InitMetrics() *PrometheusMetrics {
	metrics = NewMetrics(prometheus.DefaultRegisterer)
	return metrics
}

// GetMetrics returns the initialized metrics
func GetMetrics() *PrometheusMetrics {
	return metrics
}

// PrometheusMiddleware is a Gin middleware that records HTTP metrics
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if metrics == nil {
			c.Next()
			return
		}
		metrics.observeRequest(c)
	}
}

func (m *PrometheusMetrics) observeRequest(c *gin.Context) {
	start := time.Now()
	c.Next()

	endpoint := c.FullPath()
	if endpoint == "" {
		endpoint = c.Request.URL.Path
	}
	status := strconv.Itoa(c.Writer.Status())
	m.HttpRequestsTotal.WithLabelValues(c.Request.Method, endpoint, status).Inc()
	m.HttpRequestDuration.WithLabelValues(c.Request.Method, endpoint).Observe(time.Since(start).Seconds())
}

func (m *PrometheusMetrics) RowsScanned(_ string, n int) {
	m.RewriteScanned.Add(float64(n))
}

func (m *PrometheusMetrics) RowUpdated(_ string, affected int64) {
	m.RewriteUpdated.Add(float64(affected))
}

func (m *PrometheusMetrics) RowFailed(_ string, reason string) {
	m.RewriteFailed.WithLabelValues(reason).Inc()
}

func (m *PrometheusMetrics) TableFinished(_ string, d time.Duration) {
	m.RewriteTableDur.Observe(d.Seconds())
}

func (m *PrometheusMetrics) CloneFinished(status string, d time.Duration) {
	m.ClonesTotal.WithLabelValues(status).Inc()
	m.CloneDuration.WithLabelValues(status).Observe(d.Seconds())
}

// UpdateDatabaseHealth records a health check result.
func (m *PrometheusMetrics) UpdateDatabaseHealth(r database.HealthCheckResult) {
	up := 0.0
	if r.Healthy() {
		up = 1.0
	}
	m.DatabaseUp.Set(up)
	m.ConnectionPoolInUse.Set(float64(r.Stats.InUse))
	m.ConnectionPoolIdle.Set(float64(r.Stats.Idle))
}
