package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	pushProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "push_processed_total",
			Help: "Total number of gateway push notifications processed",
		},
		[]string{"result"},
	)

	refundProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refund_processed_total",
			Help: "Total number of refund requests processed",
		},
		[]string{"status"},
	)

	captureProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capture_processed_total",
			Help: "Total number of capture requests processed",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpRequestDuration)
	prometheus.MustRegister(pushProcessedTotal)
	prometheus.MustRegister(refundProcessedTotal)
	prometheus.MustRegister(captureProcessedTotal)
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		duration := time.Since(start).Seconds()

		httpRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

func RecordPushProcessed(result string) {
	pushProcessedTotal.WithLabelValues(result).Inc()
}

func RecordRefundProcessed(status string) {
	refundProcessedTotal.WithLabelValues(status).Inc()
}

func RecordCaptureProcessed(status string) {
	captureProcessedTotal.WithLabelValues(status).Inc()
}
