package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopassist_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "endpoint", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shopassist_http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint", "status"},
	)
	chatCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopassist_chat_api_calls_total",
			Help: "Outbound chat API calls by endpoint and outcome.",
		},
		[]string{"endpoint", "outcome"},
	)
	chatCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shopassist_chat_api_call_duration_seconds",
			Help:    "Outbound chat API call latency.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"endpoint"},
	)
	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "shopassist_active_sessions",
			Help: "Conversation stores currently held in memory.",
		},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal, httpRequestDuration, chatCallsTotal, chatCallDuration, activeSessions)
}

// RecordRequest records metrics for one inbound HTTP request.
func RecordRequest(method, endpoint string, statusCode int, duration time.Duration) {
	status := classifyStatus(statusCode)
	httpRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint, status).Observe(duration.Seconds())
}

// RecordChatCall records one outbound chat API call.
func RecordChatCall(endpoint string, err error, duration time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	chatCallsTotal.WithLabelValues(endpoint, outcome).Inc()
	chatCallDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// SetActiveSessions publishes the number of live conversation stores.
func SetActiveSessions(n int) {
	activeSessions.Set(float64(n))
}

func classifyStatus(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return "2xx"
	case statusCode >= 300 && statusCode < 400:
		return "3xx"
	case statusCode >= 400 && statusCode < 500:
		return "4xx"
	case statusCode >= 500 && statusCode < 600:
		return "5xx"
	}
	return "unknown"
}

// MetricsHandler exposes prometheus metrics.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
