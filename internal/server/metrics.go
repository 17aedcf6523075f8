package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pantrysnap_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pantrysnap_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Scan processing metrics
	scanRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pantrysnap_scan_requests_total",
			Help: "Total number of scan requests",
		},
		[]string{"type", "status"}, // type: image, pdf, text, websocket_image, websocket_pdf
	)

	scanDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pantrysnap_scan_duration_seconds",
			Help:    "Scan processing duration in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 25, 50, 100},
		},
		[]string{"type"},
	)

	scanTextLength = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pantrysnap_scan_text_length",
			Help:    "Length of recognized text",
			Buckets: []float64{0, 10, 50, 100, 500, 1000, 5000, 10000, 50000},
		},
		[]string{"type"},
	)

	ingredientsParsed = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pantrysnap_ingredients_parsed",
			Help:    "Number of ingredient tokens parsed per scan",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
		},
		[]string{"type"},
	)

	// Circuit breaker metrics
	breakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pantrysnap_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"from", "to"},
	)

	// Rate limiting metrics
	rateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pantrysnap_rate_limit_hits_total",
			Help: "Total number of rate limit hits",
		},
		[]string{"type"}, // type: minute, hour, requests, data
	)

	// File upload metrics
	uploadSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pantrysnap_upload_size_bytes",
			Help:    "Size of uploaded files in bytes",
			Buckets: []float64{1024, 10 * 1024, 100 * 1024, 1024 * 1024, 10 * 1024 * 1024, 50 * 1024 * 1024},
		},
	)

	// WebSocket metrics
	websocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pantrysnap_websocket_active_connections",
			Help: "Number of active WebSocket connections",
		},
	)

	websocketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pantrysnap_websocket_messages_total",
			Help: "Total number of WebSocket messages",
		},
		[]string{"direction"}, // direction: sent, received
	)
)

// recordScan records the common per-scan metrics for one result.
func recordScan(scanType string, textLen, tokenCount int, seconds float64) {
	scanRequestsTotal.WithLabelValues(scanType, "success").Inc()
	scanDuration.WithLabelValues(scanType).Observe(seconds)
	scanTextLength.WithLabelValues(scanType).Observe(float64(textLen))
	ingredientsParsed.WithLabelValues(scanType).Observe(float64(tokenCount))
}
