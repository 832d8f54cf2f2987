package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/contract-analyzer/internal/core/domain"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	askRequestsTotal  *prometheus.CounterVec
	askNoEvidence     *prometheus.CounterVec
	askDegradedTotal  *prometheus.CounterVec
	askEvidence       *prometheus.HistogramVec
	askDuration       *prometheus.HistogramVec
	analysisTotal     *prometheus.CounterVec
	analysisClauses   *prometheus.HistogramVec
	riskFlagsTotal    *prometheus.CounterVec
	rateLimitedTotal  *prometheus.CounterVec
	backpressureTotal *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "contract",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "contract",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "contract",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	askRequestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "contract",
			Subsystem: "ask",
			Name:      "requests_total",
			Help:      "Total answered questions.",
		},
		[]string{"service", "endpoint"},
	)
	askNoEvidence := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "contract",
			Subsystem: "ask",
			Name:      "no_evidence_total",
			Help:      "Total questions answered without retrieved clauses.",
		},
		[]string{"service", "endpoint"},
	)
	askDegradedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "contract",
			Subsystem: "ask",
			Name:      "degraded_total",
			Help:      "Total questions answered with the evidence-only fallback.",
		},
		[]string{"service", "endpoint"},
	)
	askEvidence := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "contract",
			Subsystem: "ask",
			Name:      "evidence_clauses",
			Help:      "Distribution of retrieved clauses per answered question.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service", "endpoint"},
	)
	askDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "contract",
			Subsystem: "ask",
			Name:      "duration_seconds",
			Help:      "Question answering duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "endpoint"},
	)
	analysisTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "contract",
			Subsystem: "analysis",
			Name:      "runs_total",
			Help:      "Total completed analysis or index runs by endpoint.",
		},
		[]string{"service", "endpoint"},
	)
	analysisClauses := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "contract",
			Subsystem: "analysis",
			Name:      "clauses",
			Help:      "Distribution of clauses per indexed document.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"service", "endpoint"},
	)
	riskFlagsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "contract",
			Subsystem: "risk",
			Name:      "flags_total",
			Help:      "Total risk flags raised by tag.",
		},
		[]string{"service", "tag"},
	)
	rateLimitedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "contract",
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Total requests rejected by the rate limiter.",
		},
		[]string{"service"},
	)
	backpressureTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "contract",
			Subsystem: "http",
			Name:      "backpressure_rejected_total",
			Help:      "Total requests rejected because the server was saturated.",
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		askRequestsTotal,
		askNoEvidence,
		askDegradedTotal,
		askEvidence,
		askDuration,
		analysisTotal,
		analysisClauses,
		riskFlagsTotal,
		rateLimitedTotal,
		backpressureTotal,
	)

	return &HTTPServerMetrics{
		registry:          registry,
		requestTotal:      requestTotal,
		requestDuration:   requestDuration,
		requestInFlight:   requestInFlight,
		askRequestsTotal:  askRequestsTotal,
		askNoEvidence:     askNoEvidence,
		askDegradedTotal:  askDegradedTotal,
		askEvidence:       askEvidence,
		askDuration:       askDuration,
		analysisTotal:     analysisTotal,
		analysisClauses:   analysisClauses,
		riskFlagsTotal:    riskFlagsTotal,
		rateLimitedTotal:  rateLimitedTotal,
		backpressureTotal: backpressureTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// normalizePath keeps label cardinality bounded by collapsing document ids.
func normalizePath(path string) string {
	rest, ok := strings.CutPrefix(path, "/v1/documents/")
	if !ok || rest == "" {
		return path
	}
	_, action, found := strings.Cut(rest, "/")
	if !found {
		return "/v1/documents/{document_id}"
	}
	return "/v1/documents/{document_id}/" + action
}

func (m *HTTPServerMetrics) RecordAskObservation(service, endpoint string, evidence int, degraded bool, duration time.Duration) {
	m.askRequestsTotal.WithLabelValues(service, endpoint).Inc()
	m.askEvidence.WithLabelValues(service, endpoint).Observe(float64(evidence))
	m.askDuration.WithLabelValues(service, endpoint).Observe(duration.Seconds())
	if evidence == 0 {
		m.askNoEvidence.WithLabelValues(service, endpoint).Inc()
	}
	if degraded {
		m.askDegradedTotal.WithLabelValues(service, endpoint).Inc()
	}
}

func (m *HTTPServerMetrics) RecordAnalysis(service, endpoint string, clauses int) {
	m.analysisTotal.WithLabelValues(service, endpoint).Inc()
	m.analysisClauses.WithLabelValues(service, endpoint).Observe(float64(clauses))
}

func (m *HTTPServerMetrics) RecordRiskFlags(service string, flags []domain.RiskFlag) {
	for _, f := range flags {
		m.riskFlagsTotal.WithLabelValues(service, string(f.Tag)).Inc()
	}
}

func (m *HTTPServerMetrics) RecordRateLimited(service string) {
	m.rateLimitedTotal.WithLabelValues(service).Inc()
}

func (m *HTTPServerMetrics) RecordBackpressure(service string) {
	m.backpressureTotal.WithLabelValues(service).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}
