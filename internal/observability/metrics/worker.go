package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/contract-analyzer/internal/core/domain"
)

// WorkerMetrics covers asynchronous analysis of uploaded contracts.
type WorkerMetrics struct {
	registry *prometheus.Registry

	analysisTotal    *prometheus.CounterVec
	analysisDuration *prometheus.HistogramVec
	analysisInFlight prometheus.Gauge
	clauses          *prometheus.HistogramVec
	riskFlags        *prometheus.CounterVec
	uploadLag        *prometheus.HistogramVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	analysisTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "contract",
			Subsystem: "worker",
			Name:      "analysis_total",
			Help:      "Contract analyses run from upload events, by outcome.",
		},
		[]string{"service", "status"},
	)
	analysisDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "contract",
			Subsystem: "worker",
			Name:      "analysis_duration_seconds",
			Help:      "Time to extract, segment, index and scan one contract, by outcome.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"service", "status"},
	)
	analysisInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "contract",
			Subsystem: "worker",
			Name:      "analysis_in_flight",
			Help:      "Contracts currently being analysed.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	clauses := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "contract",
			Subsystem: "worker",
			Name:      "clauses_per_contract",
			Help:      "Clauses produced by segmenting an uploaded contract.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500},
		},
		[]string{"service"},
	)
	riskFlags := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "contract",
			Subsystem: "worker",
			Name:      "risk_flags_total",
			Help:      "Risk flags raised on uploaded contracts, by tag.",
		},
		[]string{"service", "tag"},
	)
	uploadLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "contract",
			Subsystem: "worker",
			Name:      "upload_lag_seconds",
			Help:      "Delay between contract upload and the start of its analysis.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)

	registry.MustRegister(analysisTotal, analysisDuration, analysisInFlight, clauses, riskFlags, uploadLag)

	return &WorkerMetrics{
		registry:         registry,
		analysisTotal:    analysisTotal,
		analysisDuration: analysisDuration,
		analysisInFlight: analysisInFlight,
		clauses:          clauses,
		riskFlags:        riskFlags,
		uploadLag:        uploadLag,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartAnalysis() {
	m.analysisInFlight.Inc()
}

// FinishAnalysis records the outcome of one analysis. analysis is nil on error.
func (m *WorkerMetrics) FinishAnalysis(service string, duration time.Duration, analysis *domain.Analysis, err error) {
	m.analysisInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}
	m.analysisTotal.WithLabelValues(service, status).Inc()
	m.analysisDuration.WithLabelValues(service, status).Observe(duration.Seconds())

	if analysis == nil {
		return
	}
	m.clauses.WithLabelValues(service).Observe(float64(analysis.Clauses))
	for _, flag := range analysis.Flags {
		m.riskFlags.WithLabelValues(service, string(flag.Tag)).Inc()
	}
}

func (m *WorkerMetrics) ObserveUploadLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.uploadLag.WithLabelValues(service).Observe(lag.Seconds())
}
