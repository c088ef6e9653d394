package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jslozanod/etl-workshop-1/ETL/models"
)

// Pipeline phases used as the phase label.
const (
	PhaseExtract   = "extract"
	PhaseTransform = "transform"
	PhaseLoad      = "load"
	PhaseReport    = "report"
)

// Drop stages used as the stage label.
const (
	StageTransform = "transform"
	StageLoad      = "load"
)

// Manager owns the ETL metrics and the registry they live on.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         *prometheus.Registry

	// Pipeline
	runs                  *prometheus.CounterVec
	rowsRead              prometheus.Counter
	rowsKept              prometheus.Counter
	rowsDropped           *prometheus.CounterVec
	factsInserted         prometheus.Counter
	dimensionRowsInserted *prometheus.CounterVec
	phaseDuration         *prometheus.HistogramVec
	lastSuccess           prometheus.Gauge

	// Dashboard
	kpiRefreshes     *prometheus.CounterVec
	websocketClients prometheus.Gauge
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

// NewManager creates a metrics manager. Without WithRegistry it registers on
// a fresh registry, never on the global default one.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "etl",
		subsystem:        "applications",
		histogramBuckets: prometheus.DefBuckets,
		constLabels:      map[string]string{},
	}

	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.runs = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "runs_total",
		Help:        "Pipeline runs by final status",
		ConstLabels: m.constLabels,
	}, []string{"status"})

	m.rowsRead = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "rows_read_total",
		Help:        "Source rows read by the extractor",
		ConstLabels: m.constLabels,
	})

	m.rowsKept = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "rows_kept_total",
		Help:        "Source rows that passed cleaning",
		ConstLabels: m.constLabels,
	})

	m.rowsDropped = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "rows_dropped_total",
		Help:        "Rows dropped by stage and reason",
		ConstLabels: m.constLabels,
	}, []string{"stage", "reason"})

	m.factsInserted = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "facts_inserted_total",
		Help:        "Rows inserted into fact_application",
		ConstLabels: m.constLabels,
	})

	m.dimensionRowsInserted = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "dimension_rows_inserted_total",
		Help:        "Rows created per dimension table",
		ConstLabels: m.constLabels,
	}, []string{"dimension"})

	m.phaseDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "phase_duration_seconds",
		Help:        "Duration of each pipeline phase",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}, []string{"phase"})

	m.lastSuccess = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "last_success_timestamp_seconds",
		Help:        "Unix time of the last successful run",
		ConstLabels: m.constLabels,
	})

	m.kpiRefreshes = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "kpi_refreshes_total",
		Help:        "KPI snapshot refreshes by result",
		ConstLabels: m.constLabels,
	}, []string{"result"})

	m.websocketClients = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "websocket_clients",
		Help:        "Connected dashboard websocket clients",
		ConstLabels: m.constLabels,
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "http_requests_total",
		Help:        "Dashboard HTTP requests by route, method and status code",
		ConstLabels: m.constLabels,
	}, []string{"route", "method", "status_code"})

	m.httpDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "http_request_duration_seconds",
		Help:        "Dashboard HTTP request duration",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}, []string{"route", "method"})
}

// Registry returns the registry the metrics are registered on.
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// ObservePhase records how long a pipeline phase took.
func (m *Manager) ObservePhase(phase string, d time.Duration) {
	m.phaseDuration.WithLabelValues(phase).Observe(d.Seconds())
}

// ObserveRun records the counts of a successful run.
func (m *Manager) ObserveRun(summary models.RunSummary) {
	m.runs.WithLabelValues(string(models.RunSuccess)).Inc()
	m.rowsRead.Add(float64(summary.Transform.RowsRead))
	m.rowsKept.Add(float64(summary.Transform.RowsKept))
	for reason, n := range summary.Transform.Dropped {
		m.rowsDropped.WithLabelValues(StageTransform, string(reason)).Add(float64(n))
	}
	for reason, n := range summary.Load.FactsDropped {
		m.rowsDropped.WithLabelValues(StageLoad, string(reason)).Add(float64(n))
	}
	for dim, n := range summary.Load.DimensionRowsInserted {
		m.dimensionRowsInserted.WithLabelValues(dim).Add(float64(n))
	}
	m.factsInserted.Add(float64(summary.Load.FactsInserted))
	m.lastSuccess.Set(float64(summary.FinishedAt.Unix()))
}

// RecordRunFailure counts a failed run.
func (m *Manager) RecordRunFailure() {
	m.runs.WithLabelValues(string(models.RunFailed)).Inc()
}

// RecordKPIRefresh counts a dashboard KPI refresh.
func (m *Manager) RecordKPIRefresh(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.kpiRefreshes.WithLabelValues(result).Inc()
}

// SetWebsocketClients sets the number of connected websocket clients.
func (m *Manager) SetWebsocketClients(n int) {
	m.websocketClients.Set(float64(n))
}

// ObserveHTTPRequest records one dashboard request.
func (m *Manager) ObserveHTTPRequest(route, method string, status int, d time.Duration) {
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route, method).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// WriteTextfile writes every metric to path for a node-exporter textfile
// collector. The file is replaced atomically.
func (m *Manager) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
