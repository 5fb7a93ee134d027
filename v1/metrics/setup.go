package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultNamespace = "vecmigrate"

// Metrics owns the Prometheus registry, the HTTP server exposing it and the
// operation metrics fed by Observer.
type Metrics struct {
	// Server serves /metrics.
	Server *http.Server

	// Registry holds every metric of the service. Each Metrics has its own registry.
	Registry *prometheus.Registry

	registerer prometheus.Registerer
	namespace  string

	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	recordsTotal      *prometheus.CounterVec
	transferRuns      *prometheus.CounterVec
	transferFailures  *prometheus.GaugeVec
	batchRecords      *prometheus.HistogramVec
}

// NewMetrics creates a dedicated registry wrapped with a constant "service" label,
// registers the operation metrics and prepares the HTTP server.
//
// Example:
//
//	m := metrics.NewMetrics(metrics.Config{Address: ":9090", ServiceName: "vecmigrate"})
//	engine := transfer.NewEngine(cfg, transfer.WithObserver(m.Observer()))
func NewMetrics(cfg Config) *Metrics {
	registry := prometheus.NewRegistry()

	namespace := cfg.Namespace
	if namespace == "" {
		namespace = defaultNamespace
	}

	// All metrics carry service="<cfg.ServiceName>".
	wrapped := prometheus.WrapRegistererWith(
		prometheus.Labels{"service": cfg.ServiceName},
		registry,
	)

	m := &Metrics{
		Registry:   registry,
		registerer: wrapped,
		namespace:  namespace,
	}

	m.operationsTotal = createCounterVec(namespace, "operations_total",
		"Total number of operations performed, by component and outcome",
		[]string{"component", "operation", "status"})
	m.operationDuration = createHistogramVec(namespace, "operation_duration_seconds",
		"Duration of operations in seconds",
		[]string{"component", "operation"}, prometheus.DefBuckets)
	m.recordsTotal = createCounterVec(namespace, "records_total",
		"Number of records or bytes handled by operations",
		[]string{"component", "operation"})

	wrapped.MustRegister(
		m.operationsTotal,
		m.operationDuration,
		m.recordsTotal,
	)

	m.transferRuns = m.CreateCounter("transfer_runs_total",
		"Finished transfer runs by engine name and terminal status",
		[]string{"name", "status"})
	m.transferFailures = m.CreateGauge("transfer_last_failures",
		"Failures reported by the most recent transfer run",
		[]string{"name"})
	m.batchRecords = m.CreateHistogram("transfer_batch_records",
		"Records per submitted batch by engine name",
		[]string{"name"}, prometheus.ExponentialBuckets(1, 2, 10))

	if cfg.EnableDefaultCollectors {
		wrapped.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			collectors.NewBuildInfoCollector(),
		)
	}

	m.Server = &http.Server{
		Addr:    cfg.Address,
		Handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}
	return m
}
