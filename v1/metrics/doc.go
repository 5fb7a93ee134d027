// Package metrics exposes Prometheus metrics for the module.
//
// NewMetrics creates an isolated registry whose metrics all carry a constant
// "service" label, plus an HTTP server serving it at the configured address.
//
// The registry is fed through the observability hook: pass Observer() to the
// transfer engine and to the storage clients and every operation is counted and
// timed:
//
//	m := metrics.NewMetrics(metrics.Config{
//	    Address:                 ":9090",
//	    ServiceName:             "vecmigrate",
//	    EnableDefaultCollectors: true,
//	})
//	engine := transfer.NewEngine(cfg, transfer.WithObserver(m.Observer()))
//
// Exported series (namespace "vecmigrate" by default):
//
//   - operations_total{component,operation,status}
//   - operation_duration_seconds{component,operation}
//   - records_total{component,operation}
//   - transfer_runs_total{name,status}
//   - transfer_last_failures{name}
//
// Additional metrics can be registered with CreateCounter, CreateHistogram and
// CreateGauge.
package metrics
