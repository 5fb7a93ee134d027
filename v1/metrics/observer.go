package metrics

import (
	"github.com/Aleph-Alpha/vecmigrate/v1/observability"
)

// Observer returns an observability.Observer that records every reported operation.
func (m *Metrics) Observer() observability.Observer {
	return observability.ObserverFunc(m.ObserveOperation)
}

// ObserveOperation records one operation. Transfer "submit_batch" operations feed
// the batch size histogram and "run" operations update the per-run metrics.
func (m *Metrics) ObserveOperation(ctx observability.OperationContext) {
	status := "success"
	if ctx.Error != nil {
		status = "error"
	}

	m.operationsTotal.WithLabelValues(ctx.Component, ctx.Operation, status).Inc()
	m.operationDuration.WithLabelValues(ctx.Component, ctx.Operation).Observe(ctx.Duration.Seconds())
	if ctx.Size > 0 {
		m.recordsTotal.WithLabelValues(ctx.Component, ctx.Operation).Add(float64(ctx.Size))
	}

	if ctx.Component == "transfer" && ctx.Operation == "submit_batch" {
		m.batchRecords.WithLabelValues(ctx.Resource).Observe(float64(ctx.Size))
	}
	if ctx.Component == "transfer" && ctx.Operation == "run" {
		runStatus, _ := ctx.Metadata["status"].(string)
		m.transferRuns.WithLabelValues(ctx.Resource, runStatus).Inc()
		if failures, ok := ctx.Metadata["failure_count"].(int); ok {
			m.transferFailures.WithLabelValues(ctx.Resource).Set(float64(failures))
		}
	}
}
