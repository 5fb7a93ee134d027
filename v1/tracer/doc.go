// Package tracer configures OpenTelemetry tracing for the module.
//
// NewClient installs a global tracer provider, so packages that create their own
// tracers through otel.Tracer (the transfer engine, the qdrant client) report to it
// without extra wiring. Spans are exported over OTLP/HTTP when EnableExport is set.
//
//	t, err := tracer.NewClient(tracer.Config{ServiceName: "vecmigrate", EnableExport: true}, log)
//	ctx, span := t.StartSpan(ctx, "bootstrap")
//	defer span.End()
//
// GetCarrier and SetCarrierOnContext move the trace context across process
// boundaries; the rabbit publisher stores it in message headers.
package tracer
