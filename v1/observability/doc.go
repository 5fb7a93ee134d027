// Package observability defines the hook components use to report the operations they
// perform.
//
// Every client in this module (transfer engine, qdrant, minio, kafka, rabbit) accepts an
// optional Observer and calls it once per finished operation with an OperationContext.
// The metrics package ships a Prometheus backed Observer; tests usually record the
// contexts in memory:
//
//	var seen []observability.OperationContext
//	obs := observability.ObserverFunc(func(ctx observability.OperationContext) {
//	    seen = append(seen, ctx)
//	})
//
// Several observers can be combined with Multi.
package observability
