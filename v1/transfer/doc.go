// Package transfer implements the batch transfer engine: it pulls records from a
// Source, groups them into bounded batches, submits each batch to a Sink and reports
// per-record outcomes in a single Result.
//
// # Overview
//
// The engine is used for two jobs:
//
//   - bulk loading fresh records (an in-memory slice or a Kafka topic) into a collection
//   - migrating stored records, with their vectors, from one collection to another
//
// Records are pulled lazily, at most MaxBatchSize at a time, so sources larger than
// memory are fine.
//
// # Outcomes
//
// A run ends in one of four states:
//
//   - StatusExhausted: the source returned io.EOF and every batch was merged
//   - StatusThresholdTripped: cumulative failures exceeded ErrorThreshold
//   - StatusFatal: the source was unreadable, the destination was unreachable before
//     any record was stored, or records exposed inconsistent vector slots
//   - StatusCancelled: the caller cancelled the context
//
// Malformed records, records rejected by the sink and whole rejected batches become
// entries of Result.Failures, in source order. A fatal run reports SuccessCount 0 and
// a single synthetic failure; Result.Committed keeps the number stored before the abort.
// The engine never retries; FailedRecords returns the records to feed a retry run.
//
// # Basic Usage
//
//	engine := transfer.NewEngine(transfer.Config{
//	    MaxBatchSize:   100,
//	    ErrorThreshold: 10,
//	}, transfer.WithLogger(log), transfer.WithName("bulk_load"))
//
//	res := engine.Run(ctx, transfer.NewSliceSource(records), sink)
//	if !res.OK() {
//	    log.Warn("load incomplete", res.Err, nil)
//	}
//
// # Migration
//
// SelectVector wraps a source so that every record carries exactly one named vector:
//
//	src := transfer.SelectVector(cursor, transfer.VectorSelection{
//	    Priority: []string{"title_vector"},
//	})
//	res := engine.Run(ctx, src, sink)
//
// # Concurrency
//
// With MaxInFlight > 1 several batches are submitted concurrently while a single
// goroutine keeps pulling. Results are merged in source order. Every submission is
// bounded by SubmitTimeout; a timeout fails the whole batch.
package transfer
