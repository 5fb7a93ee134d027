// Package minio archives the failed records of a transfer run in an S3-compatible
// bucket so they can be inspected or retried later.
//
// Each archive is a single object holding zstd-compressed JSON lines, one per failed
// record, keyed by the run ID:
//
//	key, err := archive.ArchiveFailures(ctx, result)
//	...
//	src, err := archive.RetrySource(ctx, key)
//	retry := engine.Run(ctx, src, sink)
//
// Vectors survive the round trip bit for bit. Numeric properties are decoded as float64.
package minio
