// Package logger provides structured logging on top of zap.
//
// Every entry is JSON encoded and carries a timestamp, the caller, the process ID and
// the service name. Messages are logged with an optional error and any number of
// field maps:
//
//	log := logger.NewLoggerClient(logger.Config{
//	    Level:         logger.Info,
//	    ServiceName:   "vecmigrate",
//	    EnableTracing: true,
//	})
//
//	log.Info("Migration started", nil, map[string]interface{}{
//	    "source": "OriginalCollection",
//	    "target": "NewCollection",
//	})
//
//	log.ErrorWithContext(ctx, "Batch rejected", err, map[string]interface{}{
//	    "batch_index": 3,
//	})
//
// With EnableTracing, the *WithContext methods add trace_id and span_id taken from
// the OpenTelemetry span stored in the context.
//
// Components accept the Logger interface; FXModule provides both *LoggerClient and
// Logger.
package logger
