// Package kafka streams transfer records through Apache Kafka topics.
//
// RecordSource consumes JSON records and plugs into the transfer engine as an
// unbounded, lazily read source. It implements transfer.Acknowledger: offsets of a
// consumer group are committed in source order only after the engine merged the
// batch holding the record, so a crashed bulk load resumes without losing records.
// Undecodable messages fail individually and are committed with the rest.
//
// RecordSink publishes batches to a topic keyed by record ID, for example to export a
// collection through a qdrant cursor.
//
// Message format:
//
//	{"id": "7c1e...", "properties": {"title": "Heat", "year": 1995}, "vectors": {"title_vector": [0.1, 0.2]}}
//
// The message key is used as the ID when the body has none.
//
// Basic usage:
//
//	src, err := kafka.NewRecordSource(kafka.Config{
//	    Brokers:     []string{"localhost:9092"},
//	    Topic:       "movies",
//	    GroupID:     "vecmigrate-loader",
//	    IdleTimeout: 30 * time.Second,
//	}, log)
//	if err != nil {
//	    return err
//	}
//	defer src.Close()
//
//	res := transfer.NewEngine(transfer.DefaultConfig()).Run(ctx, src, store)
package kafka
