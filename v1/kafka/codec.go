package kafka

import (
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/Aleph-Alpha/vecmigrate/v1/transfer"
)

// wireRecord is the JSON form of a record on the topic. The message key carries the
// ID when the body omits it.
type wireRecord struct {
	ID         string               `json:"id,omitempty"`
	Properties map[string]any       `json:"properties,omitempty"`
	Vectors    map[string][]float32 `json:"vectors,omitempty"`
}

func encodeRecord(rec transfer.Record) (kafka.Message, error) {
	body, err := json.Marshal(wireRecord{ID: rec.ID, Properties: rec.Properties, Vectors: rec.Vectors})
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode record %q: %w", rec.ID, err)
	}
	msg := kafka.Message{Value: body}
	if rec.ID != "" {
		msg.Key = []byte(rec.ID)
	}
	return msg, nil
}

func decodeRecord(msg kafka.Message) (transfer.Record, error) {
	var w wireRecord
	if err := json.Unmarshal(msg.Value, &w); err != nil {
		return transfer.Record{ID: string(msg.Key)}, fmt.Errorf("%w: partition %d offset %d: %v", ErrMalformedMessage, msg.Partition, msg.Offset, err)
	}
	if w.ID == "" {
		w.ID = string(msg.Key)
	}
	return transfer.Record{ID: w.ID, Properties: w.Properties, Vectors: w.Vectors}, nil
}
