package tracer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

type nopLogger struct{}

func (nopLogger) Info(string, error, ...map[string]interface{})  {}
func (nopLogger) Error(string, error, ...map[string]interface{}) {}

func TestCarrierRoundTrip(t *testing.T) {
	tr, err := NewClient(Config{ServiceName: "test"}, nopLogger{})
	require.NoError(t, err)
	defer func() { _ = tr.Shutdown(context.Background()) }()

	ctx, span := tr.StartSpan(context.Background(), "publish")
	tr.SetAttributes(span, map[string]interface{}{"records": 5, "collection": "NewCollection", "ratio": 0.5, "ok": true, "other": []int{1}})
	defer span.End()

	carrier := GetCarrier(ctx)
	require.Contains(t, carrier, "traceparent")

	restored := SetCarrierOnContext(context.Background(), carrier)
	sc := trace.SpanContextFromContext(restored)
	assert.True(t, sc.IsRemote())
	assert.Equal(t, span.SpanContext().TraceID(), sc.TraceID())
}

func TestShutdownNilTracer(t *testing.T) {
	var tr *Tracer
	assert.NoError(t, tr.Shutdown(context.Background()))
}
