package kafka

import (
	"context"

	"go.uber.org/fx"

	"github.com/Aleph-Alpha/vecmigrate/v1/observability"
)

// FXModule provides *RecordSource and *RecordSink. Each is created on first use and
// closed when the application stops.
var FXModule = fx.Module("kafka",
	fx.Provide(
		NewRecordSourceWithDI,
		NewRecordSinkWithDI,
	),
)

// KafkaParams groups the dependencies needed to create a source or sink.
type KafkaParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    Config
	Logger    Logger                 `optional:"true"`
	Observer  observability.Observer `optional:"true"`
}

// NewRecordSourceWithDI creates a RecordSource and closes its reader when the
// application stops. Offsets are only committed when Config.GroupID is set.
func NewRecordSourceWithDI(params KafkaParams) (*RecordSource, error) {
	src, err := NewRecordSource(params.Config, params.Logger)
	if err != nil {
		return nil, err
	}
	src.WithObserver(params.Observer)
	params.Lifecycle.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return src.Close()
		},
	})
	return src, nil
}

// NewRecordSinkWithDI creates a RecordSink and flushes and closes its writer when
// the application stops.
func NewRecordSinkWithDI(params KafkaParams) (*RecordSink, error) {
	sink, err := NewRecordSink(params.Config, params.Logger)
	if err != nil {
		return nil, err
	}
	sink.WithObserver(params.Observer)
	params.Lifecycle.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return sink.Close()
		},
	})
	return sink, nil
}
