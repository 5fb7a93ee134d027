package generative

import (
	"context"

	"go.uber.org/fx"
)

// FXModule provides *Client from a generative.Config.
var FXModule = fx.Module("generative",
	fx.Provide(NewClient),
	fx.Invoke(RegisterGenerativeLifecycle),
)

// RegisterGenerativeLifecycle releases idle HTTP connections when the application stops.
func RegisterGenerativeLifecycle(lc fx.Lifecycle, client *Client) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})
}
