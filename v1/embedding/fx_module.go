package embedding

import (
	"context"

	"go.uber.org/fx"
)

// FXModule provides *Client from an embedding.Config and closes it on shutdown.
var FXModule = fx.Module("embedding",
	fx.Provide(NewClient),
	fx.Invoke(RegisterEmbeddingLifecycle),
)

// RegisterEmbeddingLifecycle closes the client when the application stops.
func RegisterEmbeddingLifecycle(lc fx.Lifecycle, client *Client) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})
}
