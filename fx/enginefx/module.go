// Package enginefx provides an fx module that wires an engine adapter into
// an application, locating the engine automatically and shutting it down
// with the app.
package enginefx

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/openboard/enginebridge"
	"github.com/openboard/enginebridge/internal/stats"
	"github.com/openboard/enginebridge/internal/stats/logger"
)

// Module provides a *enginebridge.Adapter backed by an auto-detected
// engine. Requires a *zap.Logger to be provided.
var Module = fx.Module("enginebridge",
	fx.Provide(
		newStatsCollector,
		newAdapter,
	),
)

func newStatsCollector(log *zap.Logger) stats.Collector {
	return logger.New(log.Named("enginebridge.stats"))
}

// Params holds dependencies for creating the adapter.
type Params struct {
	fx.In

	Logger    *zap.Logger
	Collector stats.Collector
	Lifecycle fx.Lifecycle
}

func newAdapter(p Params) (*enginebridge.Adapter, error) {
	adapter, err := enginebridge.NewWithAutoDetection(
		enginebridge.WithLogger(p.Logger.Named("enginebridge")),
		enginebridge.WithStats(p.Collector),
	)
	if err != nil {
		return nil, err
	}

	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return adapter.Shutdown()
		},
	})

	return adapter, nil
}
