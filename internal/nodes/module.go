package nodes

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/muralianand12345/pepper-bot/internal/audio"
	"github.com/muralianand12345/pepper-bot/internal/config"
	"github.com/muralianand12345/pepper-bot/internal/storage"
)

// Module provides the node registry.
var Module = fx.Module("nodes",
	fx.Provide(NewRegistryProvider),
)

// RegistryParams holds dependencies for NewRegistryProvider.
type RegistryParams struct {
	fx.In
	Store   *storage.Store
	Manager *audio.Manager
	Cfg     *config.Config
	Logger  *zap.Logger
	LC      fx.Lifecycle
}

// NewRegistryProvider builds the Registry and restores persisted private
// nodes on startup.
func NewRegistryProvider(params RegistryParams) *Registry {
	r := NewRegistry(params.Store, params.Manager, params.Cfg.Timing, params.Logger)

	params.LC.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := r.RestoreNodes(context.Background()); err != nil {
					params.Logger.Error("Node restore failed", zap.Error(err))
				}
			}()

			return nil
		},
	})

	return r
}
