package activity

import (
	"context"

	"github.com/diamondburned/arikawa/v3/session"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/muralianand12345/pepper-bot/internal/config"
)

// Module provides the activity monitor registry.
var Module = fx.Module("activity",
	fx.Provide(NewRegistryProvider),
)

// RegistryParams holds dependencies for NewRegistryProvider.
type RegistryParams struct {
	fx.In
	Session   *session.Session
	Destroyer Destroyer
	Cfg       *config.Config
	Logger    *zap.Logger
	LC        fx.Lifecycle
}

func NewRegistryProvider(params RegistryParams) *Registry {
	timing := params.Cfg.Timing
	r := NewRegistry(
		params.Session.Client,
		params.Destroyer,
		timing.ActivityCheck,
		timing.ActivityResponse,
		params.Logger,
	)

	params.LC.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			r.RemoveAll()
			return nil
		},
	})

	return r
}
