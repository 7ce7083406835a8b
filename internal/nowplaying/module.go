package nowplaying

import (
	"context"
	"errors"

	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/diamondburned/arikawa/v3/state"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/muralianand12345/pepper-bot/internal/config"
)

// Module provides the now-playing presenter registry.
var Module = fx.Module("nowplaying",
	fx.Provide(NewRegistryProvider),
)

// RegistryParams holds dependencies for NewRegistryProvider.
type RegistryParams struct {
	fx.In
	State  *state.State
	Cfg    *config.Config
	Logger *zap.Logger
	LC     fx.Lifecycle
}

// NewRegistryProvider builds the Registry on top of the Discord REST client,
// resolving the bot's user ID lazily once the gateway is open.
func NewRegistryProvider(params RegistryParams) *Registry {
	botID := func() (discord.UserID, error) {
		me, err := params.State.Me()
		if err != nil {
			return 0, err
		}
		if me == nil {
			return 0, errors.New("bot user not available")
		}
		return me.ID, nil
	}

	timing := params.Cfg.Timing
	r := NewRegistry(
		params.State.Client,
		botID,
		timing.NowPlayingInterval,
		timing.NowPlayingMinGap,
		timing.RateLimitBackoff,
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
