package cleanup

import (
	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/diamondburned/arikawa/v3/session"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/muralianand12345/pepper-bot/internal/audio"
	"github.com/muralianand12345/pepper-bot/internal/config"
	"github.com/muralianand12345/pepper-bot/internal/nowplaying"
	"github.com/muralianand12345/pepper-bot/internal/storage"
	"github.com/muralianand12345/pepper-bot/internal/voicestatus"
)

// Module provides the cleanup coordinator.
var Module = fx.Module("cleanup",
	fx.Provide(
		NewListenerCounter,
		NewCoordinatorProvider,
	),
)

// CoordinatorParams holds dependencies for NewCoordinatorProvider.
type CoordinatorParams struct {
	fx.In
	Manager   *audio.Manager
	Store     *storage.Store
	Session   *session.Session
	Listeners ListenerCounter
	Status    *voicestatus.Publisher
	Panels    *nowplaying.Registry
	Cfg       *config.Config
	Logger    *zap.Logger
}

func NewCoordinatorProvider(params CoordinatorParams) *Coordinator {
	return NewCoordinator(
		managerSessions{params.Manager},
		params.Store,
		params.Listeners,
		params.Session.Client,
		params.Status,
		panelRegistry{params.Panels},
		params.Cfg.Timing.CleanupDelay,
		params.Logger,
	)
}

// managerSessions adapts *audio.Manager to the SessionProvider interface.
type managerSessions struct {
	m *audio.Manager
}

func (a managerSessions) Session(guildID discord.GuildID) (Session, bool) {
	s, ok := a.m.Session(guildID)
	if !ok {
		return nil, false
	}
	return s, true
}

func (a managerSessions) DestroySession(guildID discord.GuildID) {
	a.m.DestroySession(guildID)
}

// panelRegistry adapts the now-playing registry to the ControlPanel
// interface.
type panelRegistry struct {
	reg *nowplaying.Registry
}

func (p panelRegistry) DisableControls(guildID discord.GuildID) {
	if presenter, ok := p.reg.Get(guildID); ok {
		presenter.DisableControls()
	}
}
