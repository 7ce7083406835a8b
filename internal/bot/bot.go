// Package bot wires the Discord gateway to the playback engine: it dispatches
// slash commands and button presses, feeds voice events into sessions, and
// fans playback events out to the presentation components.
package bot

import (
	"context"
	"fmt"

	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/diamondburned/arikawa/v3/gateway"
	"github.com/diamondburned/arikawa/v3/session"
	"github.com/diamondburned/arikawa/v3/state"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/muralianand12345/pepper-bot/internal/activity"
	"github.com/muralianand12345/pepper-bot/internal/audio"
	"github.com/muralianand12345/pepper-bot/internal/cleanup"
	"github.com/muralianand12345/pepper-bot/internal/commands"
	"github.com/muralianand12345/pepper-bot/internal/config"
	"github.com/muralianand12345/pepper-bot/internal/nowplaying"
	"github.com/muralianand12345/pepper-bot/internal/voicestatus"
)

// Bot represents the Discord bot.
type Bot struct {
	session    *session.Session
	state      *state.State
	config     *config.Config
	cmdManager *commands.CommandManager
	logger     *zap.Logger

	manager    *audio.Manager
	presenters *nowplaying.Registry
	monitors   *activity.Registry
	status     *voicestatus.Publisher
	cleanup    *cleanup.Coordinator
	listeners  cleanup.ListenerCounter
}

// NewBotParameters holds dependencies for NewBot.
type NewBotParameters struct {
	fx.In

	Cfg        *config.Config
	S          *session.Session
	St         *state.State
	CmdManager *commands.CommandManager
	Logger     *zap.Logger

	Manager    *audio.Manager
	Presenters *nowplaying.Registry
	Monitors   *activity.Registry
	Status     *voicestatus.Publisher
	Cleanup    *cleanup.Coordinator
	Listeners  cleanup.ListenerCounter
}

// NewBot creates the Bot, registers its gateway handlers and binds the
// playback engine's event fan-out.
func NewBot(params NewBotParameters) (*Bot, error) {
	if params.S == nil {
		return nil, fmt.Errorf("session provided to NewBot is nil")
	}
	if params.Cfg == nil {
		return nil, fmt.Errorf("config provided to NewBot is nil")
	}

	b := &Bot{
		session:    params.S,
		state:      params.St,
		config:     params.Cfg,
		cmdManager: params.CmdManager,
		logger:     params.Logger,
		manager:    params.Manager,
		presenters: params.Presenters,
		monitors:   params.Monitors,
		status:     params.Status,
		cleanup:    params.Cleanup,
		listeners:  params.Listeners,
	}

	params.Manager.SetHandler(&engine{
		logger:     params.Logger,
		presenters: params.Presenters,
		monitors:   params.Monitors,
		status:     params.Status,
		cleanup:    params.Cleanup,
	})

	params.S.AddHandler(func(e *gateway.InteractionCreateEvent) {
		b.handleInteraction(context.Background(), e)
	})
	params.S.AddHandler(func(e *gateway.VoiceStateUpdateEvent) {
		b.handleVoiceStateUpdate(e)
	})
	params.S.AddHandler(func(e *gateway.VoiceServerUpdateEvent) {
		b.handleVoiceServerUpdate(e)
	})

	params.Logger.Info("Bot created")

	return b, nil
}

// Start registers slash commands for the configured guilds. Session opening
// is handled by the Fx lifecycle.
func (b *Bot) Start(ctx context.Context) error {
	var guildIDs []discord.GuildID
	for _, idStr := range b.config.Discord.GuildIDs {
		sf, err := discord.ParseSnowflake(idStr)
		if err != nil {
			b.logger.Error("Failed to parse guild ID", zap.String("guildID", idStr), zap.Error(err))

			continue
		}
		guildIDs = append(guildIDs, discord.GuildID(sf))
	}

	if len(guildIDs) == 0 {
		b.logger.Warn("No guild IDs configured, skipping command registration")

		return nil
	}

	b.cmdManager.RegisterCommands(guildIDs)

	return nil
}

// Stop handles bot-specific shutdown. Session closing and component teardown
// are handled by the Fx lifecycle.
func (b *Bot) Stop(ctx context.Context) error {
	b.logger.Info("Bot stopping")

	return nil
}
