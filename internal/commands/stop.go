package commands

import (
	"context"

	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/diamondburned/arikawa/v3/gateway"
	"github.com/diamondburned/arikawa/v3/session"
	"go.uber.org/zap"

	"github.com/muralianand12345/pepper-bot/internal/audio"
	"github.com/muralianand12345/pepper-bot/internal/cleanup"
)

// StopCommand stops playback and disconnects the bot.
type StopCommand struct {
	logger  *zap.Logger
	manager *audio.Manager
	cleanup *cleanup.Coordinator
}

func NewStopCommand(logger *zap.Logger, manager *audio.Manager, coordinator *cleanup.Coordinator) Command {
	return &StopCommand{
		logger:  logger,
		manager: manager,
		cleanup: coordinator,
	}
}

func (c *StopCommand) Name() string {
	return "stop"
}

func (c *StopCommand) Description() string {
	return "Stop playback and leave the voice channel"
}

func (c *StopCommand) Options() []discord.CommandOption {
	return nil
}

func (c *StopCommand) Execute(ctx context.Context, s *session.Session, e *gateway.InteractionCreateEvent, data *discord.CommandInteraction) error {
	if e.GuildID == 0 {
		return respondError(s, e, c.logger, "This command can only be used in servers")
	}

	if _, ok := c.manager.Session(e.GuildID); !ok {
		return respondError(s, e, c.logger, "Nothing is playing in this server")
	}

	// The interaction response is the user-facing notice, so teardown itself
	// stays silent.
	c.cleanup.DestroySession(e.GuildID, "")

	return respond(s, e, "⏹ Stopped playback and left the voice channel")
}
