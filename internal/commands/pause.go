package commands

import (
	"context"

	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/diamondburned/arikawa/v3/gateway"
	"github.com/diamondburned/arikawa/v3/session"
	"go.uber.org/zap"

	"github.com/muralianand12345/pepper-bot/internal/audio"
	"github.com/muralianand12345/pepper-bot/internal/voicestatus"
)

// PauseCommand pauses the current track.
type PauseCommand struct {
	logger  *zap.Logger
	manager *audio.Manager
	status  *voicestatus.Publisher
}

func NewPauseCommand(logger *zap.Logger, manager *audio.Manager, status *voicestatus.Publisher) Command {
	return &PauseCommand{
		logger:  logger,
		manager: manager,
		status:  status,
	}
}

func (c *PauseCommand) Name() string {
	return "pause"
}

func (c *PauseCommand) Description() string {
	return "Pause the current track"
}

func (c *PauseCommand) Options() []discord.CommandOption {
	return nil
}

func (c *PauseCommand) Execute(ctx context.Context, s *session.Session, e *gateway.InteractionCreateEvent, data *discord.CommandInteraction) error {
	if e.GuildID == 0 {
		return respondError(s, e, c.logger, "This command can only be used in servers")
	}

	sess, ok := c.manager.Session(e.GuildID)
	if !ok || sess.CurrentTrack() == nil {
		return respondError(s, e, c.logger, "Nothing is playing in this server")
	}
	if sess.Paused() {
		return respondError(s, e, c.logger, "Playback is already paused")
	}

	if err := sess.Pause(ctx, true); err != nil {
		c.logger.Error("Failed to pause playback", zap.Error(err), zap.Stringer("guild_id", e.GuildID))

		return respondError(s, e, c.logger, "Failed to pause playback")
	}

	c.status.SetPaused(sess.VoiceChannelID(), sess.CurrentTrack())

	return respond(s, e, "⏸ Paused")
}
