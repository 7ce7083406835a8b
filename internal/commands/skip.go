package commands

import (
	"context"

	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/diamondburned/arikawa/v3/gateway"
	"github.com/diamondburned/arikawa/v3/session"
	"go.uber.org/zap"

	"github.com/muralianand12345/pepper-bot/internal/audio"
)

// SkipCommand skips to the next queued track.
type SkipCommand struct {
	logger  *zap.Logger
	manager *audio.Manager
}

func NewSkipCommand(logger *zap.Logger, manager *audio.Manager) Command {
	return &SkipCommand{
		logger:  logger,
		manager: manager,
	}
}

func (c *SkipCommand) Name() string {
	return "skip"
}

func (c *SkipCommand) Description() string {
	return "Skip the current track"
}

func (c *SkipCommand) Options() []discord.CommandOption {
	return nil
}

func (c *SkipCommand) Execute(ctx context.Context, s *session.Session, e *gateway.InteractionCreateEvent, data *discord.CommandInteraction) error {
	if e.GuildID == 0 {
		return respondError(s, e, c.logger, "This command can only be used in servers")
	}

	sess, ok := c.manager.Session(e.GuildID)
	if !ok {
		return respondError(s, e, c.logger, "Nothing is playing in this server")
	}

	track := sess.CurrentTrack()
	if track == nil {
		return respondError(s, e, c.logger, "Nothing is playing in this server")
	}

	if err := sess.Skip(ctx); err != nil {
		c.logger.Error("Failed to skip track", zap.Error(err), zap.Stringer("guild_id", e.GuildID))

		return respondError(s, e, c.logger, "Failed to skip the current track")
	}

	return respond(s, e, "⏭ Skipped **"+track.Title+"**")
}
