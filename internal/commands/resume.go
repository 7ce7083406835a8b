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

// ResumeCommand resumes paused playback.
type ResumeCommand struct {
	logger  *zap.Logger
	manager *audio.Manager
	status  *voicestatus.Publisher
}

func NewResumeCommand(logger *zap.Logger, manager *audio.Manager, status *voicestatus.Publisher) Command {
	return &ResumeCommand{
		logger:  logger,
		manager: manager,
		status:  status,
	}
}

func (c *ResumeCommand) Name() string {
	return "resume"
}

func (c *ResumeCommand) Description() string {
	return "Resume paused playback"
}

func (c *ResumeCommand) Options() []discord.CommandOption {
	return nil
}

func (c *ResumeCommand) Execute(ctx context.Context, s *session.Session, e *gateway.InteractionCreateEvent, data *discord.CommandInteraction) error {
	if e.GuildID == 0 {
		return respondError(s, e, c.logger, "This command can only be used in servers")
	}

	sess, ok := c.manager.Session(e.GuildID)
	if !ok || sess.CurrentTrack() == nil {
		return respondError(s, e, c.logger, "Nothing is playing in this server")
	}
	if !sess.Paused() {
		return respondError(s, e, c.logger, "Playback is not paused")
	}

	if err := sess.Pause(ctx, false); err != nil {
		c.logger.Error("Failed to resume playback", zap.Error(err), zap.Stringer("guild_id", e.GuildID))

		return respondError(s, e, c.logger, "Failed to resume playback")
	}

	// Resuming by hand also supersedes any pending teardown.
	sess.BumpCleanupToken()
	c.status.SetPlaying(sess.VoiceChannelID(), sess.CurrentTrack())

	return respond(s, e, "▶️ Resumed")
}
