package commands

import (
	"context"

	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/diamondburned/arikawa/v3/gateway"
	"github.com/diamondburned/arikawa/v3/session"
	"go.uber.org/zap"

	"github.com/muralianand12345/pepper-bot/internal/storage"
)

// AlwaysOnCommand toggles 24/7 mode: with it on, the bot stays in the voice
// channel even when everyone leaves.
type AlwaysOnCommand struct {
	logger *zap.Logger
	store  *storage.Store
}

func NewAlwaysOnCommand(logger *zap.Logger, store *storage.Store) Command {
	return &AlwaysOnCommand{
		logger: logger,
		store:  store,
	}
}

func (c *AlwaysOnCommand) Name() string {
	return "247"
}

func (c *AlwaysOnCommand) Description() string {
	return "Toggle 24/7 mode (stay in voice when the channel empties)"
}

func (c *AlwaysOnCommand) Options() []discord.CommandOption {
	return nil
}

func (c *AlwaysOnCommand) Execute(ctx context.Context, s *session.Session, e *gateway.InteractionCreateEvent, data *discord.CommandInteraction) error {
	if e.GuildID == 0 {
		return respondError(s, e, c.logger, "This command can only be used in servers")
	}

	guildID := e.GuildID.String()
	enabled := !c.store.GuildAlwaysOn(ctx, guildID)

	if err := c.store.SetGuildAlwaysOn(ctx, guildID, enabled); err != nil {
		c.logger.Error("Failed to toggle 24/7 mode", zap.String("guildID", guildID), zap.Error(err))

		return respondError(s, e, c.logger, "Failed to toggle 24/7 mode")
	}

	if enabled {
		return respond(s, e, "🔒 24/7 mode enabled, I'll stay in the voice channel even when it's empty")
	}

	return respond(s, e, "🔓 24/7 mode disabled")
}
