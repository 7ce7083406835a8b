package bot

import (
	"context"

	"github.com/diamondburned/arikawa/v3/api"
	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/diamondburned/arikawa/v3/gateway"
	"github.com/diamondburned/arikawa/v3/utils/json/option"
	"go.uber.org/zap"

	"github.com/muralianand12345/pepper-bot/internal/activity"
	"github.com/muralianand12345/pepper-bot/internal/nowplaying"
)

func (b *Bot) handleInteraction(ctx context.Context, e *gateway.InteractionCreateEvent) {
	switch data := e.Data.(type) {
	case *discord.CommandInteraction:
		b.handleCommand(ctx, e, data)
	case *discord.ButtonInteraction:
		b.handleButton(ctx, e, data)
	default:
		b.logger.Debug("Unhandled interaction type", zap.Any("type", e.Data))
	}
}

func (b *Bot) handleCommand(ctx context.Context, e *gateway.InteractionCreateEvent, data *discord.CommandInteraction) {
	b.logger.Info("Received slash command",
		zap.String("commandName", data.Name),
		zap.Stringer("user", e.SenderID()))

	cmd, ok := b.cmdManager.GetCommand(data.Name)
	if !ok {
		b.logger.Warn("Unknown command", zap.String("commandName", data.Name))
		err := b.session.RespondInteraction(e.ID, e.Token, api.InteractionResponse{
			Type: api.MessageInteractionWithSource,
			Data: &api.InteractionResponseData{
				Content: option.NewNullableString("Command not found."),
				Flags:   discord.EphemeralMessage,
			},
		})
		if err != nil {
			b.logger.Error("Failed to respond to unknown command", zap.Error(err))
		}

		return
	}

	if err := cmd.Execute(ctx, b.session, e, data); err != nil {
		b.logger.Error("Error executing command",
			zap.String("commandName", data.Name), zap.Error(err))
	}
}

func (b *Bot) handleButton(ctx context.Context, e *gateway.InteractionCreateEvent, data *discord.ButtonInteraction) {
	if e.GuildID == 0 {
		return
	}

	// Buttons act on shared state the presenters re-render, so an empty
	// deferred update keeps the interaction itself quiet.
	ack := func() {
		err := b.session.RespondInteraction(e.ID, e.Token, api.InteractionResponse{
			Type: api.DeferredMessageUpdate,
		})
		if err != nil {
			b.logger.Debug("Failed to ack button", zap.Error(err))
		}
	}

	switch data.CustomID {
	case activity.ConfirmID:
		ack()
		if monitor, ok := b.monitors.Get(e.GuildID); ok {
			monitor.ConfirmContinue()
		}

	case nowplaying.ControlPauseID:
		ack()
		b.togglePause(ctx, e.GuildID)

	case nowplaying.ControlSkipID:
		ack()
		if sess, ok := b.manager.Session(e.GuildID); ok && sess.CurrentTrack() != nil {
			if err := sess.Skip(ctx); err != nil {
				b.logger.Error("Panel skip failed", zap.Error(err), zap.Stringer("guild_id", e.GuildID))
			}
		}

	case nowplaying.ControlStopID:
		ack()
		if _, ok := b.manager.Session(e.GuildID); ok {
			b.cleanup.DestroySession(e.GuildID, "stopped")
		}

	default:
		b.logger.Debug("Unhandled button", zap.String("customID", string(data.CustomID)))
	}
}

func (b *Bot) togglePause(ctx context.Context, guildID discord.GuildID) {
	sess, ok := b.manager.Session(guildID)
	if !ok || sess.CurrentTrack() == nil {
		return
	}

	pause := !sess.Paused()
	if err := sess.Pause(ctx, pause); err != nil {
		b.logger.Error("Panel pause toggle failed", zap.Error(err), zap.Stringer("guild_id", guildID))

		return
	}

	if pause {
		b.status.SetPaused(sess.VoiceChannelID(), sess.CurrentTrack())
	} else {
		sess.BumpCleanupToken()
		b.status.SetPlaying(sess.VoiceChannelID(), sess.CurrentTrack())
	}

	if presenter, ok := b.presenters.Get(guildID); ok {
		go presenter.Refresh()
	}
}
