package bot

import (
	"context"

	"github.com/diamondburned/arikawa/v3/gateway"
	"go.uber.org/zap"
)

// handleVoiceStateUpdate feeds the bot's own voice session into the node
// plumbing and watches other members for the empty-channel / rejoin paths.
func (b *Bot) handleVoiceStateUpdate(e *gateway.VoiceStateUpdateEvent) {
	sess, ok := b.manager.Session(e.GuildID)
	if !ok {
		return
	}

	me, err := b.state.Me()
	if err != nil {
		b.logger.Warn("Cannot resolve own user for voice state update", zap.Error(err))

		return
	}

	if e.UserID == me.ID {
		if !e.ChannelID.IsValid() {
			// Disconnected externally (kicked by an admin or the teardown
			// we initiated ourselves). DestroySession is idempotent.
			b.logger.Info("Bot left voice channel", zap.Stringer("guild_id", e.GuildID))
			b.manager.DestroySession(e.GuildID)

			return
		}

		sess.UpdateVoiceState(e.SessionID)

		return
	}

	channelID := sess.VoiceChannelID()
	if !channelID.IsValid() {
		return
	}

	count, err := b.listeners.CountListeners(e.GuildID, channelID)
	if err != nil {
		b.logger.Warn("Listener count failed on voice state update",
			zap.Stringer("guild_id", e.GuildID), zap.Error(err))

		return
	}

	ctx := context.Background()
	switch {
	case count == 0:
		b.cleanup.HandleChannelEmpty(ctx, sess)
	case sess.Paused():
		b.cleanup.HandleMemberRejoin(ctx, sess)
	}
}

func (b *Bot) handleVoiceServerUpdate(e *gateway.VoiceServerUpdateEvent) {
	sess, ok := b.manager.Session(e.GuildID)
	if !ok {
		return
	}

	sess.UpdateVoiceServer(e.Token, e.Endpoint)
}
