package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/diamondburned/arikawa/v3/gateway"
	"github.com/diamondburned/arikawa/v3/session"
	"go.uber.org/zap"

	"github.com/muralianand12345/pepper-bot/internal/audio"
	"github.com/muralianand12345/pepper-bot/internal/nowplaying"
)

// NowPlayingCommand reports the current track and refreshes the live panel.
type NowPlayingCommand struct {
	logger     *zap.Logger
	appID      discord.AppID
	manager    *audio.Manager
	presenters *nowplaying.Registry
}

func NewNowPlayingCommand(logger *zap.Logger, appID discord.AppID, manager *audio.Manager, presenters *nowplaying.Registry) Command {
	return &NowPlayingCommand{
		logger:     logger,
		appID:      appID,
		manager:    manager,
		presenters: presenters,
	}
}

func (c *NowPlayingCommand) Name() string {
	return "nowplaying"
}

func (c *NowPlayingCommand) Description() string {
	return "Show what's currently playing"
}

func (c *NowPlayingCommand) Options() []discord.CommandOption {
	return nil
}

func (c *NowPlayingCommand) Execute(ctx context.Context, s *session.Session, e *gateway.InteractionCreateEvent, data *discord.CommandInteraction) error {
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

	position := nowplaying.VirtualPosition(sess.Position(), track.Duration)
	state := "▶️"
	if sess.Paused() {
		state = "⏸"
	}

	var progress string
	if track.IsStream {
		progress = "🔴 LIVE"
	} else {
		progress = fmt.Sprintf("`%s / %s`", formatTimestamp(position), formatTimestamp(track.Duration))
	}

	if err := respond(s, e, fmt.Sprintf("%s **%s** by %s\n%s", state, track.Title, track.Author, progress)); err != nil {
		return err
	}

	// The reply becomes the live panel so it keeps updating in place instead
	// of going stale the moment it is posted.
	if presenter, ok := c.presenters.Get(e.GuildID); ok {
		if msg, err := s.InteractionResponse(c.appID, e.Token); err != nil {
			c.logger.Debug("Failed to fetch interaction response", zap.Error(err))
		} else {
			presenter.SetMessage(msg)
		}
		go presenter.Refresh()
	}

	return nil
}

func formatTimestamp(d time.Duration) string {
	total := int(d.Seconds())
	if total < 0 {
		total = 0
	}
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}

	return fmt.Sprintf("%d:%02d", m, s)
}
