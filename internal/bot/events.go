package bot

import (
	"go.uber.org/zap"

	"github.com/muralianand12345/pepper-bot/internal/activity"
	"github.com/muralianand12345/pepper-bot/internal/audio"
	"github.com/muralianand12345/pepper-bot/internal/cleanup"
	"github.com/muralianand12345/pepper-bot/internal/nowplaying"
	"github.com/muralianand12345/pepper-bot/internal/voicestatus"
)

// engine fans the playback engine's events out to the presentation
// components. It is the single audio.EventHandler for the whole pool.
type engine struct {
	logger     *zap.Logger
	presenters *nowplaying.Registry
	monitors   *activity.Registry
	status     *voicestatus.Publisher
	cleanup    *cleanup.Coordinator
}

func (h *engine) OnTrackStart(s *audio.Session, track *audio.Track) {
	h.logger.Info("Track started",
		zap.Stringer("guild_id", s.GuildID()),
		zap.String("title", track.Title))

	presenter, err := h.presenters.GetOrCreate(s)
	if err != nil {
		h.logger.Error("Failed to create now-playing presenter", zap.Error(err))
	} else {
		go presenter.Refresh()
	}

	// Make sure a monitor is running, but leave its check timer alone:
	// tracks auto-advancing is not evidence anyone is still listening.
	h.monitors.GetOrCreate(s)
	h.status.SetPlaying(s.VoiceChannelID(), track)
}

func (h *engine) OnTrackEnd(s *audio.Session, track *audio.Track, reason audio.TrackEndReason) {
	h.logger.Debug("Track ended",
		zap.Stringer("guild_id", s.GuildID()),
		zap.String("title", track.Title),
		zap.String("reason", string(reason)))
}

func (h *engine) OnQueueEnd(s *audio.Session, last *audio.Track) {
	h.logger.Info("Queue exhausted", zap.Stringer("guild_id", s.GuildID()))

	h.status.Clear(s.VoiceChannelID())
	h.cleanup.ScheduleIdleTeardown(s)
}

func (h *engine) OnStateUpdate(s *audio.Session, old, current audio.ConnectionState) {
	h.logger.Debug("Session state changed",
		zap.Stringer("guild_id", s.GuildID()),
		zap.Stringer("from", old),
		zap.Stringer("to", current))

	// Discord drops the channel status when the bot leaves, so republish it
	// from the session whenever the voice connection comes back.
	if current == audio.StateConnected && old != audio.StateConnected {
		h.status.SetFromSession(s)
	}
}

func (h *engine) OnPlayerDestroy(s *audio.Session) {
	h.logger.Info("Player destroyed", zap.Stringer("guild_id", s.GuildID()))

	h.presenters.Remove(s.GuildID())
	h.monitors.Remove(s.GuildID())
	h.status.Clear(s.VoiceChannelID())
}
