// Package cleanup schedules delayed session teardowns and arbitrates the
// races between them. Every scheduled teardown carries the session's cleanup
// token at schedule time; by the time the delay elapses, any interleaved
// playback activity has bumped the token and the stale callback aborts. No
// timers are ever cancelled.
package cleanup

import (
	"context"
	"sync"
	"time"

	"github.com/diamondburned/arikawa/v3/discord"
	"go.uber.org/zap"

	"github.com/muralianand12345/pepper-bot/internal/audio"
)

const (
	idleNotice       = "👋 Nothing has played for a while, leaving the voice channel."
	emptyNotice      = "👋 Everyone left, so I did too."
	inactivityNotice = "👋 Stopping playback due to inactivity."
	stoppedNotice    = "⏹ Playback stopped."
	resumeNotice     = "▶️ Welcome back! Resuming playback."
	pausedNotice     = "⏸ Paused because the voice channel is empty. I'll leave in a few minutes if nobody returns."
)

// Session is the playback state the coordinator drives. *audio.Session
// satisfies it.
type Session interface {
	GuildID() discord.GuildID
	VoiceChannelID() discord.ChannelID
	TextChannelID() discord.ChannelID
	CurrentTrack() *audio.Track
	Playing() bool
	Paused() bool
	CleanupToken() int64
	BumpCleanupToken() int64
	Pause(ctx context.Context, pause bool) error
}

// SessionProvider resolves live sessions and destroys them. Delayed callbacks
// always re-fetch through it rather than holding a session across the delay.
type SessionProvider interface {
	Session(guildID discord.GuildID) (Session, bool)
	DestroySession(guildID discord.GuildID)
}

// SettingsStore exposes the per-guild always-on flag.
type SettingsStore interface {
	GuildAlwaysOn(ctx context.Context, guildID string) bool
}

// ListenerCounter reports how many non-bot members are in a voice channel.
type ListenerCounter interface {
	CountListeners(guildID discord.GuildID, channelID discord.ChannelID) (int, error)
}

// Notifier posts user-facing notices. *api.Client satisfies it.
type Notifier interface {
	SendMessage(channelID discord.ChannelID, content string, embeds ...discord.Embed) (*discord.Message, error)
}

// StatusPublisher mirrors playback state into the voice channel status.
// *voicestatus.Publisher satisfies it.
type StatusPublisher interface {
	SetPlaying(channelID discord.ChannelID, track *audio.Track)
	SetPaused(channelID discord.ChannelID, track *audio.Track)
	Clear(channelID discord.ChannelID)
}

// ControlPanel greys out a guild's playback controls before teardown.
type ControlPanel interface {
	DisableControls(guildID discord.GuildID)
}

// Coordinator owns every delayed-teardown decision for all guilds.
type Coordinator struct {
	logger    *zap.Logger
	sessions  SessionProvider
	settings  SettingsStore
	listeners ListenerCounter
	notifier  Notifier
	status    StatusPublisher
	panels    ControlPanel

	delay time.Duration

	mu sync.Mutex
	// pausedForEmpty marks guilds the coordinator paused because their voice
	// channel emptied, so a rejoin knows to resume.
	pausedForEmpty map[discord.GuildID]bool
}

func NewCoordinator(sessions SessionProvider, settings SettingsStore, listeners ListenerCounter, notifier Notifier, status StatusPublisher, panels ControlPanel, delay time.Duration, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		logger:         logger.Named("cleanup"),
		sessions:       sessions,
		settings:       settings,
		listeners:      listeners,
		notifier:       notifier,
		status:         status,
		panels:         panels,
		delay:          delay,
		pausedForEmpty: make(map[discord.GuildID]bool),
	}
}

// ScheduleIdleTeardown arms a delayed teardown for a session whose queue just
// ran out. If anything plays before the delay elapses, the bumped token makes
// the callback a no-op.
func (c *Coordinator) ScheduleIdleTeardown(session Session) {
	guildID := session.GuildID()
	token := session.BumpCleanupToken()

	c.logger.Debug("Scheduled idle teardown",
		zap.Stringer("guild_id", guildID),
		zap.Int64("token", token))

	time.AfterFunc(c.delay, func() {
		live, ok := c.sessions.Session(guildID)
		if !ok {
			return
		}
		if live.CleanupToken() != token {
			c.logger.Debug("Idle teardown superseded", zap.Stringer("guild_id", guildID))
			return
		}
		if live.CurrentTrack() != nil || live.Playing() {
			return
		}
		c.teardown(live, idleNotice)
	})
}

// HandleChannelEmpty reacts to the last listener leaving the session's voice
// channel: pause now, then tear down after the delay unless someone came
// back. Guilds flagged always-on are left alone.
func (c *Coordinator) HandleChannelEmpty(ctx context.Context, session Session) {
	guildID := session.GuildID()

	if c.settings.GuildAlwaysOn(ctx, guildID.String()) {
		c.logger.Debug("Channel empty but guild is always-on", zap.Stringer("guild_id", guildID))
		return
	}

	if session.Playing() && !session.Paused() {
		if err := session.Pause(ctx, true); err != nil {
			c.logger.Warn("Failed to pause on empty channel",
				zap.Stringer("guild_id", guildID), zap.Error(err))
		} else {
			c.mu.Lock()
			c.pausedForEmpty[guildID] = true
			c.mu.Unlock()
			c.status.SetPaused(session.VoiceChannelID(), session.CurrentTrack())
			c.notify(session.TextChannelID(), pausedNotice)
		}
	}

	token := session.BumpCleanupToken()
	c.logger.Debug("Scheduled empty-channel teardown",
		zap.Stringer("guild_id", guildID),
		zap.Int64("token", token))

	time.AfterFunc(c.delay, func() {
		live, ok := c.sessions.Session(guildID)
		if !ok {
			return
		}
		if live.CleanupToken() != token {
			c.logger.Debug("Empty-channel teardown superseded", zap.Stringer("guild_id", guildID))
			return
		}

		// Re-count at fire time; gateway events can be missed.
		count, err := c.listeners.CountListeners(guildID, live.VoiceChannelID())
		if err != nil {
			c.logger.Warn("Listener count failed, keeping session",
				zap.Stringer("guild_id", guildID), zap.Error(err))
			return
		}
		if count > 0 {
			c.logger.Debug("Channel repopulated before teardown", zap.Stringer("guild_id", guildID))
			return
		}

		c.teardown(live, emptyNotice)
	})
}

// HandleMemberRejoin resumes playback that HandleChannelEmpty paused. The
// pending teardown callback is left armed; its fire-time listener re-count
// sees the rejoined member and aborts on its own.
func (c *Coordinator) HandleMemberRejoin(ctx context.Context, session Session) {
	guildID := session.GuildID()

	c.mu.Lock()
	paused := c.pausedForEmpty[guildID]
	delete(c.pausedForEmpty, guildID)
	c.mu.Unlock()

	if !paused || !session.Paused() {
		return
	}

	if err := session.Pause(ctx, false); err != nil {
		c.logger.Warn("Failed to resume after rejoin",
			zap.Stringer("guild_id", guildID), zap.Error(err))
		return
	}

	c.status.SetPlaying(session.VoiceChannelID(), session.CurrentTrack())
	c.logger.Info("Resumed playback after rejoin", zap.Stringer("guild_id", guildID))
	c.notify(session.TextChannelID(), resumeNotice)
}

// DestroySession tears a session down immediately with a reason-specific
// notice. Implements the activity monitor's destroyer.
func (c *Coordinator) DestroySession(guildID discord.GuildID, reason string) {
	session, ok := c.sessions.Session(guildID)
	if !ok {
		return
	}

	var notice string
	switch reason {
	case "inactivity":
		notice = inactivityNotice
	case "stopped":
		notice = stoppedNotice
	}
	c.teardown(session, notice)
}

func (c *Coordinator) teardown(session Session, notice string) {
	guildID := session.GuildID()

	c.mu.Lock()
	delete(c.pausedForEmpty, guildID)
	c.mu.Unlock()

	c.panels.DisableControls(guildID)
	c.status.Clear(session.VoiceChannelID())
	if notice != "" {
		c.notify(session.TextChannelID(), notice)
	}

	c.logger.Info("Tearing down session", zap.Stringer("guild_id", guildID))
	c.sessions.DestroySession(guildID)
}

func (c *Coordinator) notify(channelID discord.ChannelID, content string) {
	if !channelID.IsValid() {
		return
	}
	if _, err := c.notifier.SendMessage(channelID, content); err != nil {
		c.logger.Debug("Failed to send notice", zap.Error(err))
	}
}
