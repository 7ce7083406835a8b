// Package activity periodically asks whether anyone is still listening and
// tears the playback session down when nobody confirms.
package activity

import (
	"sync"
	"time"

	"github.com/diamondburned/arikawa/v3/api"
	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/diamondburned/arikawa/v3/utils/json/option"
	"go.uber.org/zap"

	"github.com/muralianand12345/pepper-bot/internal/audio"
	"github.com/muralianand12345/pepper-bot/pkg/util"
)

// ConfirmID is the custom ID of the confirmation button, routed by the bot's
// interaction handler.
const ConfirmID = "activity:confirm"

const (
	checkPrompt      = "🎧 Still listening? Playback will stop in a few minutes unless someone confirms."
	confirmedContent = "🎶 Confirmed, the music keeps going."
	timedOutContent  = "💤 Nobody confirmed, stopping playback."
)

// Session is the subset of playback state the monitor reads.
type Session interface {
	GuildID() discord.GuildID
	TextChannelID() discord.ChannelID
	CurrentTrack() *audio.Track
	Playing() bool
	Paused() bool
}

// MessageClient is the subset of the Discord REST API the monitor uses.
// *api.Client satisfies it.
type MessageClient interface {
	SendMessageComplex(channelID discord.ChannelID, data api.SendMessageData) (*discord.Message, error)
	EditMessageComplex(channelID discord.ChannelID, messageID discord.MessageID, data api.EditMessageData) (*discord.Message, error)
}

// Destroyer tears down a guild's playback session, including any user-facing
// notice.
type Destroyer interface {
	DestroySession(guildID discord.GuildID, reason string)
}

// Monitor watches one guild's session. A long-horizon timer fires a check; if
// playback is actually running, a confirmation prompt goes to the session's
// text channel and a short response window starts. Confirming re-arms the
// long timer; letting the window lapse destroys the session.
type Monitor struct {
	logger    *zap.Logger
	client    MessageClient
	session   Session
	destroyer Destroyer

	responseWindow time.Duration

	check *util.ResetTimer
	stop  chan struct{}

	mu        sync.Mutex
	startedAt time.Time
	pendingID discord.MessageID
	pendingCh discord.ChannelID
	response  *time.Timer
	stopped   bool
}

// NewMonitor creates a monitor and starts its check loop. Call Destroy to
// stop it.
func NewMonitor(client MessageClient, session Session, destroyer Destroyer, checkInterval, responseWindow time.Duration, logger *zap.Logger) *Monitor {
	m := &Monitor{
		logger:         logger.Named("activity").With(zap.Stringer("guild_id", session.GuildID())),
		client:         client,
		session:        session,
		destroyer:      destroyer,
		responseWindow: responseWindow,
		check:          util.NewResetTimer(checkInterval),
		stop:           make(chan struct{}),
		startedAt:      time.Now(),
	}
	go m.loop()
	return m
}

func (m *Monitor) loop() {
	for {
		select {
		case <-m.stop:
			return
		case <-m.check.C():
			m.runCheck()
		}
	}
}

func (m *Monitor) runCheck() {
	m.mu.Lock()
	if m.stopped || m.pendingID.IsValid() {
		m.mu.Unlock()
		return
	}
	age := time.Since(m.startedAt)
	m.mu.Unlock()

	// Only prompt while something is actually loaded. An idle session is the
	// cleanup scheduler's problem, not ours.
	if m.session.CurrentTrack() == nil || (!m.session.Playing() && !m.session.Paused()) {
		m.check.Reset()
		return
	}

	channelID := m.session.TextChannelID()
	if !channelID.IsValid() {
		m.check.Reset()
		return
	}

	msg, err := m.client.SendMessageComplex(channelID, api.SendMessageData{
		Content:    checkPrompt,
		Components: confirmRow(false),
	})
	if err != nil {
		m.logger.Warn("Failed to send activity check, re-arming", zap.Error(err))
		m.check.Reset()
		return
	}

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.pendingID = msg.ID
	m.pendingCh = msg.ChannelID
	m.response = time.AfterFunc(m.responseWindow, m.onResponseTimeout)
	m.mu.Unlock()

	m.logger.Info("Sent activity check",
		zap.Stringer("message_id", msg.ID),
		zap.Duration("session_age", age))
}

// ConfirmContinue resolves a pending check in the listeners' favor. Returns
// false when no check is pending.
func (m *Monitor) ConfirmContinue() bool {
	m.mu.Lock()
	if m.stopped || !m.pendingID.IsValid() {
		m.mu.Unlock()
		return false
	}
	msgID, chID := m.pendingID, m.pendingCh
	m.clearPendingLocked()
	m.startedAt = time.Now()
	m.mu.Unlock()

	m.editPrompt(chID, msgID, confirmedContent)
	m.check.Reset()
	m.logger.Info("Activity check confirmed")
	return true
}

func (m *Monitor) onResponseTimeout() {
	m.mu.Lock()
	if m.stopped || !m.pendingID.IsValid() {
		m.mu.Unlock()
		return
	}
	msgID, chID := m.pendingID, m.pendingCh
	m.clearPendingLocked()
	m.mu.Unlock()

	m.editPrompt(chID, msgID, timedOutContent)
	m.logger.Info("Activity check timed out, destroying session")
	m.destroyer.DestroySession(m.session.GuildID(), "inactivity")
}

// Destroy stops the monitor. Safe to call more than once and from any
// teardown path.
func (m *Monitor) Destroy() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	if m.response != nil {
		m.response.Stop()
		m.response = nil
	}
	m.pendingID = 0
	m.pendingCh = 0
	m.mu.Unlock()

	m.check.Stop()
	close(m.stop)
}

func (m *Monitor) clearPendingLocked() {
	m.pendingID = 0
	m.pendingCh = 0
	if m.response != nil {
		m.response.Stop()
		m.response = nil
	}
}

func (m *Monitor) editPrompt(chID discord.ChannelID, msgID discord.MessageID, content string) {
	components := confirmRow(true)
	_, err := m.client.EditMessageComplex(chID, msgID, api.EditMessageData{
		Content:    option.NewNullableString(content),
		Components: &components,
	})
	if err != nil {
		m.logger.Debug("Failed to edit activity check", zap.Error(err))
	}
}

func confirmRow(disabled bool) discord.ContainerComponents {
	return discord.ContainerComponents{
		&discord.ActionRowComponent{
			&discord.ButtonComponent{
				CustomID: ConfirmID,
				Label:    "Keep playing",
				Style:    discord.PrimaryButtonStyle(),
				Disabled: disabled,
			},
		},
	}
}
