// Package nowplaying maintains a single live status message per guild that
// shows the current track with an interpolated progress position and a small
// row of playback controls.
package nowplaying

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/diamondburned/arikawa/v3/api"
	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/diamondburned/arikawa/v3/utils/httputil"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/muralianand12345/pepper-bot/internal/audio"
)

// Control button custom IDs, routed by the bot's interaction handler.
const (
	ControlPauseID = "np:pause"
	ControlSkipID  = "np:skip"
	ControlStopID  = "np:stop"
)

// recentPanelCapacity bounds the cache of message IDs the presenter has
// posted, used to recognize its own stale panels during a sweep.
const recentPanelCapacity = 32

// staleSweepLimit is how many recent channel messages are inspected for
// leftover panels before posting a fresh one.
const staleSweepLimit = 10

const embedAuthorName = "Now Playing"

// Session is the subset of playback state the presenter reads.
type Session interface {
	GuildID() discord.GuildID
	TextChannelID() discord.ChannelID
	CurrentTrack() *audio.Track
	Playing() bool
	Paused() bool
	Position() time.Duration
}

// MessageClient is the subset of the Discord REST API the presenter uses.
// *api.Client satisfies it.
type MessageClient interface {
	SendMessageComplex(channelID discord.ChannelID, data api.SendMessageData) (*discord.Message, error)
	EditMessageComplex(channelID discord.ChannelID, messageID discord.MessageID, data api.EditMessageData) (*discord.Message, error)
	DeleteMessage(channelID discord.ChannelID, messageID discord.MessageID, reason api.AuditLogReason) error
	Messages(channelID discord.ChannelID, limit uint) ([]discord.Message, error)
}

// Presenter owns the now-playing message for one guild. It refreshes the
// message on a fixed interval while a track is playing, never letting two
// updates overlap and never updating more often than the minimum gap.
type Presenter struct {
	logger  *zap.Logger
	client  MessageClient
	botID   discord.UserID
	session Session

	interval time.Duration
	minGap   time.Duration
	backoff  time.Duration

	mu         sync.Mutex
	message    *discord.Message
	lastUpdate time.Time
	updating   bool
	stopped    bool
	stop       chan struct{}

	posted *lru.Cache[discord.MessageID, struct{}]
}

// NewPresenter creates a presenter for the given session and starts its
// refresh loop. Call Destroy to stop it.
func NewPresenter(client MessageClient, botID discord.UserID, session Session, interval, minGap, backoff time.Duration, logger *zap.Logger) *Presenter {
	posted, _ := lru.New[discord.MessageID, struct{}](recentPanelCapacity)
	p := &Presenter{
		logger:   logger.Named("nowplaying").With(zap.Stringer("guild_id", session.GuildID())),
		client:   client,
		botID:    botID,
		session:  session,
		interval: interval,
		minGap:   minGap,
		backoff:  backoff,
		stop:     make(chan struct{}),
		posted:   posted,
	}
	go p.loop()
	return p
}

func (p *Presenter) loop() {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			p.Tick()
		}
	}
}

// Tick performs a single refresh attempt. It is a no-op while another update
// is in flight, within the minimum gap since the last successful update, or
// when nothing is actively playing.
func (p *Presenter) Tick() {
	p.mu.Lock()
	if p.stopped || p.updating {
		p.mu.Unlock()
		return
	}
	if time.Since(p.lastUpdate) < p.minGap {
		p.mu.Unlock()
		return
	}
	track := p.session.CurrentTrack()
	if track == nil || !p.session.Playing() || p.session.Paused() {
		p.mu.Unlock()
		return
	}
	p.updating = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.updating = false
		p.mu.Unlock()
	}()

	p.render(track)
}

// Refresh forces an update on the next opportunity regardless of the minimum
// gap, then performs it immediately.
func (p *Presenter) Refresh() {
	p.mu.Lock()
	p.lastUpdate = time.Time{}
	p.mu.Unlock()
	p.Tick()
}

// SetMessage adopts an existing message as the live panel. Messages authored
// by anyone other than the bot are refused; the presenter must never edit or
// delete messages it does not own.
func (p *Presenter) SetMessage(msg *discord.Message) {
	if msg == nil {
		return
	}
	if msg.Author.ID != p.botID {
		p.logger.Warn("Refusing to adopt foreign message",
			zap.Stringer("message_id", msg.ID),
			zap.Stringer("author_id", msg.Author.ID))
		return
	}

	p.mu.Lock()
	p.message = msg
	p.mu.Unlock()
	p.posted.Add(msg.ID, struct{}{})
}

// MessageID returns the ID of the current panel message, if any.
func (p *Presenter) MessageID() (discord.MessageID, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.message == nil {
		return 0, false
	}
	return p.message.ID, true
}

// DisableControls greys out the control row on the current panel. Used during
// teardown so a dead panel cannot emit interactions.
func (p *Presenter) DisableControls() {
	p.mu.Lock()
	msg := p.message
	p.mu.Unlock()
	if msg == nil {
		return
	}

	components := controlRow(true)
	_, err := p.client.EditMessageComplex(msg.ChannelID, msg.ID, api.EditMessageData{
		Components: &components,
	})
	if err != nil {
		p.logger.Debug("Failed to disable panel controls", zap.Error(err))
	}
}

// Destroy stops the refresh loop and forgets the panel message. The message
// itself is left in the channel.
func (p *Presenter) Destroy() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.message = nil
	p.mu.Unlock()

	close(p.stop)
}

func (p *Presenter) render(track *audio.Track) {
	embed := buildEmbed(track, VirtualPosition(p.session.Position(), track.Duration), p.session.Paused())
	components := controlRow(false)

	p.mu.Lock()
	msg := p.message
	p.mu.Unlock()

	if msg != nil {
		_, err := p.client.EditMessageComplex(msg.ChannelID, msg.ID, api.EditMessageData{
			Embeds:     &[]discord.Embed{embed},
			Components: &components,
		})
		switch classifyError(err) {
		case errNone:
			p.markUpdated()
		case errGone:
			// Message was deleted or became inaccessible. Drop the
			// reference so the next tick posts a fresh one.
			p.logger.Debug("Panel message gone, will recreate", zap.Error(err))
			p.mu.Lock()
			p.message = nil
			p.mu.Unlock()
		case errRateLimited:
			p.logger.Debug("Rate limited updating panel, backing off")
			p.mu.Lock()
			p.lastUpdate = time.Now().Add(p.backoff)
			p.mu.Unlock()
		default:
			p.logger.Warn("Failed to update panel message", zap.Error(err))
		}
		return
	}

	channelID := p.session.TextChannelID()
	if !channelID.IsValid() {
		return
	}

	p.sweepStalePanels(channelID)

	created, err := p.client.SendMessageComplex(channelID, api.SendMessageData{
		Embeds:     []discord.Embed{embed},
		Components: components,
	})
	if err != nil {
		if classifyError(err) == errRateLimited {
			p.mu.Lock()
			p.lastUpdate = time.Now().Add(p.backoff)
			p.mu.Unlock()
			return
		}
		p.logger.Warn("Failed to create panel message", zap.Error(err))
		return
	}

	p.mu.Lock()
	p.message = created
	p.mu.Unlock()
	p.posted.Add(created.ID, struct{}{})
	p.markUpdated()
}

// sweepStalePanels deletes leftover panels the bot posted earlier in the
// channel, so at most one live panel exists at a time. Best effort.
func (p *Presenter) sweepStalePanels(channelID discord.ChannelID) {
	msgs, err := p.client.Messages(channelID, staleSweepLimit)
	if err != nil {
		p.logger.Debug("Failed to list messages for panel sweep", zap.Error(err))
		return
	}

	for _, m := range msgs {
		if m.Author.ID != p.botID {
			continue
		}
		if !p.posted.Contains(m.ID) && !looksLikePanel(m) {
			continue
		}
		if err := p.client.DeleteMessage(channelID, m.ID, "replacing stale now-playing panel"); err != nil {
			p.logger.Debug("Failed to delete stale panel", zap.Stringer("message_id", m.ID), zap.Error(err))
		}
		p.posted.Remove(m.ID)
	}
}

func (p *Presenter) markUpdated() {
	p.mu.Lock()
	p.lastUpdate = time.Now()
	p.mu.Unlock()
}

func looksLikePanel(m discord.Message) bool {
	return len(m.Embeds) > 0 &&
		m.Embeds[0].Author != nil &&
		m.Embeds[0].Author.Name == embedAuthorName
}

type errorClass int

const (
	errNone errorClass = iota
	errGone
	errRateLimited
	errOther
)

func classifyError(err error) errorClass {
	if err == nil {
		return errNone
	}
	if status, ok := httpStatus(err); ok {
		switch status {
		case http.StatusNotFound, http.StatusForbidden:
			return errGone
		case http.StatusTooManyRequests:
			return errRateLimited
		}
	}
	return errOther
}

func httpStatus(err error) (int, bool) {
	var ptrErr *httputil.HTTPError
	if errors.As(err, &ptrErr) {
		return ptrErr.Status, true
	}
	var valErr httputil.HTTPError
	if errors.As(err, &valErr) {
		return valErr.Status, true
	}
	return 0, false
}

func buildEmbed(track *audio.Track, position time.Duration, paused bool) discord.Embed {
	var progress string
	if track.IsStream {
		progress = "🔴 LIVE"
	} else {
		progress = fmt.Sprintf("%s / %s", formatDuration(position), formatDuration(track.Duration))
	}
	if paused {
		progress = "⏸ " + progress
	}

	embed := discord.Embed{
		Author:      &discord.EmbedAuthor{Name: embedAuthorName},
		Title:       track.Title,
		URL:         track.URI,
		Description: fmt.Sprintf("by **%s**\n%s", track.Author, progress),
		Color:       0x5865F2,
	}
	if track.ArtworkURL != "" {
		embed.Thumbnail = &discord.EmbedThumbnail{URL: track.ArtworkURL}
	}
	if track.RequesterID.IsValid() {
		embed.Footer = &discord.EmbedFooter{
			Text: fmt.Sprintf("Requested by %s", track.RequesterID.Mention()),
		}
	}
	return embed
}

func controlRow(disabled bool) discord.ContainerComponents {
	return discord.ContainerComponents{
		&discord.ActionRowComponent{
			&discord.ButtonComponent{
				CustomID: ControlPauseID,
				Label:    "Pause",
				Style:    discord.SecondaryButtonStyle(),
				Disabled: disabled,
			},
			&discord.ButtonComponent{
				CustomID: ControlSkipID,
				Label:    "Skip",
				Style:    discord.SecondaryButtonStyle(),
				Disabled: disabled,
			},
			&discord.ButtonComponent{
				CustomID: ControlStopID,
				Label:    "Stop",
				Style:    discord.DangerButtonStyle(),
				Disabled: disabled,
			},
		},
	}
}

func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Round(time.Second) / time.Second)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
