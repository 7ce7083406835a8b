// Package voicestatus sets the short status text shown on a voice channel.
// Everything here is best effort: failures are logged and swallowed so status
// plumbing can never interfere with playback.
package voicestatus

import (
	"fmt"
	"time"

	"github.com/diamondburned/arikawa/v3/api"
	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/diamondburned/arikawa/v3/utils/httputil"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/muralianand12345/pepper-bot/internal/audio"
)

// maxStatusLength is the API limit for voice channel status strings.
const maxStatusLength = 500

// restClient is the one raw call the publisher needs. *api.Client implements it.
type restClient interface {
	FastRequest(method, url string, opts ...httputil.RequestOption) error
}

// Publisher writes voice channel statuses over REST. The endpoint is
// undocumented and tightly limited, so calls are gated by a local limiter and
// silently dropped when it is exhausted.
type Publisher struct {
	client  restClient
	logger  *zap.Logger
	limiter *rate.Limiter
}

// NewPublisher creates a Publisher.
func NewPublisher(client restClient, logger *zap.Logger) *Publisher {
	return &Publisher{
		client:  client,
		logger:  logger.Named("voicestatus"),
		limiter: rate.NewLimiter(rate.Every(2*time.Second), 4),
	}
}

// Set writes the status text on the voice channel. An empty string clears it.
// Errors are logged and swallowed.
func (p *Publisher) Set(channelID discord.ChannelID, text string) {
	if !p.limiter.Allow() {
		p.logger.Debug("Voice status update dropped by limiter", zap.Stringer("channelID", channelID))

		return
	}

	body := struct {
		Status *string `json:"status"`
	}{}
	if text != "" {
		text = truncate(text, maxStatusLength)
		body.Status = &text
	}

	url := api.EndpointChannels + channelID.String() + "/voice-status"
	if err := p.client.FastRequest("PUT", url, httputil.WithJSONBody(body)); err != nil {
		p.logger.Debug("Failed to set voice status",
			zap.Stringer("channelID", channelID), zap.Error(err))
	}
}

// SetPlaying derives a playing status from the track.
func (p *Publisher) SetPlaying(channelID discord.ChannelID, track *audio.Track) {
	if track == nil {
		p.Clear(channelID)

		return
	}
	p.Set(channelID, fmt.Sprintf("♪ %s by %s", track.Title, track.Author))
}

// SetPaused derives a paused status from the track.
func (p *Publisher) SetPaused(channelID discord.ChannelID, track *audio.Track) {
	if track == nil {
		p.Clear(channelID)

		return
	}
	p.Set(channelID, fmt.Sprintf("⏸ %s by %s", track.Title, track.Author))
}

// Session is the playback state a status is derived from. *audio.Session
// satisfies it.
type Session interface {
	VoiceChannelID() discord.ChannelID
	CurrentTrack() *audio.Track
	Paused() bool
}

// SetFromSession derives the status from the session's current state. Used to
// republish the status after a voice reconnect, which wipes it server-side.
func (p *Publisher) SetFromSession(s Session) {
	track := s.CurrentTrack()
	switch {
	case track == nil:
		p.Clear(s.VoiceChannelID())
	case s.Paused():
		p.SetPaused(s.VoiceChannelID(), track)
	default:
		p.SetPlaying(s.VoiceChannelID(), track)
	}
}

// Clear removes the status from the voice channel.
func (p *Publisher) Clear(channelID discord.ChannelID) {
	p.Set(channelID, "")
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}

	return string(runes[:limit-1]) + "…"
}
