package voicestatus

import (
	"strings"
	"testing"

	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/diamondburned/arikawa/v3/utils/httputil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/muralianand12345/pepper-bot/internal/audio"
)

type fakeREST struct {
	calls []string // "METHOD url"
	err   error
}

func (f *fakeREST) FastRequest(method, url string, _ ...httputil.RequestOption) error {
	f.calls = append(f.calls, method+" "+url)

	return f.err
}

func TestPublisherSet(t *testing.T) {
	t.Run("puts to the voice-status endpoint", func(t *testing.T) {
		rest := &fakeREST{}
		p := NewPublisher(rest, zap.NewNop())

		p.Set(discord.ChannelID(123), "♪ Song by Artist")

		require.Len(t, rest.calls, 1)
		assert.Equal(t, "PUT", rest.calls[0][:3])
		assert.True(t, strings.HasSuffix(rest.calls[0], "/channels/123/voice-status"))
	})

	t.Run("swallows REST errors", func(t *testing.T) {
		rest := &fakeREST{err: assert.AnError}
		p := NewPublisher(rest, zap.NewNop())

		p.Set(discord.ChannelID(123), "text") // must not panic or propagate
		assert.Len(t, rest.calls, 1)
	})

	t.Run("limiter drops excess updates", func(t *testing.T) {
		rest := &fakeREST{}
		p := NewPublisher(rest, zap.NewNop())

		for i := 0; i < 20; i++ {
			p.Set(discord.ChannelID(1), "x")
		}
		assert.Less(t, len(rest.calls), 20)
	})
}

func TestPublisherWrappers(t *testing.T) {
	rest := &fakeREST{}
	p := NewPublisher(rest, zap.NewNop())

	p.SetPlaying(discord.ChannelID(1), &audio.Track{Title: "Song", Author: "Artist"})
	p.SetPaused(discord.ChannelID(1), &audio.Track{Title: "Song", Author: "Artist"})
	p.Clear(discord.ChannelID(1))
	assert.Len(t, rest.calls, 3)

	// nil track clears instead of formatting garbage
	p.SetPlaying(discord.ChannelID(1), nil)
	assert.Len(t, rest.calls, 4)
}

type fakePlayback struct {
	track  *audio.Track
	paused bool
}

func (f *fakePlayback) VoiceChannelID() discord.ChannelID { return discord.ChannelID(9) }
func (f *fakePlayback) CurrentTrack() *audio.Track        { return f.track }
func (f *fakePlayback) Paused() bool                      { return f.paused }

func TestSetFromSession(t *testing.T) {
	tests := []struct {
		name    string
		session *fakePlayback
	}{
		{
			name:    "playing",
			session: &fakePlayback{track: &audio.Track{Title: "Song", Author: "Artist"}},
		},
		{
			name:    "paused",
			session: &fakePlayback{track: &audio.Track{Title: "Song", Author: "Artist"}, paused: true},
		},
		{
			name:    "no track clears",
			session: &fakePlayback{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rest := &fakeREST{}
			p := NewPublisher(rest, zap.NewNop())

			p.SetFromSession(tt.session)

			require.Len(t, rest.calls, 1)
			assert.True(t, strings.HasSuffix(rest.calls[0], "/channels/9/voice-status"))
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 500))

	long := strings.Repeat("a", 600)
	got := truncate(long, 500)
	assert.LessOrEqual(t, len([]rune(got)), 500)
	assert.True(t, strings.HasSuffix(got, "…"))
}
