package activity

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/diamondburned/arikawa/v3/api"
	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/muralianand12345/pepper-bot/internal/audio"
)

const (
	testGuildID = discord.GuildID(200)
	testChannel = discord.ChannelID(300)
)

type fakeSession struct {
	mu      sync.Mutex
	track   *audio.Track
	playing bool
	paused  bool
}

func (s *fakeSession) GuildID() discord.GuildID { return testGuildID }

func (s *fakeSession) TextChannelID() discord.ChannelID { return testChannel }

func (s *fakeSession) CurrentTrack() *audio.Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.track
}

func (s *fakeSession) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

func (s *fakeSession) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

type fakeClient struct {
	mu      sync.Mutex
	sendErr error
	sent    []string
	edits   []string
	nextID  discord.MessageID
}

func (f *fakeClient) SendMessageComplex(chID discord.ChannelID, data api.SendMessageData) (*discord.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sent = append(f.sent, data.Content)
	f.nextID++
	return &discord.Message{ID: f.nextID, ChannelID: chID}, nil
}

func (f *fakeClient) EditMessageComplex(chID discord.ChannelID, msgID discord.MessageID, data api.EditMessageData) (*discord.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	content := ""
	if data.Content != nil {
		content = data.Content.Val
	}
	f.edits = append(f.edits, content)
	return &discord.Message{ID: msgID, ChannelID: chID}, nil
}

func (f *fakeClient) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeClient) lastEdit() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.edits) == 0 {
		return "", false
	}
	return f.edits[len(f.edits)-1], true
}

type fakeDestroyer struct {
	mu     sync.Mutex
	guilds []discord.GuildID
}

func (f *fakeDestroyer) DestroySession(guildID discord.GuildID, reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.guilds = append(f.guilds, guildID)
}

func (f *fakeDestroyer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.guilds)
}

func playingSession() *fakeSession {
	return &fakeSession{
		track:   &audio.Track{Title: "Test Song"},
		playing: true,
	}
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestMonitorSendsCheckAndDestroysOnTimeout(t *testing.T) {
	client := &fakeClient{}
	destroyer := &fakeDestroyer{}
	m := NewMonitor(client, playingSession(), destroyer, 30*time.Millisecond, 30*time.Millisecond, zap.NewNop())
	defer m.Destroy()

	waitFor(t, func() bool { return client.sentCount() == 1 }, "check was never sent")
	waitFor(t, func() bool { return destroyer.count() == 1 }, "session was never destroyed")

	edit, ok := client.lastEdit()
	require.True(t, ok, "prompt should have been edited on timeout")
	assert.Equal(t, timedOutContent, edit)
	assert.Equal(t, []discord.GuildID{testGuildID}, destroyer.guilds)
}

func TestMonitorConfirmRearmsCheck(t *testing.T) {
	client := &fakeClient{}
	destroyer := &fakeDestroyer{}
	m := NewMonitor(client, playingSession(), destroyer, 40*time.Millisecond, time.Hour, zap.NewNop())
	defer m.Destroy()

	waitFor(t, func() bool { return client.sentCount() == 1 }, "first check was never sent")

	require.True(t, m.ConfirmContinue())

	edit, ok := client.lastEdit()
	require.True(t, ok)
	assert.Equal(t, confirmedContent, edit)

	// Confirming re-arms the long timer, so a second check follows.
	waitFor(t, func() bool { return client.sentCount() == 2 }, "check did not re-arm after confirmation")
	assert.Zero(t, destroyer.count())
}

func TestMonitorChecksDuringContinuousPlayback(t *testing.T) {
	client := &fakeClient{}
	session := playingSession()
	m := NewMonitor(client, session, &fakeDestroyer{}, 100*time.Millisecond, time.Hour, zap.NewNop())
	defer m.Destroy()

	// A queue steadily advancing through tracks must not postpone the check:
	// only an explicit confirmation counts as listener activity.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 15; i++ {
			session.mu.Lock()
			session.track = &audio.Track{Title: "Track"}
			session.mu.Unlock()
			time.Sleep(20 * time.Millisecond)
		}
	}()

	waitFor(t, func() bool { return client.sentCount() == 1 }, "check never fired during continuous playback")
	<-done
}

func TestMonitorConfirmWithoutPending(t *testing.T) {
	client := &fakeClient{}
	m := NewMonitor(client, playingSession(), &fakeDestroyer{}, time.Hour, time.Hour, zap.NewNop())
	defer m.Destroy()

	assert.False(t, m.ConfirmContinue())
}

func TestMonitorSkipsWhenIdle(t *testing.T) {
	client := &fakeClient{}
	session := &fakeSession{}
	m := NewMonitor(client, session, &fakeDestroyer{}, 20*time.Millisecond, time.Hour, zap.NewNop())
	defer m.Destroy()

	time.Sleep(80 * time.Millisecond)
	assert.Zero(t, client.sentCount(), "idle sessions must not be prompted")

	// Once playback starts, the re-armed timer picks it up.
	session.mu.Lock()
	session.track = &audio.Track{Title: "Late Song"}
	session.playing = true
	session.mu.Unlock()

	waitFor(t, func() bool { return client.sentCount() == 1 }, "check not sent after playback started")
}

func TestMonitorPromptsWhilePaused(t *testing.T) {
	client := &fakeClient{}
	session := playingSession()
	session.playing = false
	session.paused = true
	m := NewMonitor(client, session, &fakeDestroyer{}, 20*time.Millisecond, time.Hour, zap.NewNop())
	defer m.Destroy()

	waitFor(t, func() bool { return client.sentCount() == 1 }, "paused sessions should still be prompted")
}

func TestMonitorRearmsAfterSendFailure(t *testing.T) {
	client := &fakeClient{sendErr: errors.New("boom")}
	destroyer := &fakeDestroyer{}
	m := NewMonitor(client, playingSession(), destroyer, 20*time.Millisecond, time.Hour, zap.NewNop())
	defer m.Destroy()

	time.Sleep(50 * time.Millisecond)

	client.mu.Lock()
	client.sendErr = nil
	client.mu.Unlock()

	waitFor(t, func() bool { return client.sentCount() == 1 }, "check not retried after send failure")
	assert.Zero(t, destroyer.count())
}

func TestMonitorDestroyCancelsPendingCheck(t *testing.T) {
	client := &fakeClient{}
	destroyer := &fakeDestroyer{}
	m := NewMonitor(client, playingSession(), destroyer, 20*time.Millisecond, 40*time.Millisecond, zap.NewNop())

	waitFor(t, func() bool { return client.sentCount() == 1 }, "check was never sent")

	m.Destroy()
	m.Destroy() // idempotent

	time.Sleep(80 * time.Millisecond)
	assert.Zero(t, destroyer.count(), "destroyed monitor must not fire its response timeout")
	assert.False(t, m.ConfirmContinue())
}

func TestRegistryLifecycle(t *testing.T) {
	client := &fakeClient{}
	r := NewRegistry(client, &fakeDestroyer{}, time.Hour, time.Hour, zap.NewNop())

	session := playingSession()
	m1 := r.GetOrCreate(session)
	m2 := r.GetOrCreate(session)
	assert.Same(t, m1, m2)

	got, ok := r.Get(testGuildID)
	require.True(t, ok)
	assert.Same(t, m1, got)

	r.Remove(testGuildID)
	_, ok = r.Get(testGuildID)
	assert.False(t, ok)

	r.Remove(testGuildID) // no-op
}
