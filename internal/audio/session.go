package audio

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/diamondburned/arikawa/v3/gateway"
	"go.uber.org/zap"
)

// ConnectionState is the voice connection state of a session.
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
)

func (s ConnectionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// ErrQueueEmpty is returned by Play when there is nothing left to play.
var ErrQueueEmpty = errors.New("queue is empty")

// Session is the live playback context of one guild: a voice channel, a queue
// and a binding to exactly one node. Sessions are created and destroyed only
// through their Manager.
type Session struct {
	manager *Manager
	guildID discord.GuildID
	queue   *Queue
	node    *Node

	mu             sync.Mutex
	voiceChannelID discord.ChannelID
	textChannelID  discord.ChannelID
	state          ConnectionState
	playing        bool
	starting       bool
	paused         bool
	position       time.Duration
	positionAt     time.Time
	cleanupToken   int64
	voiceSessionID string
	voiceToken     string
	voiceEndpoint  string
}

func (s *Session) GuildID() discord.GuildID { return s.guildID }

func (s *Session) VoiceChannelID() discord.ChannelID {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.voiceChannelID
}

func (s *Session) TextChannelID() discord.ChannelID {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.textChannelID
}

// SetTextChannelID moves status output to the channel of the latest command.
func (s *Session) SetTextChannelID(id discord.ChannelID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.textChannelID = id
}

func (s *Session) State() ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

func (s *Session) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.playing
}

func (s *Session) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.paused
}

// Queue returns the session's track queue.
func (s *Session) Queue() *Queue { return s.queue }

// CurrentTrack returns the track being played, or nil.
func (s *Session) CurrentTrack() *Track { return s.queue.Current() }

// NodeID returns the identifier of the node this session is bound to.
// The binding is sticky for the session's lifetime.
func (s *Session) NodeID() string { return s.node.Options().Identifier }

// Position returns the playback position last reported by the node, advanced
// by wall time while playing.
func (s *Session) Position() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.playing && !s.paused && !s.positionAt.IsZero() {
		return s.position + time.Since(s.positionAt)
	}

	return s.position
}

// CleanupToken returns the freshness marker for pending delayed teardowns.
func (s *Session) CleanupToken() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.cleanupToken
}

// BumpCleanupToken invalidates every previously scheduled teardown and returns
// the new token. Tokens advance strictly monotonically.
func (s *Session) BumpCleanupToken() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	token := time.Now().UnixNano()
	if token <= s.cleanupToken {
		token = s.cleanupToken + 1
	}
	s.cleanupToken = token

	return token
}

// Connect asks the gateway to join the session's voice channel. The node is
// told about the voice server once Discord delivers the credentials.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateDisconnected {
		s.mu.Unlock()

		return nil
	}
	s.state = StateConnecting
	channelID := s.voiceChannelID
	s.mu.Unlock()

	s.manager.emitStateUpdate(s, StateDisconnected, StateConnecting)

	return s.manager.gateway().Send(ctx, &gateway.UpdateVoiceStateCommand{
		GuildID:   s.guildID,
		ChannelID: channelID,
		SelfMute:  false,
		SelfDeaf:  true,
	})
}

// Play starts the next queued track. It is a no-op while a track is already
// playing or being started; callers enqueue first and then call Play. The
// starting flag keeps a user command and the node's track-end autoplay from
// both promoting a track and replacing each other's player.
func (s *Session) Play(ctx context.Context) error {
	s.mu.Lock()
	if s.playing || s.starting {
		s.mu.Unlock()

		return nil
	}
	s.starting = true
	s.mu.Unlock()

	next := s.queue.Next()
	if next == nil {
		s.mu.Lock()
		s.starting = false
		s.mu.Unlock()

		return ErrQueueEmpty
	}

	if err := s.node.updatePlayer(ctx, s.guildID, playerUpdate{
		Track: &playerTrack{Encoded: &next.Encoded},
	}); err != nil {
		s.mu.Lock()
		s.starting = false
		s.mu.Unlock()

		return err
	}

	s.mu.Lock()
	s.starting = false
	s.playing = true
	s.paused = false
	s.position = 0
	s.positionAt = time.Now()
	s.mu.Unlock()

	return nil
}

// Pause pauses or resumes playback on the node.
func (s *Session) Pause(ctx context.Context, pause bool) error {
	if err := s.node.updatePlayer(ctx, s.guildID, playerUpdate{Paused: &pause}); err != nil {
		return err
	}

	s.mu.Lock()
	if !pause && s.paused {
		// Resuming: restart wall-clock advancement from the held position.
		s.positionAt = time.Now()
	}
	s.paused = pause
	s.mu.Unlock()

	return nil
}

// Stop stops the current track and clears the queue.
func (s *Session) Stop(ctx context.Context) error {
	s.queue.Clear()

	var none *string
	err := s.node.updatePlayer(ctx, s.guildID, playerUpdate{Track: &playerTrack{Encoded: none}})

	s.mu.Lock()
	s.playing = false
	s.paused = false
	s.position = 0
	s.mu.Unlock()

	return err
}

// Skip stops the current track; the node's track-end event starts the next one.
func (s *Session) Skip(ctx context.Context) error {
	var none *string

	return s.node.updatePlayer(ctx, s.guildID, playerUpdate{Track: &playerTrack{Encoded: none}})
}

// UpdateVoiceState records the bot's own voice session id from the gateway.
func (s *Session) UpdateVoiceState(voiceSessionID string) {
	s.mu.Lock()
	s.voiceSessionID = voiceSessionID
	s.mu.Unlock()

	s.pushVoiceServer()
}

// UpdateVoiceServer records the voice server credentials from the gateway.
func (s *Session) UpdateVoiceServer(token, endpoint string) {
	s.mu.Lock()
	s.voiceToken = token
	s.voiceEndpoint = endpoint
	s.mu.Unlock()

	s.pushVoiceServer()
}

// pushVoiceServer forwards the voice credentials to the node once both the
// session id and the server token are known.
func (s *Session) pushVoiceServer() {
	s.mu.Lock()
	if s.voiceSessionID == "" || s.voiceToken == "" || s.voiceEndpoint == "" {
		s.mu.Unlock()

		return
	}
	update := playerUpdate{Voice: &voiceServer{
		Token:     s.voiceToken,
		Endpoint:  s.voiceEndpoint,
		SessionID: s.voiceSessionID,
	}}
	old := s.state
	s.state = StateConnected
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.node.updatePlayer(ctx, s.guildID, update); err != nil {
		s.manager.logger.Error("Failed to push voice server to node",
			zap.Stringer("guildID", s.guildID), zap.Error(err))

		return
	}

	if old != StateConnected {
		s.manager.emitStateUpdate(s, old, StateConnected)
	}
}

// setPosition records a position report from the node.
func (s *Session) setPosition(pos time.Duration) {
	s.mu.Lock()
	s.position = pos
	s.positionAt = time.Now()
	s.mu.Unlock()
}

func (s *Session) markTrackStarted() {
	s.mu.Lock()
	s.playing = true
	s.paused = false
	s.position = 0
	s.positionAt = time.Now()
	s.mu.Unlock()
}

func (s *Session) markTrackEnded() {
	s.mu.Lock()
	s.playing = false
	s.position = 0
	s.positionAt = time.Time{}
	s.mu.Unlock()
}
