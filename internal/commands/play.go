package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/diamondburned/arikawa/v3/gateway"
	"github.com/diamondburned/arikawa/v3/session"
	"github.com/diamondburned/arikawa/v3/state"
	"go.uber.org/zap"

	"github.com/muralianand12345/pepper-bot/internal/audio"
	"github.com/muralianand12345/pepper-bot/internal/nodes"
)

// PlayCommand resolves a query and starts or extends playback in the caller's
// voice channel.
type PlayCommand struct {
	logger   *zap.Logger
	state    *state.State
	manager  *audio.Manager
	registry *nodes.Registry
	resolver audio.Resolver
}

func NewPlayCommand(
	logger *zap.Logger,
	st *state.State,
	manager *audio.Manager,
	registry *nodes.Registry,
	resolver audio.Resolver,
) Command {
	return &PlayCommand{
		logger:   logger,
		state:    st,
		manager:  manager,
		registry: registry,
		resolver: resolver,
	}
}

func (c *PlayCommand) Name() string {
	return "play"
}

func (c *PlayCommand) Description() string {
	return "Play a song or add it to the queue"
}

func (c *PlayCommand) Options() []discord.CommandOption {
	return []discord.CommandOption{
		&discord.StringOption{
			OptionName:  "query",
			Description: "Song name or URL",
			Required:    true,
		},
	}
}

func (c *PlayCommand) Execute(ctx context.Context, s *session.Session, e *gateway.InteractionCreateEvent, data *discord.CommandInteraction) error {
	if e.GuildID == 0 {
		return respondError(s, e, c.logger, "This command can only be used in servers")
	}

	var query string
	for _, option := range data.Options {
		if option.Name == "query" {
			query = option.String()
		}
	}
	if query == "" {
		return respondError(s, e, c.logger, "Please provide a song name or URL")
	}

	userID := e.SenderID()
	voiceChannelID, err := c.userVoiceChannel(e.GuildID, userID)
	if err != nil {
		return respondError(s, e, c.logger, "Please join a voice channel first")
	}

	sess, err := c.ensureSession(ctx, e.GuildID, voiceChannelID, e.ChannelID, userID)
	if err != nil {
		c.logger.Error("Failed to create playback session",
			zap.Error(err),
			zap.Stringer("guild_id", e.GuildID))

		return respondError(s, e, c.logger, "No audio nodes are available right now")
	}

	tracks, err := c.resolver.Resolve(ctx, query)
	if err != nil {
		if errors.Is(err, audio.ErrNoTracks) {
			return respondError(s, e, c.logger, "No results found for: "+query)
		}
		c.logger.Error("Track resolution failed", zap.Error(err), zap.String("query", query))

		return respondError(s, e, c.logger, "Failed to load that track, try again later")
	}

	for i := range tracks {
		tracks[i].RequesterID = userID
		sess.Queue().Add(tracks[i])
	}

	// Fresh playback intent supersedes any pending delayed teardown.
	sess.BumpCleanupToken()

	wasPlaying := sess.Playing() || sess.Paused()
	if !wasPlaying {
		if err := sess.Play(ctx); err != nil && !errors.Is(err, audio.ErrQueueEmpty) {
			c.logger.Error("Failed to start playback", zap.Error(err), zap.Stringer("guild_id", e.GuildID))

			return respondError(s, e, c.logger, "Failed to start playback")
		}
	}

	if len(tracks) > 1 {
		return respond(s, e, fmt.Sprintf("➕ Queued **%d** tracks", len(tracks)))
	}
	if wasPlaying {
		return respond(s, e, fmt.Sprintf("➕ Queued **%s** by %s", tracks[0].Title, tracks[0].Author))
	}

	return respond(s, e, fmt.Sprintf("▶️ Playing **%s** by %s", tracks[0].Title, tracks[0].Author))
}

// ensureSession returns the guild's session, creating and connecting one if
// needed. Node choice prefers the session's current node, then the caller's
// private node, then any shared pool node.
func (c *PlayCommand) ensureSession(ctx context.Context, guildID discord.GuildID, voiceChannelID, textChannelID discord.ChannelID, userID discord.UserID) (*audio.Session, error) {
	if sess, ok := c.manager.Session(guildID); ok {
		sess.SetTextChannelID(textChannelID)
		return sess, nil
	}

	nodeID, ok := c.registry.SelectNodeForSession(ctx, userID.String(), guildID)
	if !ok {
		nodeID, ok = c.manager.SharedNodeID()
		if !ok {
			return nil, errors.New("no connected audio nodes")
		}
	}

	sess, err := c.manager.CreateSession(guildID, voiceChannelID, textChannelID, nodeID)
	if err != nil {
		return nil, err
	}

	if sess.State() == audio.StateDisconnected {
		if err := sess.Connect(ctx); err != nil {
			c.manager.DestroySession(guildID)
			return nil, err
		}
	}

	return sess, nil
}

func (c *PlayCommand) userVoiceChannel(guildID discord.GuildID, userID discord.UserID) (discord.ChannelID, error) {
	voiceState, err := c.state.VoiceState(guildID, userID)
	if err == nil && voiceState != nil && voiceState.ChannelID.IsValid() {
		return voiceState.ChannelID, nil
	}

	// State cache miss; scan all voice states as a fallback.
	voiceStates, err := c.state.VoiceStates(guildID)
	if err != nil {
		return 0, fmt.Errorf("unable to query voice states: %w", err)
	}
	for _, vs := range voiceStates {
		if vs.UserID == userID && vs.ChannelID.IsValid() {
			return vs.ChannelID, nil
		}
	}

	return 0, errors.New("user is not in a voice channel")
}
