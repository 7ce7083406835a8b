package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/diamondburned/arikawa/v3/gateway"
	"github.com/diamondburned/arikawa/v3/state"
	"go.uber.org/zap"
)

var (
	// ErrDuplicateNode means a node with the same identifier already exists.
	ErrDuplicateNode = errors.New("node identifier already registered")
	// ErrUnknownNode means no node with the given identifier exists.
	ErrUnknownNode = errors.New("unknown node")
	// ErrNodeNotConnected means the selected node has no live connection.
	ErrNodeNotConnected = errors.New("node is not connected")
)

// Manager owns the node pool and the per-guild sessions, and routes node
// events to the registered handler.
type Manager struct {
	logger *zap.Logger
	st     *state.State

	mu       sync.RWMutex
	nodes    map[string]*Node
	shared   map[string]bool
	sessions map[discord.GuildID]*Session
	handler  EventHandler
}

// NewManager creates a Manager with an empty pool.
func NewManager(st *state.State, logger *zap.Logger) *Manager {
	return &Manager{
		logger:   logger.Named("audio"),
		st:       st,
		nodes:    make(map[string]*Node),
		shared:   make(map[string]bool),
		sessions: make(map[discord.GuildID]*Session),
	}
}

// SetHandler registers the single event handler. Later calls replace it.
func (m *Manager) SetHandler(h EventHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.handler != nil {
		m.logger.Warn("Replacing audio event handler")
	}
	m.handler = h
}

func (m *Manager) gateway() *gateway.Gateway {
	return m.st.Gateway()
}

func (m *Manager) botUserID() (discord.UserID, error) {
	me, err := m.st.Me()
	if err != nil {
		return 0, fmt.Errorf("failed to resolve bot user: %w", err)
	}

	return me.ID, nil
}

// AddNode registers a node configuration without connecting it.
func (m *Manager) AddNode(opts NodeOptions) error {
	return m.addNode(opts, false)
}

// AddSharedNode registers a node belonging to the shared default pool.
func (m *Manager) AddSharedNode(opts NodeOptions) error {
	return m.addNode(opts, true)
}

func (m *Manager) addNode(opts NodeOptions, shared bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.nodes[opts.Identifier]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateNode, opts.Identifier)
	}

	m.nodes[opts.Identifier] = newNode(opts, m, m.logger)
	if shared {
		m.shared[opts.Identifier] = true
	}
	m.logger.Info("Node registered", zap.String("nodeID", opts.Identifier), zap.Bool("shared", shared))

	return nil
}

// ConnectNode dials the node with the given identifier.
func (m *Manager) ConnectNode(ctx context.Context, identifier string) error {
	m.mu.RLock()
	node, ok := m.nodes[identifier]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownNode, identifier)
	}

	botID, err := m.botUserID()
	if err != nil {
		return err
	}

	return node.Connect(ctx, botID)
}

// RemoveNode closes the node and forgets it.
func (m *Manager) RemoveNode(identifier string) error {
	m.mu.Lock()
	node, ok := m.nodes[identifier]
	delete(m.nodes, identifier)
	delete(m.shared, identifier)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownNode, identifier)
	}

	node.Close()
	m.logger.Info("Node removed", zap.String("nodeID", identifier))

	return nil
}

// NodeConnected reports whether the identified node has a live connection.
func (m *Manager) NodeConnected(identifier string) bool {
	m.mu.RLock()
	node, ok := m.nodes[identifier]
	m.mu.RUnlock()

	return ok && node.Connected()
}

// SharedNodeID returns a connected node from the shared default pool.
func (m *Manager) SharedNodeID() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for id := range m.shared {
		if m.nodes[id].Connected() {
			return id, true
		}
	}

	return "", false
}

// BoundSessions counts live sessions bound to the identified node.
func (m *Manager) BoundSessions(identifier string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, s := range m.sessions {
		if s.NodeID() == identifier {
			count++
		}
	}

	return count
}

// CreateSession creates the guild's session bound to the identified node, or
// returns the existing one.
func (m *Manager) CreateSession(guildID discord.GuildID, voiceChannelID, textChannelID discord.ChannelID, nodeID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, exists := m.sessions[guildID]; exists {
		return s, nil
	}

	node, ok := m.nodes[nodeID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNode, nodeID)
	}
	if !node.Connected() {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotConnected, nodeID)
	}

	s := &Session{
		manager:        m,
		guildID:        guildID,
		voiceChannelID: voiceChannelID,
		textChannelID:  textChannelID,
		queue:          NewQueue(),
		node:           node,
	}
	m.sessions[guildID] = s

	m.logger.Info("Session created",
		zap.Stringer("guildID", guildID),
		zap.Stringer("voiceChannelID", voiceChannelID),
		zap.String("nodeID", nodeID))

	return s, nil
}

// Session returns the guild's live session.
func (m *Manager) Session(guildID discord.GuildID) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[guildID]

	return s, ok
}

// SessionNodeID returns the node the guild's live session is bound to.
func (m *Manager) SessionNodeID(guildID discord.GuildID) (string, bool) {
	s, ok := m.Session(guildID)
	if !ok {
		return "", false
	}

	return s.NodeID(), true
}

// Sessions returns a snapshot of all live sessions.
func (m *Manager) Sessions() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}

	return out
}

// DestroySession tears down the guild's session: node player removed, voice
// channel left, PlayerDestroy emitted. Calling it for an absent guild is a
// no-op, which makes every teardown path idempotent.
func (m *Manager) DestroySession(guildID discord.GuildID) {
	m.mu.Lock()
	s, ok := m.sessions[guildID]
	delete(m.sessions, guildID)
	m.mu.Unlock()

	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.node.destroyPlayer(ctx, guildID); err != nil {
		m.logger.Warn("Failed to destroy node player", zap.Stringer("guildID", guildID), zap.Error(err))
	}

	if err := m.gateway().Send(ctx, &gateway.UpdateVoiceStateCommand{
		GuildID:   guildID,
		ChannelID: discord.NullChannelID,
	}); err != nil {
		m.logger.Warn("Failed to leave voice channel", zap.Stringer("guildID", guildID), zap.Error(err))
	}

	s.mu.Lock()
	s.state = StateDisconnected
	s.playing = false
	s.mu.Unlock()

	m.logger.Info("Session destroyed", zap.Stringer("guildID", guildID))
	m.emit(func(h EventHandler) { h.OnPlayerDestroy(s) })
}

func (m *Manager) emit(fn func(EventHandler)) {
	m.mu.RLock()
	h := m.handler
	m.mu.RUnlock()

	if h != nil {
		fn(h)
	}
}

func (m *Manager) emitStateUpdate(s *Session, old, current ConnectionState) {
	m.emit(func(h EventHandler) { h.OnStateUpdate(s, old, current) })
}

// handleNodeMessage routes a decoded node message to the owning session.
func (m *Manager) handleNodeMessage(n *Node, msg nodeMessage) {
	switch msg.Op {
	case "playerUpdate":
		if s, ok := m.sessionByWireID(msg.GuildID); ok {
			s.setPosition(time.Duration(msg.State.Position) * time.Millisecond)
		}
	case "event":
		m.handlePlayerEvent(n, msg)
	case "stats":
		// Node load statistics are not used for selection in this pool.
	}
}

func (m *Manager) handlePlayerEvent(n *Node, msg nodeMessage) {
	s, ok := m.sessionByWireID(msg.GuildID)
	if !ok {
		return
	}

	switch msg.Type {
	case "TrackStartEvent":
		s.markTrackStarted()
		track := s.CurrentTrack()
		m.emit(func(h EventHandler) { h.OnTrackStart(s, track) })

	case "TrackEndEvent":
		ended := s.CurrentTrack()
		s.markTrackEnded()
		reason := TrackEndReason(msg.Reason)
		m.emit(func(h EventHandler) { h.OnTrackEnd(s, ended, reason) })

		if !reason.mayStartNext() {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.Play(ctx); err != nil {
			if errors.Is(err, ErrQueueEmpty) {
				m.emit(func(h EventHandler) { h.OnQueueEnd(s, ended) })

				return
			}
			m.logger.Error("Failed to start next track",
				zap.Stringer("guildID", s.GuildID()), zap.Error(err))
		}

	case "TrackExceptionEvent":
		m.logger.Warn("Track exception reported by node",
			zap.String("nodeID", n.Options().Identifier), zap.String("guildID", msg.GuildID))

	case "WebSocketClosedEvent":
		m.logger.Warn("Voice websocket closed",
			zap.String("nodeID", n.Options().Identifier), zap.String("guildID", msg.GuildID))
	}
}

// handleNodeDisconnect marks affected sessions disconnected. Reconnection and
// retry bookkeeping are the node registry's concern, not the manager's.
func (m *Manager) handleNodeDisconnect(n *Node) {
	id := n.Options().Identifier
	m.logger.Warn("Node disconnected", zap.String("nodeID", id))

	m.mu.RLock()
	var affected []*Session
	for _, s := range m.sessions {
		if s.NodeID() == id {
			affected = append(affected, s)
		}
	}
	m.mu.RUnlock()

	for _, s := range affected {
		s.mu.Lock()
		old := s.state
		s.state = StateDisconnected
		s.mu.Unlock()
		if old != StateDisconnected {
			m.emitStateUpdate(s, old, StateDisconnected)
		}
	}
}

func (m *Manager) sessionByWireID(raw string) (*Session, bool) {
	sf, err := discord.ParseSnowflake(raw)
	if err != nil {
		return nil, false
	}

	return m.Session(discord.GuildID(sf))
}
