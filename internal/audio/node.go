package audio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// NodeOptions identifies and authenticates one audio backend node.
type NodeOptions struct {
	Identifier string
	Host       string
	Port       int
	Password   string
	Secure     bool
}

// Node is a websocket connection to one audio backend. The node performs the
// actual fetching and transcoding; this client only carries control messages
// and receives playback events.
type Node struct {
	opts   NodeOptions
	logger *zap.Logger
	sink   messageSink
	http   *http.Client

	mu        sync.Mutex
	conn      *websocket.Conn
	sessionID string
	connected bool
	closed    bool
}

// messageSink receives decoded node messages. The Manager implements it.
type messageSink interface {
	handleNodeMessage(n *Node, msg nodeMessage)
	handleNodeDisconnect(n *Node)
}

// nodeMessage is the wire envelope for every message a node sends.
type nodeMessage struct {
	Op        string `json:"op"`
	SessionID string `json:"sessionId,omitempty"`
	Type      string `json:"type,omitempty"`
	GuildID   string `json:"guildId,omitempty"`
	Reason    string `json:"reason,omitempty"`
	State     struct {
		Position  int64 `json:"position"`
		Connected bool  `json:"connected"`
	} `json:"state,omitempty"`
	Track *restTrack `json:"track,omitempty"`
}

func newNode(opts NodeOptions, sink messageSink, logger *zap.Logger) *Node {
	return &Node{
		opts:   opts,
		logger: logger.Named("node").With(zap.String("nodeID", opts.Identifier)),
		sink:   sink,
		http:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Options returns the node's configuration.
func (n *Node) Options() NodeOptions {
	return n.opts
}

// Connected reports whether the node handshake has completed.
func (n *Node) Connected() bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	return n.connected
}

// Connect dials the node websocket and waits for the handshake to be sent.
// The node signals readiness asynchronously with its first "ready" message,
// which flips Connected.
func (n *Node) Connect(ctx context.Context, botUserID discord.UserID) error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()

		return fmt.Errorf("node %s is closed", n.opts.Identifier)
	}
	if n.conn != nil {
		n.mu.Unlock()

		return nil
	}
	n.mu.Unlock()

	scheme := "ws"
	if n.opts.Secure {
		scheme = "wss"
	}
	endpoint := fmt.Sprintf("%s://%s:%d/v4/websocket", scheme, n.opts.Host, n.opts.Port)

	headers := http.Header{}
	headers.Set("Authorization", n.opts.Password)
	headers.Set("User-Id", botUserID.String())
	headers.Set("Client-Name", "pepper-bot/1.0")

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, endpoint, headers)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("failed to dial node %s: %w", n.opts.Identifier, err)
	}

	n.mu.Lock()
	n.conn = conn
	n.mu.Unlock()

	go n.readLoop(conn)

	return nil
}

func (n *Node) readLoop(conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			n.mu.Lock()
			wasConnected := n.connected
			n.connected = false
			if n.conn == conn {
				n.conn = nil
			}
			closed := n.closed
			n.mu.Unlock()

			if !closed {
				n.logger.Warn("Node socket closed", zap.Error(err))
			}
			if wasConnected {
				n.sink.handleNodeDisconnect(n)
			}

			return
		}

		var msg nodeMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			n.logger.Debug("Discarding malformed node message", zap.Error(err))

			continue
		}

		if msg.Op == "ready" {
			n.mu.Lock()
			n.sessionID = msg.SessionID
			n.connected = true
			n.mu.Unlock()
			n.logger.Info("Node ready", zap.String("sessionID", msg.SessionID))

			continue
		}

		n.sink.handleNodeMessage(n, msg)
	}
}

// Close tears the connection down and prevents reconnects.
func (n *Node) Close() {
	n.mu.Lock()
	n.closed = true
	n.connected = false
	conn := n.conn
	n.conn = nil
	n.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}

// restTrack is the node's JSON representation of a track.
type restTrack struct {
	Encoded string `json:"encoded"`
	Info    struct {
		Identifier string `json:"identifier"`
		Title      string `json:"title"`
		Author     string `json:"author"`
		Length     int64  `json:"length"`
		IsStream   bool   `json:"isStream"`
		URI        string `json:"uri"`
		ArtworkURL string `json:"artworkUrl"`
	} `json:"info"`
}

func (rt *restTrack) toTrack() Track {
	return Track{
		Encoded:    rt.Encoded,
		Identifier: rt.Info.Identifier,
		Title:      rt.Info.Title,
		Author:     rt.Info.Author,
		URI:        rt.Info.URI,
		ArtworkURL: rt.Info.ArtworkURL,
		Duration:   time.Duration(rt.Info.Length) * time.Millisecond,
		IsStream:   rt.Info.IsStream,
	}
}

// loadResult is the node's response to a loadtracks call.
type loadResult struct {
	LoadType string          `json:"loadType"`
	Data     json.RawMessage `json:"data"`
}

// playerUpdate is the body of a player PATCH. Nil fields are left untouched
// by the node.
type playerUpdate struct {
	Track  *playerTrack `json:"track,omitempty"`
	Paused *bool        `json:"paused,omitempty"`
	Voice  *voiceServer `json:"voice,omitempty"`
}

type playerTrack struct {
	Encoded *string `json:"encoded"`
}

type voiceServer struct {
	Token     string `json:"token"`
	Endpoint  string `json:"endpoint"`
	SessionID string `json:"sessionId"`
}

func (n *Node) restURL(path string) string {
	scheme := "http"
	if n.opts.Secure {
		scheme = "https"
	}

	return fmt.Sprintf("%s://%s:%d%s", scheme, n.opts.Host, n.opts.Port, path)
}

func (n *Node) rest(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, n.restURL(path), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", n.opts.Password)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := n.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

		return fmt.Errorf("node %s returned %d: %s", n.opts.Identifier, resp.StatusCode, data)
	}

	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}

	return nil
}

// loadTracks asks the node to resolve a search query or URL.
func (n *Node) loadTracks(ctx context.Context, identifier string) (*loadResult, error) {
	var result loadResult
	path := "/v4/loadtracks?identifier=" + url.QueryEscape(identifier)
	if err := n.rest(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

// updatePlayer patches the node-side player for a guild.
func (n *Node) updatePlayer(ctx context.Context, guildID discord.GuildID, update playerUpdate) error {
	n.mu.Lock()
	sessionID := n.sessionID
	n.mu.Unlock()
	if sessionID == "" {
		return fmt.Errorf("node %s has no session yet", n.opts.Identifier)
	}

	path := fmt.Sprintf("/v4/sessions/%s/players/%s?noReplace=false", sessionID, guildID.String())

	return n.rest(ctx, http.MethodPatch, path, update, nil)
}

// destroyPlayer removes the node-side player for a guild.
func (n *Node) destroyPlayer(ctx context.Context, guildID discord.GuildID) error {
	n.mu.Lock()
	sessionID := n.sessionID
	n.mu.Unlock()
	if sessionID == "" {
		return nil
	}

	path := fmt.Sprintf("/v4/sessions/%s/players/%s", sessionID, guildID.String())

	return n.rest(ctx, http.MethodDelete, path, nil, nil)
}
