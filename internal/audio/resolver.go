package audio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// ErrNoTracks means the query resolved to nothing playable.
var ErrNoTracks = errors.New("no tracks found")

// Resolver turns a user query into playable tracks. Search and recommendation
// providers are external; this is the only surface they plug into.
type Resolver interface {
	Resolve(ctx context.Context, query string) ([]Track, error)
}

// nodeResolver resolves queries through whichever pool node is connected.
type nodeResolver struct {
	manager *Manager
	logger  *zap.Logger
}

// NewResolver returns a Resolver backed by the manager's node pool.
func NewResolver(m *Manager, logger *zap.Logger) Resolver {
	return &nodeResolver{manager: m, logger: logger.Named("resolver")}
}

func (r *nodeResolver) Resolve(ctx context.Context, query string) ([]Track, error) {
	identifier := query
	if !strings.HasPrefix(query, "http://") && !strings.HasPrefix(query, "https://") {
		identifier = "ytsearch:" + query
	}

	node, err := r.pickNode()
	if err != nil {
		return nil, err
	}

	result, err := node.loadTracks(ctx, identifier)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %q: %w", query, err)
	}

	return decodeLoadResult(result)
}

func (r *nodeResolver) pickNode() (*Node, error) {
	r.manager.mu.RLock()
	defer r.manager.mu.RUnlock()

	for _, node := range r.manager.nodes {
		if node.Connected() {
			return node, nil
		}
	}

	return nil, errors.New("no connected nodes available")
}

func decodeLoadResult(result *loadResult) ([]Track, error) {
	switch result.LoadType {
	case "track":
		var rt restTrack
		if err := json.Unmarshal(result.Data, &rt); err != nil {
			return nil, err
		}

		return []Track{rt.toTrack()}, nil

	case "search":
		var rts []restTrack
		if err := json.Unmarshal(result.Data, &rts); err != nil {
			return nil, err
		}
		if len(rts) == 0 {
			return nil, ErrNoTracks
		}
		// Search results are ranked; take the best match.
		return []Track{rts[0].toTrack()}, nil

	case "playlist":
		var playlist struct {
			Tracks []restTrack `json:"tracks"`
		}
		if err := json.Unmarshal(result.Data, &playlist); err != nil {
			return nil, err
		}
		tracks := make([]Track, 0, len(playlist.Tracks))
		for i := range playlist.Tracks {
			tracks = append(tracks, playlist.Tracks[i].toTrack())
		}
		if len(tracks) == 0 {
			return nil, ErrNoTracks
		}

		return tracks, nil

	case "empty":
		return nil, ErrNoTracks

	case "error":
		var exception struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(result.Data, &exception)

		return nil, fmt.Errorf("node failed to load tracks: %s", exception.Message)

	default:
		return nil, fmt.Errorf("unexpected load type %q", result.LoadType)
	}
}
