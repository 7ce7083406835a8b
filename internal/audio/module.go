// Package audio wraps the remote audio backend nodes: a websocket control
// client per node, one playback session per guild, and the event stream the
// rest of the bot reacts to.
package audio

import (
	"context"

	"github.com/diamondburned/arikawa/v3/state"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/muralianand12345/pepper-bot/internal/config"
)

// Module provides the audio engine dependencies.
var Module = fx.Module("audio",
	fx.Provide(
		NewManagerProvider,
		NewResolver,
	),
)

// ManagerParams holds dependencies for NewManagerProvider.
type ManagerParams struct {
	fx.In
	St     *state.State
	Cfg    *config.Config
	Logger *zap.Logger
	LC     fx.Lifecycle
}

// NewManagerProvider builds the Manager, registers the shared default pool
// from config and connects it once the gateway session is open.
func NewManagerProvider(params ManagerParams) *Manager {
	m := NewManager(params.St, params.Logger)

	for _, n := range params.Cfg.Lavalink.Nodes {
		if err := m.AddSharedNode(NodeOptions{
			Identifier: n.Identifier,
			Host:       n.Host,
			Port:       n.Port,
			Password:   n.Password,
			Secure:     n.Secure,
		}); err != nil {
			params.Logger.Error("Failed to register shared node",
				zap.String("nodeID", n.Identifier), zap.Error(err))
		}
	}

	params.LC.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			// Gateway identify may still be in flight; dial in the background
			// so startup is not serialized on node availability.
			go func() {
				for _, n := range params.Cfg.Lavalink.Nodes {
					if err := m.ConnectNode(context.Background(), n.Identifier); err != nil {
						params.Logger.Warn("Shared node connect failed",
							zap.String("nodeID", n.Identifier), zap.Error(err))
					}
				}
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			for _, s := range m.Sessions() {
				m.DestroySession(s.GuildID())
			}
			m.mu.Lock()
			for _, node := range m.nodes {
				node.Close()
			}
			m.mu.Unlock()

			return nil
		},
	})

	return m
}
