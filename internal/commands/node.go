package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/diamondburned/arikawa/v3/api"
	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/diamondburned/arikawa/v3/gateway"
	"github.com/diamondburned/arikawa/v3/session"
	"github.com/diamondburned/arikawa/v3/utils/json/option"
	"go.uber.org/zap"

	"github.com/muralianand12345/pepper-bot/internal/audio"
	"github.com/muralianand12345/pepper-bot/internal/nodes"
)

// NodeCommand manages the caller's private audio node.
type NodeCommand struct {
	logger   *zap.Logger
	appID    discord.AppID
	registry *nodes.Registry
}

func NewNodeCommand(logger *zap.Logger, appID discord.AppID, registry *nodes.Registry) Command {
	return &NodeCommand{
		logger:   logger,
		appID:    appID,
		registry: registry,
	}
}

func (c *NodeCommand) Name() string {
	return "node"
}

func (c *NodeCommand) Description() string {
	return "Manage your private audio node"
}

func (c *NodeCommand) Options() []discord.CommandOption {
	return []discord.CommandOption{
		&discord.SubcommandOption{
			OptionName:  "add",
			Description: "Register your own audio node",
			Options: []discord.CommandOptionValue{
				&discord.StringOption{
					OptionName:  "host",
					Description: "Node hostname or IP address",
					Required:    true,
				},
				&discord.IntegerOption{
					OptionName:  "port",
					Description: "Node port",
					Required:    true,
				},
				&discord.StringOption{
					OptionName:  "password",
					Description: "Node password",
					Required:    true,
				},
				&discord.BooleanOption{
					OptionName:  "secure",
					Description: "Use TLS when connecting",
				},
				&discord.BooleanOption{
					OptionName:  "fallback",
					Description: "Fall back to the shared pool if your node keeps failing",
				},
			},
		},
		&discord.SubcommandOption{
			OptionName:  "remove",
			Description: "Remove your private audio node",
		},
		&discord.SubcommandOption{
			OptionName:  "status",
			Description: "Show your private audio node's health",
		},
	}
}

func (c *NodeCommand) Execute(ctx context.Context, s *session.Session, e *gateway.InteractionCreateEvent, data *discord.CommandInteraction) error {
	if len(data.Options) == 0 {
		return respondError(s, e, c.logger, "Missing subcommand")
	}

	sub := data.Options[0]
	ownerID := e.SenderID().String()

	switch sub.Name {
	case "add":
		return c.handleAdd(ctx, s, e, sub.Options, ownerID)
	case "remove":
		return c.handleRemove(ctx, s, e, ownerID)
	case "status":
		return c.handleStatus(ctx, s, e, ownerID)
	default:
		return respondError(s, e, c.logger, "Unknown subcommand: "+sub.Name)
	}
}

func (c *NodeCommand) handleAdd(ctx context.Context, s *session.Session, e *gateway.InteractionCreateEvent, opts []discord.CommandInteractionOption, ownerID string) error {
	nodeOpts := audio.NodeOptions{}
	autoFallback := false

	for _, opt := range opts {
		switch opt.Name {
		case "host":
			nodeOpts.Host = opt.String()
		case "port":
			port, err := opt.IntValue()
			if err != nil || port <= 0 || port > 65535 {
				return respondError(s, e, c.logger, "Port must be between 1 and 65535")
			}
			nodeOpts.Port = int(port)
		case "password":
			nodeOpts.Password = opt.String()
		case "secure":
			v, err := opt.BoolValue()
			if err == nil {
				nodeOpts.Secure = v
			}
		case "fallback":
			v, err := opt.BoolValue()
			if err == nil {
				autoFallback = v
			}
		}
	}

	// The connectivity test can take several seconds, so defer the response
	// and follow up when it finishes.
	err := s.RespondInteraction(e.ID, e.Token, api.InteractionResponse{
		Type: api.DeferredMessageInteractionWithSource,
		Data: &api.InteractionResponseData{
			Flags: discord.EphemeralMessage,
		},
	})
	if err != nil {
		return err
	}

	go func() {
		nodeID, regErr := c.registry.RegisterPrivateNode(ctx, ownerID, nodeOpts, autoFallback)

		var content string
		switch {
		case regErr == nil:
			content = fmt.Sprintf("✅ Private node registered as `%s`. New playback sessions you start will use it.", nodeID)
		case errors.Is(regErr, nodes.ErrInvalidHost),
			errors.Is(regErr, nodes.ErrAlreadyRegistered),
			errors.Is(regErr, nodes.ErrConnectionTimeout):
			content = "❌ " + regErr.Error()
		default:
			c.logger.Error("Private node registration failed", zap.String("ownerID", ownerID), zap.Error(regErr))
			content = "❌ Failed to register the node, try again later"
		}

		if _, err := s.FollowUpInteraction(c.appID, e.Token, api.InteractionResponseData{
			Content: option.NewNullableString(content),
			Flags:   discord.EphemeralMessage,
		}); err != nil {
			c.logger.Error("Failed to send node add follow-up", zap.Error(err))
		}
	}()

	return nil
}

func (c *NodeCommand) handleRemove(ctx context.Context, s *session.Session, e *gateway.InteractionCreateEvent, ownerID string) error {
	err := c.registry.UnregisterPrivateNode(ctx, ownerID)
	switch {
	case err == nil:
		return respond(s, e, "🗑 Private node removed")
	case errors.Is(err, nodes.ErrNotRegistered):
		return respondError(s, e, c.logger, "You don't have a private node registered")
	case errors.Is(err, nodes.ErrNodeInUse):
		return respondError(s, e, c.logger, "A session is still playing on your node, stop it first")
	default:
		c.logger.Error("Private node removal failed", zap.String("ownerID", ownerID), zap.Error(err))

		return respondError(s, e, c.logger, "Failed to remove the node, try again later")
	}
}

func (c *NodeCommand) handleStatus(ctx context.Context, s *session.Session, e *gateway.InteractionCreateEvent, ownerID string) error {
	status, err := c.registry.Status(ctx, ownerID)
	if errors.Is(err, nodes.ErrNotRegistered) {
		return respondError(s, e, c.logger, "You don't have a private node registered")
	}
	if err != nil {
		c.logger.Error("Private node status lookup failed", zap.String("ownerID", ownerID), zap.Error(err))

		return respondError(s, e, c.logger, "Failed to look up your node")
	}

	conn := "🔴 disconnected"
	if status.Connected {
		conn = "🟢 connected"
	}
	active := "enabled"
	if !status.IsActive {
		active = "disabled"
	}

	text := fmt.Sprintf("**Private node** `%s`\nEndpoint: `%s:%d` (secure: %t)\nConnection: %s\nState: %s, %d failed retries\nActive sessions: %d",
		status.Identifier, status.Host, status.Port, status.Secure, conn, active, status.RetryCount, status.BoundSessions)
	if status.LastError != "" {
		text += "\nLast error: " + status.LastError
	}

	return s.RespondInteraction(e.ID, e.Token, api.InteractionResponse{
		Type: api.MessageInteractionWithSource,
		Data: &api.InteractionResponseData{
			Content: option.NewNullableString(text),
			Flags:   discord.EphemeralMessage,
		},
	})
}
