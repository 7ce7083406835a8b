package voicestatus

import (
	"github.com/diamondburned/arikawa/v3/session"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module provides the voice status publisher.
var Module = fx.Module("voicestatus",
	fx.Provide(func(s *session.Session, logger *zap.Logger) *Publisher {
		return NewPublisher(s.Client, logger)
	}),
)
