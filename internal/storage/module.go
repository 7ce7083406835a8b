package storage

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/muralianand12345/pepper-bot/internal/config"
)

// Module provides persistence dependencies.
var Module = fx.Module("storage",
	fx.Provide(func(cfg *config.Config, logger *zap.Logger) (*Store, error) {
		return NewStore(cfg.Storage.Path, logger)
	}),
)
