package bot

import (
	"go.uber.org/fx"

	"github.com/muralianand12345/pepper-bot/internal/activity"
	"github.com/muralianand12345/pepper-bot/internal/cleanup"
)

// Module provides bot service dependencies.
var Module = fx.Module("bot",
	fx.Provide(
		NewBot,
		// The activity monitor destroys sessions through the cleanup
		// coordinator so teardown notices stay consistent.
		func(c *cleanup.Coordinator) activity.Destroyer { return c },
	),
)
