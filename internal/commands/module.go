// Package commands provides the slash command implementations and their
// shared infrastructure.
package commands

import (
	"go.uber.org/fx"
)

// Module provides command-related dependencies.
var Module = fx.Module("commands",
	fx.Provide(
		NewCommandManager,
		fx.Annotate(
			NewPlayCommand,
			fx.ResultTags(`group:"commands"`),
		),
		fx.Annotate(
			NewStopCommand,
			fx.ResultTags(`group:"commands"`),
		),
		fx.Annotate(
			NewPauseCommand,
			fx.ResultTags(`group:"commands"`),
		),
		fx.Annotate(
			NewResumeCommand,
			fx.ResultTags(`group:"commands"`),
		),
		fx.Annotate(
			NewSkipCommand,
			fx.ResultTags(`group:"commands"`),
		),
		fx.Annotate(
			NewNowPlayingCommand,
			fx.ResultTags(`group:"commands"`),
		),
		fx.Annotate(
			NewNodeCommand,
			fx.ResultTags(`group:"commands"`),
		),
		fx.Annotate(
			NewAlwaysOnCommand,
			fx.ResultTags(`group:"commands"`),
		),
		fx.Annotate(
			NewPingCommand,
			fx.ResultTags(`group:"commands"`),
		),
	),
)
