// Package main provides the entry point for the Pepper music bot.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/fx"

	"github.com/muralianand12345/pepper-bot/internal/activity"
	"github.com/muralianand12345/pepper-bot/internal/app"
	"github.com/muralianand12345/pepper-bot/internal/audio"
	"github.com/muralianand12345/pepper-bot/internal/bot"
	"github.com/muralianand12345/pepper-bot/internal/cleanup"
	"github.com/muralianand12345/pepper-bot/internal/commands"
	"github.com/muralianand12345/pepper-bot/internal/config"
	"github.com/muralianand12345/pepper-bot/internal/discord"
	"github.com/muralianand12345/pepper-bot/internal/infrastructure"
	"github.com/muralianand12345/pepper-bot/internal/nodes"
	"github.com/muralianand12345/pepper-bot/internal/nowplaying"
	"github.com/muralianand12345/pepper-bot/internal/storage"
	"github.com/muralianand12345/pepper-bot/internal/voicestatus"
	pkginfra "github.com/muralianand12345/pepper-bot/pkg/infrastructure"
)

func main() {
	configPath := "config.yaml"
	if p := os.Getenv("PEPPER_CONFIG"); p != "" {
		configPath = p
	}

	application := app.New(
		// Core modules
		config.Module,
		infrastructure.LoggerModule,

		// External service modules
		discord.Module,
		storage.Module,

		// Playback engine
		audio.Module,
		nodes.Module,

		// Presentation and lifecycle components
		nowplaying.Module,
		activity.Module,
		voicestatus.Module,
		cleanup.Module,

		// Application modules
		commands.Module,
		bot.Module,

		// Supply the config path
		fx.Supply(configPath),

		// Configure Fx to use our Zap logger for its own internal logging
		fx.WithLogger(pkginfra.NewFxLoggerAdapter),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go application.Run()

	sig := <-sigCh
	fmt.Printf("Received signal: %s, initiating shutdown.\n", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	err := application.Stop(shutdownCtx)
	cancel()

	if err != nil {
		fmt.Printf("Error during shutdown: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Application has shut down gracefully.")
}
