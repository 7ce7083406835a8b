package config

import (
	"fmt"
	"os"
	"time"

	"github.com/diamondburned/arikawa/v3/discord"
	"gopkg.in/yaml.v3"
)

// DiscordConfig stores Discord specific configurations.
type DiscordConfig struct {
	BotToken      string             `yaml:"bot_token"`
	ApplicationID *discord.Snowflake `yaml:"application_id"`
	GuildIDs      []string           `yaml:"guild_ids"`
}

// LavalinkNode describes one shared default audio node.
type LavalinkNode struct {
	Identifier string `yaml:"identifier"`
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	Password   string `yaml:"password"`
	Secure     bool   `yaml:"secure"`
}

// LavalinkConfig stores the shared default node pool.
type LavalinkConfig struct {
	Nodes []LavalinkNode `yaml:"nodes"`
}

// StorageConfig stores persistence settings.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// TimingConfig holds every delay and interval the playback core uses.
// It is not read from yaml; tests shrink these values to keep runs fast.
type TimingConfig struct {
	NodeTestTimeout      time.Duration
	NodeTestPollInterval time.Duration
	HealthPollInterval   time.Duration
	HealthPollLifetime   time.Duration
	ActivityCheck        time.Duration
	ActivityResponse     time.Duration
	NowPlayingInterval   time.Duration
	NowPlayingMinGap     time.Duration
	CleanupDelay         time.Duration
	RateLimitBackoff     time.Duration
}

// DefaultTiming returns the production timing constants.
func DefaultTiming() TimingConfig {
	return TimingConfig{
		NodeTestTimeout:      10 * time.Second,
		NodeTestPollInterval: 100 * time.Millisecond,
		HealthPollInterval:   5 * time.Second,
		HealthPollLifetime:   60 * time.Second,
		ActivityCheck:        6 * time.Hour,
		ActivityResponse:     5 * time.Minute,
		NowPlayingInterval:   15 * time.Second,
		NowPlayingMinGap:     5 * time.Second,
		CleanupDelay:         5 * time.Minute,
		RateLimitBackoff:     30 * time.Second,
	}
}

// Config stores the application configuration.
type Config struct {
	Discord  DiscordConfig  `yaml:"discord"`
	Lavalink LavalinkConfig `yaml:"lavalink"`
	Storage  StorageConfig  `yaml:"storage"`
	LogLevel string         `yaml:"log_level"`
	Timing   TimingConfig   `yaml:"-"`
}

// LoadConfig loads the configuration from the given file path.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	cfg := Config{Timing: DefaultTiming()}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if cfg.Storage.Path == "" {
		cfg.Storage.Path = "pepper.db"
	}

	for i, n := range cfg.Lavalink.Nodes {
		if n.Identifier == "" {
			return nil, fmt.Errorf("lavalink node %d has no identifier", i)
		}
	}

	return &cfg, nil
}
