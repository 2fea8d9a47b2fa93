package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

const (
	DefaultHost           = "0.0.0.0"
	DefaultPort           = 18890
	DefaultRecommendLimit = 5
	DefaultSweepSpec      = "*/15 * * * *"
	DefaultDrainSpec      = "*/5 * * * *"
	DefaultBusBuffer      = 64
)

type Config struct {
	Gateway   GatewayConfig   `json:"gateway"`
	Store     StoreConfig     `json:"store"`
	Recommend RecommendConfig `json:"recommend"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Channels  ChannelsConfig  `json:"channels"`
}

type GatewayConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

type StoreConfig struct {
	DBPath string `json:"dbPath,omitempty"`
	Seed   bool   `json:"seed"`
}

type RecommendConfig struct {
	Limit int `json:"limit"`
}

type SchedulerConfig struct {
	// Cron specs for the proactive sweep and queue drain jobs.
	SweepSpec string `json:"sweepSpec,omitempty"`
	DrainSpec string `json:"drainSpec,omitempty"`
}

type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram"`
}

type TelegramConfig struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token"`
	Proxy   string `json:"proxy,omitempty"`
	// Chats maps user IDs to Telegram chat IDs for proactive delivery.
	Chats map[string]string `json:"chats,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Gateway: GatewayConfig{
			Host: DefaultHost,
			Port: DefaultPort,
		},
		Store: StoreConfig{
			DBPath: filepath.Join(ConfigDir(), "nudge.db"),
			Seed:   true,
		},
		Recommend: RecommendConfig{
			Limit: DefaultRecommendLimit,
		},
		Scheduler: SchedulerConfig{
			SweepSpec: DefaultSweepSpec,
			DrainSpec: DefaultDrainSpec,
		},
		Channels: ChannelsConfig{},
	}
}

func ConfigDir() string {
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return filepath.Join(home, ".nudge")
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if host := os.Getenv("NUDGE_GATEWAY_HOST"); host != "" {
		cfg.Gateway.Host = host
	}
	if port := os.Getenv("NUDGE_GATEWAY_PORT"); port != "" {
		if parsed, err := strconv.Atoi(port); err == nil {
			cfg.Gateway.Port = parsed
		}
	}
	if dbPath := os.Getenv("NUDGE_DB_PATH"); dbPath != "" {
		cfg.Store.DBPath = dbPath
	}
	if token := os.Getenv("NUDGE_TELEGRAM_TOKEN"); token != "" {
		cfg.Channels.Telegram.Token = token
	}
	if enabled := os.Getenv("NUDGE_TELEGRAM_ENABLED"); enabled != "" {
		if parsed, err := strconv.ParseBool(enabled); err == nil {
			cfg.Channels.Telegram.Enabled = parsed
		}
	}
	if spec := os.Getenv("NUDGE_SWEEP_SPEC"); spec != "" {
		cfg.Scheduler.SweepSpec = spec
	}
	if spec := os.Getenv("NUDGE_DRAIN_SPEC"); spec != "" {
		cfg.Scheduler.DrainSpec = spec
	}

	if cfg.Store.DBPath == "" {
		cfg.Store.DBPath = DefaultConfig().Store.DBPath
	}
	if cfg.Recommend.Limit <= 0 {
		cfg.Recommend.Limit = DefaultRecommendLimit
	}
	if cfg.Scheduler.SweepSpec == "" {
		cfg.Scheduler.SweepSpec = DefaultSweepSpec
	}
	if cfg.Scheduler.DrainSpec == "" {
		cfg.Scheduler.DrainSpec = DefaultDrainSpec
	}

	return cfg, nil
}

func SaveConfig(cfg *Config) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(ConfigPath(), data, 0644)
}
