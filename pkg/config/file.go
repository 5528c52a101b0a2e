package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file. Every field is optional.
type FileConfig struct {
	Telegram TelegramConfig `toml:"telegram"`
	OpenAI   OpenAIConfig   `toml:"openai"`
	Storage  StorageConfig  `toml:"storage"`
	Timers   TimersConfig   `toml:"timers"`
	Log      LogConfig      `toml:"log"`
}

// TelegramConfig maps bot settings.
type TelegramConfig struct {
	Token        *string `toml:"token"`
	SelectionTTL *string `toml:"selection-ttl"`
}

// OpenAIConfig maps completion phrasing settings.
type OpenAIConfig struct {
	APIKey          *string `toml:"api-key"`
	APIBase         *string `toml:"api-base"`
	Model           *string `toml:"model"`
	MessageCacheTTL *string `toml:"message-cache-ttl"`
}

// StorageConfig maps snapshot storage settings.
type StorageConfig struct {
	DataDir    *string `toml:"data-dir"`
	Key        *string `toml:"key"`
	Codec      *string `toml:"codec"`
	GCInterval *string `toml:"gc-interval"`
}

// TimersConfig maps engine settings.
type TimersConfig struct {
	CatchUpOnLoad *bool `toml:"catch-up-on-load"`
}

// LogConfig maps logging settings.
type LogConfig struct {
	Level *string `toml:"level"`
}

// LoadFile reads a TOML config from the given path. Missing file is not an error.
func LoadFile(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

func (f FileConfig) apply(cfg *Config) error {
	setString(&cfg.BotToken, f.Telegram.Token)
	setString(&cfg.OpenAIAPIKey, f.OpenAI.APIKey)
	setString(&cfg.OpenAIAPIBase, f.OpenAI.APIBase)
	setString(&cfg.OpenAIModel, f.OpenAI.Model)
	setString(&cfg.DataDir, f.Storage.DataDir)
	setString(&cfg.TimersKey, f.Storage.Key)
	setString(&cfg.TimerCodec, f.Storage.Codec)
	setString(&cfg.LogLevel, f.Log.Level)
	if f.Timers.CatchUpOnLoad != nil {
		cfg.CatchUpOnLoad = *f.Timers.CatchUpOnLoad
	}

	durations := []struct {
		name string
		src  *string
		dst  *time.Duration
	}{
		{"telegram.selection-ttl", f.Telegram.SelectionTTL, &cfg.SelectionTTL},
		{"openai.message-cache-ttl", f.OpenAI.MessageCacheTTL, &cfg.MessageCacheTTL},
		{"storage.gc-interval", f.Storage.GCInterval, &cfg.GCInterval},
	}
	for _, d := range durations {
		if d.src == nil {
			continue
		}
		parsed, err := time.ParseDuration(*d.src)
		if err != nil {
			return fmt.Errorf("%s: %w", d.name, err)
		}
		*d.dst = parsed
	}
	return nil
}

func setString(dst *string, src *string) {
	if src != nil && *src != "" {
		*dst = *src
	}
}
