package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/korjavin/kitchentimer/pkg/logger"
	"github.com/korjavin/kitchentimer/pkg/persistence"
)

// Config holds all configuration for the application
type Config struct {
	// Telegram Bot configuration
	BotToken string

	// OpenAI configuration, optional; completion messages fall back to a
	// fixed template without it
	OpenAIAPIBase string
	OpenAIAPIKey  string
	OpenAIModel   string

	// Storage configuration
	DataDir    string
	TimersKey  string
	TimerCodec string
	GCInterval time.Duration

	// Engine configuration
	CatchUpOnLoad bool

	// Cache lifetimes
	SelectionTTL    time.Duration
	MessageCacheTTL time.Duration

	LogLevel string

	// ConfigFile is the TOML file that was consulted, whether or not it existed
	ConfigFile string
}

// LookupFunc reads one environment variable
type LookupFunc func(key string) (string, bool)

// Defaults returns the built-in configuration
func Defaults() *Config {
	return &Config{
		OpenAIAPIBase:   "https://api.openai.com/v1",
		OpenAIModel:     "gpt-3.5-turbo",
		DataDir:         DefaultDataDir(),
		TimersKey:       persistence.DefaultKey,
		TimerCodec:      "json",
		GCInterval:      10 * time.Minute,
		CatchUpOnLoad:   true,
		SelectionTTL:    10 * time.Minute,
		MessageCacheTTL: time.Hour,
		LogLevel:        "info",
	}
}

// LoadFromEnv loads configuration from the .env file, the TOML config file
// and environment variables, later sources winning.
func LoadFromEnv() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.New("config").Warn("Error loading .env file: %v", err)
	}
	return Load(os.LookupEnv)
}

// Load builds a configuration from defaults, the TOML file and lookup
func Load(lookup LookupFunc) (*Config, error) {
	cfg := Defaults()

	cfg.ConfigFile = DefaultConfigPath()
	if path, ok := lookup("CONFIG_FILE"); ok && path != "" {
		cfg.ConfigFile = path
	}
	file, err := LoadFile(cfg.ConfigFile)
	if err != nil {
		return nil, err
	}
	if err := file.apply(cfg); err != nil {
		return nil, fmt.Errorf("config file %s: %w", cfg.ConfigFile, err)
	}

	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) applyEnv(lookup LookupFunc) error {
	strs := map[string]*string{
		"BOT_TOKEN":       &cfg.BotToken,
		"OPENAI_API_KEY":  &cfg.OpenAIAPIKey,
		"OPENAI_API_BASE": &cfg.OpenAIAPIBase,
		"OPENAI_MODEL":    &cfg.OpenAIModel,
		"DATA_DIR":        &cfg.DataDir,
		"TIMERS_KEY":      &cfg.TimersKey,
		"TIMER_CODEC":     &cfg.TimerCodec,
		"LOG_LEVEL":       &cfg.LogLevel,
	}
	for key, dst := range strs {
		if value, ok := lookup(key); ok && value != "" {
			*dst = value
		}
	}

	durations := map[string]*time.Duration{
		"GC_INTERVAL":       &cfg.GCInterval,
		"SELECTION_TTL":     &cfg.SelectionTTL,
		"MESSAGE_CACHE_TTL": &cfg.MessageCacheTTL,
	}
	for key, dst := range durations {
		value, ok := lookup(key)
		if !ok || value == "" {
			continue
		}
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = d
	}

	if value, ok := lookup("CATCH_UP_ON_LOAD"); ok && value != "" {
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("CATCH_UP_ON_LOAD: %w", err)
		}
		cfg.CatchUpOnLoad = b
	}
	return nil
}

// Validate checks values that would otherwise fail later
func (cfg *Config) Validate() error {
	if _, err := persistence.CodecByName(cfg.TimerCodec); err != nil {
		return fmt.Errorf("TIMER_CODEC: %w", err)
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		return fmt.Errorf("DATA_DIR must not be empty")
	}
	if strings.TrimSpace(cfg.TimersKey) == "" {
		return fmt.Errorf("TIMERS_KEY must not be empty")
	}
	if cfg.GCInterval <= 0 {
		return fmt.Errorf("GC_INTERVAL must be positive, got %v", cfg.GCInterval)
	}
	if cfg.SelectionTTL <= 0 {
		return fmt.Errorf("SELECTION_TTL must be positive, got %v", cfg.SelectionTTL)
	}
	if cfg.MessageCacheTTL < 0 {
		return fmt.Errorf("MESSAGE_CACHE_TTL must not be negative, got %v", cfg.MessageCacheTTL)
	}
	return nil
}

// RequireBot checks the settings the Telegram bot cannot run without
func (cfg *Config) RequireBot() error {
	if cfg.BotToken == "" {
		return fmt.Errorf("BOT_TOKEN environment variable is required")
	}
	return nil
}

// Codec returns the configured snapshot codec
func (cfg *Config) Codec() persistence.Codec {
	codec, err := persistence.CodecByName(cfg.TimerCodec)
	if err != nil {
		return persistence.JSON
	}
	return codec
}

// Redacted returns a copy safe to log
func (cfg *Config) Redacted() Config {
	logCfg := *cfg
	logCfg.BotToken = redact(logCfg.BotToken)
	logCfg.OpenAIAPIKey = redact(logCfg.OpenAIAPIKey)
	return logCfg
}

func redact(secret string) string {
	if len(secret) > 8 {
		return secret[:8] + "...REDACTED..."
	}
	if secret != "" {
		return "...REDACTED..."
	}
	return ""
}
