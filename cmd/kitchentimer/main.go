// Package main provides the kitchentimer CLI: the Telegram bot plus a few
// commands for inspecting saved timers offline.
package main

import (
	"fmt"
	"os"

	"github.com/korjavin/kitchentimer/pkg/config"
	"github.com/korjavin/kitchentimer/pkg/engine"
	"github.com/korjavin/kitchentimer/pkg/logger"
	"github.com/korjavin/kitchentimer/pkg/persistence"
	"github.com/korjavin/kitchentimer/pkg/storage"
	"github.com/spf13/cobra"
)

var (
	flagDataDir  string
	flagCodec    string
	flagInMemory bool
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "kitchentimer",
		Short:         "Cooking timers for recipe steps",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "BadgerDB directory (overrides DATA_DIR)")
	rootCmd.PersistentFlags().StringVar(&flagCodec, "codec", "", "snapshot codec, json or cbor (overrides TIMER_CODEC)")
	rootCmd.PersistentFlags().BoolVar(&flagInMemory, "in-memory", false, "keep timers in memory only")

	rootCmd.AddCommand(newBotCmd())
	rootCmd.AddCommand(newExtractCmd())
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newClearCmd())
	rootCmd.AddCommand(newStatsCmd())

	return rootCmd
}

// loadConfig loads configuration and applies command line overrides
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if cmd.Flags().Changed("data-dir") {
		cfg.DataDir = flagDataDir
	}
	if cmd.Flags().Changed("codec") {
		cfg.TimerCodec = flagCodec
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger.SetLevel(logger.ParseLevel(cfg.LogLevel))
	return cfg, nil
}

func openStore(cfg *config.Config) (*storage.Store, error) {
	if flagInMemory {
		return storage.NewInMemory()
	}
	return storage.New(cfg.DataDir)
}

// openEngine opens storage and an engine restored from it. The returned
// function closes both. Long-running callers pass gc to compact the value
// log periodically.
func openEngine(cfg *config.Config, gc bool, opts ...engine.Option) (*engine.Engine, *storage.Store, func(), error) {
	store, err := openStore(cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	if gc && !flagInMemory {
		store.StartGCRoutine(cfg.GCInterval)
	}

	adapter := persistence.New(store,
		persistence.WithKey(cfg.TimersKey),
		persistence.WithCodec(cfg.Codec()),
	)
	opts = append([]engine.Option{engine.WithCatchUp(cfg.CatchUpOnLoad)}, opts...)
	e := engine.New(adapter, opts...)

	closeAll := func() {
		e.Close()
		if err := store.Close(); err != nil {
			logger.Global.Error("Failed to close storage: %v", err)
		}
	}
	return e, store, closeAll, nil
}
