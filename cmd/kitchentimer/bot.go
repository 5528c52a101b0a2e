package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/korjavin/kitchentimer/pkg/clock"
	"github.com/korjavin/kitchentimer/pkg/handlers"
	"github.com/korjavin/kitchentimer/pkg/lifecycle"
	"github.com/korjavin/kitchentimer/pkg/logger"
	"github.com/korjavin/kitchentimer/pkg/messages"
	"github.com/korjavin/kitchentimer/pkg/openai"
	"github.com/korjavin/kitchentimer/pkg/stats"
	"github.com/korjavin/kitchentimer/pkg/telegram"
	"github.com/spf13/cobra"
)

func newBotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bot",
		Short: "Run the Telegram bot",
		Args:  cobra.NoArgs,
		RunE:  runBotCmd,
	}
}

func runBotCmd(cmd *cobra.Command, _ []string) error {
	log := logger.Global
	log.Info("Starting KitchenTimer bot...")

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.RequireBot(); err != nil {
		return err
	}
	log.Info("Configuration loaded: %+v", cfg.Redacted())

	e, store, closeAll, err := openEngine(cfg, true)
	if err != nil {
		return err
	}
	defer closeAll()

	// Initialize OpenAI client, optional
	var generator messages.Generator
	if cfg.OpenAIAPIKey != "" {
		generator = openai.New(cfg.OpenAIAPIKey, cfg.OpenAIAPIBase, cfg.OpenAIModel)
	} else {
		log.Info("OPENAI_API_KEY not set, using fixed message templates")
	}
	messageService := messages.New(generator, cfg.MessageCacheTTL, clock.Real{})

	// Initialize Telegram bot
	bot, err := telegram.New(cfg.BotToken)
	if err != nil {
		return err
	}

	notifier := handlers.NewNotifier(bot, messageService)
	unsubscribe := e.Subscribe(notifier)
	defer unsubscribe()
	defer notifier.Wait()

	// Cooking statistics share the timer database
	statsService := stats.New(store)
	unsubscribeStats := e.Subscribe(statsService)
	defer unsubscribeStats()

	// Timers that ran out while the bot was down are announced and counted
	if missed := e.FlushPending(); missed > 0 {
		log.Info("Delivered %d timers that finished while the bot was down", missed)
	}

	h := handlers.New(e, bot, messageService, cfg.SelectionTTL, clock.Real{}).WithStats(statsService)

	// Handle graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// SIGUSR1/SIGUSR2 from a sleep hook suspend and resume the timers
	lifecycle.BindSignals(ctx, e)

	log.Info("Bot is now running. Press CTRL-C to exit.")
	if err := bot.Start(ctx, h.Routes()); err != nil {
		log.Error("Error running bot: %v", err)
		return err
	}
	log.Info("Shutting down...")
	return nil
}
