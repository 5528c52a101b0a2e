package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/korjavin/kitchentimer/pkg/engine"
	"github.com/korjavin/kitchentimer/pkg/extract"
	"github.com/korjavin/kitchentimer/pkg/messages"
	"github.com/korjavin/kitchentimer/pkg/models"
	"github.com/korjavin/kitchentimer/pkg/timefmt"
	"github.com/spf13/cobra"
)

var (
	runStep   string
	runRecipe string
	runPick   int
)

func newExtractCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extract [text]",
		Short: "Show the cooking times found in step text (reads stdin without arguments)",
		RunE:  runExtractCmd,
	}
}

func runExtractCmd(cmd *cobra.Command, args []string) error {
	text, err := stepText(cmd, args)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	found := 0
	for c := range extract.Durations(text) {
		found++
		fmt.Fprintf(out, "%d\t%s\t%ds\t%q\n", found, c.Label, c.Seconds, c.MatchedText)
	}
	if found == 0 {
		fmt.Fprintln(out, "no cooking time found")
	}
	return nil
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [text]",
		Short: "Start a timer from step text and wait for it in the foreground",
		RunE:  runRunCmd,
	}
	cmd.Flags().StringVar(&runStep, "step", "Step 1", "step title")
	cmd.Flags().StringVar(&runRecipe, "recipe", "", "recipe title")
	cmd.Flags().IntVar(&runPick, "pick", 1, "which cooking time to use when the text has several")
	return cmd
}

func runRunCmd(cmd *cobra.Command, args []string) error {
	text, err := stepText(cmd, args)
	if err != nil {
		return err
	}
	candidates := extract.All(text)
	if len(candidates) == 0 {
		return fmt.Errorf("no cooking time found in %q", text)
	}
	if runPick < 1 || runPick > len(candidates) {
		return fmt.Errorf("--pick must be between 1 and %d", len(candidates))
	}
	chosen := candidates[runPick-1]

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	e, _, closeAll, err := openEngine(cfg, false)
	if err != nil {
		return err
	}
	defer closeAll()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	timer, err := e.StartTimer("cli/"+strings.ToLower(runStep), runStep, runRecipe, chosen.Seconds)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, messages.StartedText(timer))

	done := make(chan models.CompletionEvent, 1)
	unsubscribe := e.Subscribe(engine.ObserverFunc(func(event models.CompletionEvent) {
		if event.Timer.ID == timer.ID {
			done <- event
		}
	}))
	defer unsubscribe()

	return waitForTimer(ctx, e, timer.ID, done, out)
}

func waitForTimer(ctx context.Context, e *engine.Engine, id string, done <-chan models.CompletionEvent, out io.Writer) error {
	select {
	case event := <-done:
		fmt.Fprintln(out, messages.CompletionText(event))
		return nil
	case <-ctx.Done():
		if t, ok := e.GetTimer(id); ok {
			e.StopTimer(id)
			fmt.Fprintf(out, "stopped with %s left\n", timefmt.Remaining(t.TimeRemaining))
		}
		return nil
	}
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved timers",
		Args:  cobra.NoArgs,
		RunE:  runListCmd,
	}
}

func runListCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	e, _, closeAll, err := openEngine(cfg, false)
	if err != nil {
		return err
	}
	defer closeAll()

	out := cmd.OutOrStdout()
	list := e.ListTimers()
	fmt.Fprintln(out, messages.New(nil, 0, nil).TimerList(list))

	running := 0
	for _, t := range e.GetActiveTimers() {
		if t.Running() {
			running++
		}
	}
	fmt.Fprintln(out, messages.TotalText(e.GetTotalActiveSeconds(), running))
	return nil
}

func newClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove finished timers",
		Args:  cobra.NoArgs,
		RunE:  runClearCmd,
	}
}

func runClearCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	e, _, closeAll, err := openEngine(cfg, false)
	if err != nil {
		return err
	}
	defer closeAll()

	fmt.Fprintf(cmd.OutOrStdout(), "cleared %d finished timers\n", e.ClearCompletedTimers())
	return nil
}

func stepText(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("failed to read step text: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
