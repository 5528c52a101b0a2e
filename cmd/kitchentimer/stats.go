package main

import (
	"fmt"

	"github.com/korjavin/kitchentimer/pkg/logger"
	"github.com/korjavin/kitchentimer/pkg/stats"
	"github.com/korjavin/kitchentimer/pkg/timefmt"
	"github.com/spf13/cobra"
)

var statsReset string

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cooking statistics for every chat",
		Args:  cobra.NoArgs,
		RunE:  runStatsCmd,
	}
	cmd.Flags().StringVar(&statsReset, "reset", "", "forget the statistics of one scope (a chat ID, or cli)")
	return cmd
}

func runStatsCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Global.Error("Failed to close storage: %v", err)
		}
	}()

	svc := stats.New(store)
	out := cmd.OutOrStdout()

	if statsReset != "" {
		if err := svc.Reset(statsReset); err != nil {
			return err
		}
		fmt.Fprintf(out, "statistics for %s reset\n", statsReset)
		return nil
	}

	scopes, err := svc.Scopes()
	if err != nil {
		return err
	}
	if len(scopes) == 0 {
		fmt.Fprintln(out, "no statistics yet")
		return nil
	}
	for _, scope := range scopes {
		st, err := svc.GetStatistics(scope)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s\t%d finished\t%s\n", scope, st.CompletedCount, timefmt.Duration(st.TotalSeconds))
	}
	return nil
}
