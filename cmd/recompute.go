package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"overlay-engine/feature/overlay"
	"overlay-engine/feature/pricing"

	"github.com/spf13/cobra"
)

var (
	recomputeTiers []string
	recomputeJSON  bool
)

// recomputeCmd runs one overlay run.
var recomputeCmd = &cobra.Command{
	Use:   "recompute",
	Short: "Recompute and persist every overlay once",
	Long: `Recomputes the overlay of every detail and main table for each tier and
persists the tables whose content changed.

Examples:
  # Every tier
  recompute

  # Only the daily tier, summary as JSON
  recompute --tier daily --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var tiers []pricing.Tier
		for _, name := range recomputeTiers {
			t, ok := pricing.ParseTier(name)
			if !ok {
				return fmt.Errorf("unknown tier %q", name)
			}
			tiers = append(tiers, t)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer a.logger.Sync()

		summary, err := a.overlays.Run(ctx, overlay.RunOptions{Tiers: tiers})
		if err != nil {
			return err
		}

		if recomputeJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(summary)
		}
		fmt.Printf("Run %s: %d tables, %d failed, %d written, %d unchanged, %d below cutoff, %d missing formulas (%s)\n",
			summary.RunID, summary.TablesProcessed, summary.TablesFailed,
			summary.Writes.Written, summary.Writes.Unchanged,
			summary.RowsBelowCutoff, summary.MissingFormulas, summary.Duration)
		return nil
	},
}

func init() {
	recomputeCmd.Flags().StringSliceVar(&recomputeTiers, "tier", nil, "Tiers to recompute (fast, hourly, daily); default all")
	recomputeCmd.Flags().BoolVar(&recomputeJSON, "json", false, "Print the run summary as JSON")
	RootCmd.AddCommand(recomputeCmd)
}
