package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	refreshLimit   int
	refreshSleepMs int
)

// refreshCmd runs one price refresh cycle.
var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Refresh stale market prices once",
	Long: `Selects tradable items whose price tiers are stale or whose metadata is
missing, oldest first, and refreshes them from the market API in batches.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer a.logger.Sync()

		limit := a.cfg.Pricing.RefreshLimit
		if cmd.Flags().Changed("limit") {
			limit = refreshLimit
		}
		sleep := a.refreshSleep()
		if cmd.Flags().Changed("sleep-ms") {
			sleep = refreshSleepMs
		}

		summary, err := a.scheduler.Refresh(ctx, limit, time.Duration(sleep)*time.Millisecond)
		if err != nil {
			return err
		}
		a.logger.Info("Refresh complete",
			zap.Int("picked", summary.Picked),
			zap.Int("vendor_updated", summary.VendorUpdated),
			zap.Int("batches_failed", summary.BatchesFailed))
		return nil
	},
}

func init() {
	refreshCmd.Flags().IntVar(&refreshLimit, "limit", 0, "Maximum number of items to refresh (0 = all stale items)")
	refreshCmd.Flags().IntVar(&refreshSleepMs, "sleep-ms", 1000, "Pause between market batches in milliseconds")
	RootCmd.AddCommand(refreshCmd)
}
