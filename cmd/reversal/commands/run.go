package commands

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// runCmd starts the continuous strategy run loop.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the strategy loop until interrupted",
	Long: `Connects to the broker and repeats strategy cycles on the
configured interval. Ctrl+C stops cleanly at the next cycle boundary.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, log, err := buildApp()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		log.Info("Starting reversal engine")
		return a.Run(ctx)
	},
}

// cycleCmd executes exactly one strategy cycle.
var cycleCmd = &cobra.Command{
	Use:   "cycle",
	Short: "Execute a single strategy cycle",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, _, err := buildApp()
		if err != nil {
			return err
		}
		return a.RunOnce(context.Background())
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(cycleCmd)
}
