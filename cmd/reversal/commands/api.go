package commands

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// apiCmd starts the read-only status API server.
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Serve the status API",
	Long: `Serves positions, trades, account and calendar snapshots over
HTTP for dashboards. The server is read-only.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, log, err := buildApp()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		log.Info("Starting status API")
		return a.ServeAPI(ctx)
	},
}

func init() {
	rootCmd.AddCommand(apiCmd)
}
