package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/reversal/internal/app"
	"github.com/wonny/reversal/internal/broker"
	"github.com/wonny/reversal/pkg/config"
	"github.com/wonny/reversal/pkg/logger"
)

var verbose bool

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "reversal",
	Short: "Earnings-announcement reversal trading engine",
	Long: `Earnings reversal strategy engine.

Ranks upcoming earnings reporters by pre-announcement drift, buys the
worst recent performers and shorts the best, then exits on stop-loss
or two days after the announcement.

Examples:
  reversal run        # continuous run loop
  reversal cycle      # single strategy cycle
  reversal calendar   # rebuild the filtered earnings calendar
  reversal api        # status API server`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// buildApp loads config and wires the application. The paper broker
// stands in until a live gateway adapter is configured.
func buildApp() (*app.App, *logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	log := logger.New(cfg)

	a, err := app.New(cfg, log, broker.NewPaperBroker())
	if err != nil {
		return nil, nil, fmt.Errorf("build app: %w", err)
	}
	return a, log, nil
}
