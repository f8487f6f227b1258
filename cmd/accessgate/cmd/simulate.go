package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sentinel-Gate/accessgate/internal/config"
	"github.com/Sentinel-Gate/accessgate/internal/simulate"
)

var simOpts simulate.Options

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Generate synthetic gateway traffic",
	Long: `Act as an edge gateway: send random access requests to
/api/gateway/evaluate and report each decision to /api/gateway/telemetry.

Example:
  accessgate start --dev &
  accessgate simulate --count 20 --interval 500ms`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfigRaw()
		if err != nil {
			return err
		}
		logger := newLogger(os.Stderr, cfg.Server)

		ctx, stop := signal.NotifyContext(context.Background(), gracefulSignals()...)
		defer stop()

		stats, err := simulate.New(simOpts, logger).Run(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "evaluated %d (allowed %d, denied %d), recorded %d, errors %d\n",
			stats.Evaluated, stats.Allowed, stats.Denied, stats.Recorded, stats.Errors)
		return nil
	},
}

func init() {
	f := simulateCmd.Flags()
	f.StringVar(&simOpts.BaseURL, "url", "http://127.0.0.1:8080", "control plane base URL")
	f.StringVar(&simOpts.APIKey, "api-key", "acme-gw-key-123", "gateway API key")
	f.DurationVar(&simOpts.Interval, "interval", 3*time.Second, "delay between requests")
	f.DurationVar(&simOpts.Jitter, "jitter", 2*time.Second, "random extra delay")
	f.IntVar(&simOpts.Count, "count", 0, "stop after n requests (0 = until interrupted)")
	f.BoolVar(&simOpts.Telemetry, "telemetry", true, "report decisions as telemetry")
	f.Uint64Var(&simOpts.Seed, "seed", 0, "random seed (0 = random)")
	rootCmd.AddCommand(simulateCmd)
}
