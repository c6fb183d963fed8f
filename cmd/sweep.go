package cmd

import (
	"github.com/spf13/cobra"

	"github.com/coldtruck/coldtruck-backend/internal/jobs"
	"github.com/coldtruck/coldtruck-backend/pkg/logger"
	"github.com/coldtruck/coldtruck-backend/pkg/metrics"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Cancel scheduled trips whose arrival date has passed, once",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		log := logger.NewLogger(cfg.LogLevel)
		defer func() { _ = log.Sync() }()

		store, err := openStore(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer store.Close(ctx)

		publisher, notifier, err := openSideEffects(cfg, log)
		if err != nil {
			return err
		}
		defer publisher.Close()

		sweeper := jobs.NewExpirySweeper(store, publisher, notifier, metrics.NewMetrics(cfg.MetricsNamespace), log, cfg.ExpirySweepInterval)
		ids, err := sweeper.RunOnce(ctx)
		if err != nil {
			return err
		}
		log.Info("Sweep finished", "canceled", len(ids))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}
