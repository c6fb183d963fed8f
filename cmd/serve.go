package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/coldtruck/coldtruck-backend/internal/config"
	"github.com/coldtruck/coldtruck-backend/internal/jobs"
	"github.com/coldtruck/coldtruck-backend/internal/routes"
	"github.com/coldtruck/coldtruck-backend/internal/services"
	"github.com/coldtruck/coldtruck-backend/pkg/logger"
	"github.com/coldtruck/coldtruck-backend/pkg/metrics"
)

var serveDemo bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the trip expiry sweeper",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return runServe(cmd.Context(), cfg)
	},
}

func init() {
	serveCmd.Flags().BoolVar(&serveDemo, "demo", false, "load demo data before serving (memory store only)")
	rootCmd.AddCommand(serveCmd)

	// serve is also what a bare invocation runs
	rootCmd.RunE = serveCmd.RunE
}

func runServe(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.NewLogger(cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	m := metrics.NewMetrics(cfg.MetricsNamespace)

	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			log.Warn("Failed to close store", "error", err)
		}
	}()

	if serveDemo && cfg.StoreDriver == config.StoreMemory {
		if err := seedDemo(ctx, store, defaultSeedOptions(), nil); err != nil {
			return err
		}
		log.Info("Demo data loaded")
	}

	publisher, notifier, err := openSideEffects(cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = publisher.Close() }()

	lifecycle := services.NewTripLifecycle(store, publisher, notifier, m, log, cfg.TxTimeout)

	var sweeper *jobs.ExpirySweeper
	if cfg.ExpirySweepInterval > 0 {
		sweeper = jobs.NewExpirySweeper(store, publisher, notifier, m, log, cfg.ExpirySweepInterval)
		sweeper.Start(ctx)
	} else {
		log.Warn("Expiry sweeper disabled")
	}

	app := routes.NewApp(routes.Dependencies{
		Store:     store,
		Lifecycle: lifecycle,
		Metrics:   m,
		Logger:    log,
		Version:   cfg.AppVersion,
		AccessLog: true,
	})

	go func() {
		<-ctx.Done()
		log.Info("Gracefully shutting down...")
		if sweeper != nil {
			sweeper.Stop()
		}
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Error("Server shutdown failed", "error", err)
		}
	}()

	log.Info("ColdTruck Backend starting",
		"port", cfg.Port,
		"version", cfg.AppVersion,
		"store", cfg.StoreDriver,
		"kafka", cfg.KafkaEnabled,
		"whatsapp", cfg.TwilioConfigured(),
	)
	return app.Listen(":" + cfg.Port)
}
