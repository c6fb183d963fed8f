package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/coldtruck/coldtruck-backend/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "coldtruck",
	Short: "Cold-chain fleet tracking backend",
	Long: `coldtruck serves the REST API used by the ColdTruck mobile app: trips,
trucks, drivers, routes and live tracking for refrigerated transport.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, json or toml); environment variables override it")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
