package cmd

import (
	"github.com/spf13/cobra"

	"github.com/coldtruck/coldtruck-backend/database"
	"github.com/coldtruck/coldtruck-backend/internal/config"
	"github.com/coldtruck/coldtruck-backend/internal/storage"
	"github.com/coldtruck/coldtruck-backend/pkg/logger"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create tables (postgres) or indexes (mongo)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		log := logger.NewLogger(cfg.LogLevel)
		defer func() { _ = log.Sync() }()

		switch cfg.StoreDriver {
		case config.StoreMemory:
			log.Info("Memory store has nothing to migrate")
			return nil

		case config.StoreMongo:
			client, err := database.ConnectMongo(ctx, cfg.MongoURI)
			if err != nil {
				return err
			}
			store := storage.NewMongoStore(client, cfg.MongoDatabase)
			defer store.Close(ctx)

			if err := store.EnsureIndexes(ctx); err != nil {
				return err
			}
			log.Info("MongoDB indexes created", "database", cfg.MongoDatabase)
			return nil

		default:
			db, err := database.Connect(cfg, log)
			if err != nil {
				return err
			}
			defer storage.NewDatabaseStore(db).Close(ctx)

			log.Info("Running database migrations...")
			if err := database.Migrate(db); err != nil {
				return err
			}
			log.Info("Database migrations completed")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
