package database

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/coldtruck/coldtruck-backend/internal/config"
	"github.com/coldtruck/coldtruck-backend/internal/models"
	"github.com/coldtruck/coldtruck-backend/pkg/logger"
)

// For Cloud Run with Cloud SQL
const socketDir = "/cloudsql"

// DSN builds the PostgreSQL connection string. With an instance connection
// name the Cloud SQL unix socket is used, otherwise plain TCP.
func DSN(cfg *config.Config) string {
	if cfg.InstanceConnectionName != "" {
		return fmt.Sprintf("host=%s/%s user=%s password=%s dbname=%s sslmode=disable",
			socketDir, cfg.InstanceConnectionName, cfg.DBUser, cfg.DBPass, cfg.DBName)
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		cfg.DBHost, cfg.DBUser, cfg.DBPass, cfg.DBName, cfg.DBPort)
}

// Connect opens the PostgreSQL database
func Connect(cfg *config.Config, log logger.Logger) (*gorm.DB, error) {
	if cfg.InstanceConnectionName != "" {
		log.Info("Connecting to Cloud SQL via socket", "instance", cfg.InstanceConnectionName)
	} else {
		log.Info("Connecting to PostgreSQL", "host", cfg.DBHost, "port", cfg.DBPort, "database", cfg.DBName)
	}

	db, err := gorm.Open(postgres.Open(DSN(cfg)), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	log.Info("Database connected successfully")
	return db, nil
}

// Models lists every table the SQL store manages
func Models() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Truck{},
		&models.Box{},
		&models.Route{},
		&models.CargoType{},
		&models.Alert{},
		&models.Trip{},
		&models.AlertReading{},
		&models.TruckAssignment{},
		&models.Tracking{},
	}
}

// Migrate runs the schema migrations
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
