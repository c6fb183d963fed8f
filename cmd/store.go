package cmd

import (
	"context"
	"fmt"

	"github.com/coldtruck/coldtruck-backend/database"
	"github.com/coldtruck/coldtruck-backend/internal/config"
	"github.com/coldtruck/coldtruck-backend/internal/services"
	"github.com/coldtruck/coldtruck-backend/internal/storage"
	"github.com/coldtruck/coldtruck-backend/pkg/logger"
)

// openStore connects the backend selected by STORE_DRIVER
func openStore(ctx context.Context, cfg *config.Config, log logger.Logger) (storage.Store, error) {
	switch cfg.StoreDriver {
	case config.StoreMemory:
		log.Warn("Using in-memory storage (not for production!)")
		return storage.NewMemoryStore(), nil

	case config.StoreMongo:
		log.Info("Connecting to MongoDB", "database", cfg.MongoDatabase)
		client, err := database.ConnectMongo(ctx, cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		return storage.NewMongoStore(client, cfg.MongoDatabase), nil

	default:
		db, err := database.Connect(cfg, log)
		if err != nil {
			return nil, err
		}
		return storage.NewDatabaseStore(db), nil
	}
}

// openSideEffects builds the event publisher and the driver notifier.
// Either falls back to a no-op when not configured.
func openSideEffects(cfg *config.Config, log logger.Logger) (services.EventPublisher, services.DriverNotifier, error) {
	var publisher services.EventPublisher = services.NopPublisher{}
	if cfg.KafkaEnabled {
		kafka, err := services.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return nil, nil, fmt.Errorf("connect kafka: %w", err)
		}
		log.Info("Publishing trip events to Kafka", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
		publisher = kafka
	}

	var notifier services.DriverNotifier = services.NopNotifier{}
	if cfg.TwilioConfigured() {
		twilio, err := services.NewTwilioNotifier(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioWhatsAppFrom, log)
		if err != nil {
			_ = publisher.Close()
			return nil, nil, err
		}
		log.Info("WhatsApp driver notifications enabled")
		notifier = twilio
	} else {
		log.Warn("Twilio credentials not found - driver notifications disabled")
	}

	return publisher, notifier, nil
}
