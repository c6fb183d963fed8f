package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Store drivers
const (
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
	StoreMemory   = "memory"
)

// Config holds all configuration for the application
type Config struct {
	// Server
	Port       string `mapstructure:"port"`
	AppVersion string `mapstructure:"app_version"`

	// Storage
	StoreDriver            string `mapstructure:"store_driver"`
	DBHost                 string `mapstructure:"db_host"`
	DBPort                 int    `mapstructure:"db_port"`
	DBUser                 string `mapstructure:"db_user"`
	DBPass                 string `mapstructure:"db_pass"`
	DBName                 string `mapstructure:"db_name"`
	InstanceConnectionName string `mapstructure:"instance_connection_name"`
	MongoURI               string `mapstructure:"mongodb_uri"`
	MongoDatabase          string `mapstructure:"mongodb_database"`

	// Trip lifecycle
	TxTimeout           time.Duration `mapstructure:"tx_timeout"`
	ExpirySweepInterval time.Duration `mapstructure:"expiry_sweep_interval"`

	// Kafka
	KafkaEnabled bool     `mapstructure:"kafka_enabled"`
	KafkaBrokers []string `mapstructure:"kafka_brokers"`
	KafkaTopic   string   `mapstructure:"kafka_topic"`

	// Twilio
	TwilioAccountSID   string `mapstructure:"twilio_account_sid"`
	TwilioAuthToken    string `mapstructure:"twilio_auth_token"`
	TwilioWhatsAppFrom string `mapstructure:"twilio_whatsapp_from"`

	// Observability
	LogLevel         string `mapstructure:"log_level"`
	MetricsNamespace string `mapstructure:"metrics_namespace"`
}

var defaults = map[string]interface{}{
	"port":                     "8080",
	"app_version":              "1.0.0",
	"store_driver":             StorePostgres,
	"db_host":                  "localhost",
	"db_port":                  5432,
	"db_user":                  "postgres",
	"db_pass":                  "",
	"db_name":                  "coldtruck",
	"instance_connection_name": "",
	"mongodb_uri":              "mongodb://localhost:27017/?replicaSet=rs0",
	"mongodb_database":         "coldtruck",
	"tx_timeout":               "10s",
	"expiry_sweep_interval":    "1m",
	"kafka_enabled":            false,
	"kafka_brokers":            "localhost:9092",
	"kafka_topic":              "trip-lifecycle",
	"twilio_account_sid":       "",
	"twilio_auth_token":        "",
	"twilio_whatsapp_from":     "",
	"log_level":                "info",
	"metrics_namespace":        "coldtruck",
}

// Load reads .env (if present), the optional config file and the environment
func Load(cfgFile string) (*Config, error) {
	// .env is optional outside local development
	_ = godotenv.Load()

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	decoderConfigOption := viper.DecoderConfigOption(func(dc *mapstructure.DecoderConfig) {
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	})
	if err := v.Unmarshal(&cfg, decoderConfigOption); err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail late at startup
func (c *Config) Validate() error {
	c.StoreDriver = strings.ToLower(strings.TrimSpace(c.StoreDriver))
	switch c.StoreDriver {
	case StorePostgres, StoreMongo, StoreMemory:
	default:
		return fmt.Errorf("unknown store driver %q", c.StoreDriver)
	}
	if c.TxTimeout <= 0 {
		return fmt.Errorf("tx_timeout must be positive, got %s", c.TxTimeout)
	}
	if c.ExpirySweepInterval < 0 {
		return fmt.Errorf("expiry_sweep_interval must not be negative, got %s", c.ExpirySweepInterval)
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("kafka_brokers is required when kafka is enabled")
	}
	return nil
}

// TwilioConfigured reports whether WhatsApp notifications can be sent
func (c *Config) TwilioConfigured() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioWhatsAppFrom != ""
}
