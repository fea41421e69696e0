package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/US-JOET/ev-chart-open-source-sub001/internal/db"
	"github.com/US-JOET/ev-chart-open-source-sub001/pkg/kafka"
)

// Topics names the Kafka topics the pipeline exchanges signals on.
type Topics struct {
	Integrity     string
	Validation    string
	Actions       string
	Notifications string
}

// Config is the full process configuration, loaded once at startup.
type Config struct {
	Database db.Config
	Kafka    kafka.Config
	Topics   Topics

	IntakeAddr     string
	AllowedOrigins []string
	MetricsAddr    string

	// SchemaSource toggles between the embedded per-category definitions
	// ("static") and the centralized schema document ("dynamic").
	SchemaSource   string
	SchemaDocument string

	LogLevel  string
	LogFormat string

	StageTimeout time.Duration
	StuckAfter   time.Duration

	Features map[string]bool
}

// Load reads config.yaml from configPath with EVCHART_-prefixed environment
// overrides, falling back to defaults when no file is present.
func Load(configPath string) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AutomaticEnv()
	v.SetEnvPrefix("EVCHART")

	v.BindEnv("database.host")
	v.BindEnv("database.port")
	v.BindEnv("database.user")
	v.BindEnv("database.password")
	v.BindEnv("database.dbname")
	v.BindEnv("database.sslmode")
	v.BindEnv("kafka.brokers")
	v.BindEnv("schema.source")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return cfg, fmt.Errorf("reading config: %w", err)
		}
	}

	if v.IsSet("database.host") {
		cfg.Database.Host = v.GetString("database.host")
	}
	if v.IsSet("database.port") {
		cfg.Database.Port = v.GetInt("database.port")
	}
	if v.IsSet("database.user") {
		cfg.Database.User = v.GetString("database.user")
	}
	if v.IsSet("database.password") {
		cfg.Database.Password = v.GetString("database.password")
	}
	if v.IsSet("database.dbname") {
		cfg.Database.DBName = v.GetString("database.dbname")
	}
	if v.IsSet("database.sslmode") {
		cfg.Database.SSLMode = v.GetString("database.sslmode")
	}
	if v.IsSet("kafka.brokers") {
		cfg.Kafka.Brokers = v.GetStringSlice("kafka.brokers")
	}
	if v.IsSet("kafka.consumer_group") {
		cfg.Kafka.ConsumerGroup = v.GetString("kafka.consumer_group")
	}
	if v.IsSet("topics.integrity") {
		cfg.Topics.Integrity = v.GetString("topics.integrity")
	}
	if v.IsSet("topics.validation") {
		cfg.Topics.Validation = v.GetString("topics.validation")
	}
	if v.IsSet("topics.actions") {
		cfg.Topics.Actions = v.GetString("topics.actions")
	}
	if v.IsSet("topics.notifications") {
		cfg.Topics.Notifications = v.GetString("topics.notifications")
	}
	if v.IsSet("intake.addr") {
		cfg.IntakeAddr = v.GetString("intake.addr")
	}
	if v.IsSet("intake.allowed_origins") {
		cfg.AllowedOrigins = v.GetStringSlice("intake.allowed_origins")
	}
	if v.IsSet("metrics.addr") {
		cfg.MetricsAddr = v.GetString("metrics.addr")
	}
	if v.IsSet("schema.source") {
		cfg.SchemaSource = v.GetString("schema.source")
	}
	if v.IsSet("schema.document") {
		cfg.SchemaDocument = v.GetString("schema.document")
	}
	if v.IsSet("log.level") {
		cfg.LogLevel = v.GetString("log.level")
	}
	if v.IsSet("log.format") {
		cfg.LogFormat = v.GetString("log.format")
	}
	if v.IsSet("pipeline.stage_timeout") {
		cfg.StageTimeout = v.GetDuration("pipeline.stage_timeout")
	}
	if v.IsSet("pipeline.stuck_after") {
		cfg.StuckAfter = v.GetDuration("pipeline.stuck_after")
	}
	if v.IsSet("features") {
		cfg.Features = map[string]bool{}
		for name, enabled := range v.GetStringMap("features") {
			on, ok := enabled.(bool)
			cfg.Features[name] = ok && on
		}
	}

	if cfg.SchemaSource != "static" && cfg.SchemaSource != "dynamic" {
		return cfg, fmt.Errorf("schema.source must be static or dynamic, got %q", cfg.SchemaSource)
	}
	if cfg.SchemaSource == "dynamic" && cfg.SchemaDocument == "" {
		return cfg, fmt.Errorf("schema.document is required when schema.source is dynamic")
	}

	return cfg, nil
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Database: db.DefaultConfig(),
		Kafka: kafka.Config{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "evchart-pipeline",
		},
		Topics: Topics{
			Integrity:     "submissions.integrity",
			Validation:    "submissions.validation",
			Actions:       "submissions.actions",
			Notifications: "submissions.notifications",
		},
		IntakeAddr:     ":8080",
		AllowedOrigins: []string{"http://localhost:3000"},
		MetricsAddr:    ":9090",
		SchemaSource:   "static",
		LogLevel:       "info",
		LogFormat:      "json",
		StageTimeout:   2 * time.Minute,
		StuckAfter:     24 * time.Hour,
		Features:       map[string]bool{},
	}
}
