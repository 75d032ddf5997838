// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	loadEnvFile()

	// Base config
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../../configs")
	viper.AddConfigPath(".")

	// Enable ENV override like DATABASE_POSTGRES_HOST
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	// Environment overlay, ignored if absent
	viper.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = viper.MergeInConfig()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	cfg.App.Environment = env

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("app.name", "placement-pipeline")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.metrics_port", 9100)

	viper.SetDefault("database.postgres.host", "localhost")
	viper.SetDefault("database.postgres.port", 5432)
	viper.SetDefault("database.postgres.max_connections", 25)
	viper.SetDefault("database.postgres.max_idle", 5)
	viper.SetDefault("database.postgres.sslmode", "disable")
	viper.SetDefault("database.redis.address", "localhost:6379")

	viper.SetDefault("pipeline.capacity_ceiling", 10)
	viper.SetDefault("pipeline.max_transition_retries", 3)

	viper.SetDefault("assessment.mcq_count", 5)
	viper.SetDefault("assessment.deadline_days", 3)
	viper.SetDefault("assessment.default_duration_minutes", 60)
	viper.SetDefault("assessment.min_coding_answer_length", 50)
	viper.SetDefault("assessment.mcq_weight", 0.7)
	viper.SetDefault("assessment.coding_weight", 0.3)

	viper.SetDefault("notifications.queue", "pipeline:events")
	viper.SetDefault("notifications.aws.region", "us-east-1")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
}

// loadEnvFile loads .env from the working directory or a parent, so both the
// server binary and tests pick up local overrides.
func loadEnvFile() {
	candidates := []string{".env", "../.env", "../../.env"}
	for _, p := range candidates {
		abs, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		if _, err := os.Stat(abs); err == nil {
			_ = godotenv.Load(abs)
			return
		}
	}
}
