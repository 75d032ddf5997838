// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig          `mapstructure:"app"`
	Server        ServerConfig       `mapstructure:"server"`
	Database      DatabaseConfig     `mapstructure:"database"`
	Pipeline      PipelineConfig     `mapstructure:"pipeline"`
	Assessment    AssessmentConfig   `mapstructure:"assessment"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Logging       LoggingConfig      `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Port        int `mapstructure:"port"`
	MetricsPort int `mapstructure:"metrics_port"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string.
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// PipelineConfig holds the transition engine and scheduler settings.
type PipelineConfig struct {
	// CapacityCeiling is the maximum number of simultaneously active
	// interview assignments one interviewer may hold.
	CapacityCeiling int `mapstructure:"capacity_ceiling"`
	// MaxTransitionRetries bounds internal retries on optimistic write
	// conflicts before the conflict is surfaced to the caller.
	MaxTransitionRetries int `mapstructure:"max_transition_retries"`
}

// AssessmentConfig holds the assessment engine settings.
type AssessmentConfig struct {
	MCQCount              int     `mapstructure:"mcq_count"`
	DeadlineDays          int     `mapstructure:"deadline_days"`
	DefaultDurationMins   int     `mapstructure:"default_duration_minutes"`
	MinCodingAnswerLength int     `mapstructure:"min_coding_answer_length"`
	MCQWeight             float64 `mapstructure:"mcq_weight"`
	CodingWeight          float64 `mapstructure:"coding_weight"`
}

// NotificationConfig holds settings for the outbound event queue and the
// delivery dispatcher.
type NotificationConfig struct {
	Queue string `mapstructure:"queue"`
	Email struct {
		Enabled   bool   `mapstructure:"enabled"`
		FromEmail string `mapstructure:"from_email"`
	} `mapstructure:"email"`
	SMS struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"sms"`
	AWS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
