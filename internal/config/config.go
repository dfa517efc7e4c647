// Package config handles application configuration loading and validation using Viper.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration.
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Gamification GamificationConfig `mapstructure:"gamification"`
	Scheduler    SchedulerConfig    `mapstructure:"scheduler"`
	Metrics      MetricsConfig      `mapstructure:"metrics"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port        int    `mapstructure:"port"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig contains database connection settings for PostgreSQL and Redis.
type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// PostgresConfig contains PostgreSQL database connection and pool settings.
type PostgresConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Database        string `mapstructure:"database"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

// RedisConfig contains Redis cache connection and pool settings.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// GamificationConfig contains point values and thresholds for the scoring
// engine. Changing them only affects future awards, never the ledger history.
type GamificationConfig struct {
	DailyLoginPoints      int     `mapstructure:"daily_login_points"`
	QuizPassBasePoints    int     `mapstructure:"quiz_pass_base_points"`
	CourseCompletePoints  int     `mapstructure:"course_complete_points"`
	BadgeBonusPoints      int     `mapstructure:"badge_bonus_points"`
	StreakBonusUnit       int     `mapstructure:"streak_bonus_unit"`
	PassThreshold         float64 `mapstructure:"pass_threshold"`
	CooldownMinutes       int     `mapstructure:"cooldown_minutes"`
	DefaultQuestionPoints int     `mapstructure:"default_question_points"`
	BadgeCatalogPath      string  `mapstructure:"badge_catalog_path"`
}

// Cooldown returns the post-failure retry cooldown as a duration.
func (g *GamificationConfig) Cooldown() time.Duration {
	return time.Duration(g.CooldownMinutes) * time.Minute
}

// SchedulerConfig contains settings for the background maintenance jobs:
// the daily leaderboard refresh and the nightly ledger balance audit.
type SchedulerConfig struct {
	Enabled                bool   `mapstructure:"enabled"`
	Timezone               string `mapstructure:"timezone"`
	LeaderboardRefreshTime string `mapstructure:"leaderboard_refresh_time"` // HH:MM
	BalanceAuditSchedule   string `mapstructure:"balance_audit_schedule"`   // cron expression, empty disables
}

// MetricsConfig contains Prometheus metrics exporter settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// LoggingConfig contains application logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// Load reads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/elearn-gamification/")
	}

	setDefaults(v)

	// Bind specific environment variables (explicit bindings for 12-factor app compliance)
	// Server configuration
	_ = v.BindEnv("server.port", "SERVER_PORT")
	_ = v.BindEnv("server.environment", "SERVER_ENVIRONMENT")

	// PostgreSQL configuration
	_ = v.BindEnv("database.postgres.host", "POSTGRES_HOST")
	_ = v.BindEnv("database.postgres.port", "POSTGRES_PORT")
	_ = v.BindEnv("database.postgres.database", "POSTGRES_DB")
	_ = v.BindEnv("database.postgres.user", "POSTGRES_USER")
	_ = v.BindEnv("database.postgres.password", "POSTGRES_PASSWORD")
	_ = v.BindEnv("database.postgres.ssl_mode", "POSTGRES_SSL_MODE")
	_ = v.BindEnv("database.postgres.max_open_conns", "POSTGRES_MAX_OPEN_CONNS")
	_ = v.BindEnv("database.postgres.max_idle_conns", "POSTGRES_MAX_IDLE_CONNS")
	_ = v.BindEnv("database.postgres.conn_max_lifetime", "POSTGRES_CONN_MAX_LIFETIME")

	// Redis configuration
	_ = v.BindEnv("database.redis.host", "REDIS_HOST")
	_ = v.BindEnv("database.redis.port", "REDIS_PORT")
	_ = v.BindEnv("database.redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("database.redis.db", "REDIS_DB")
	_ = v.BindEnv("database.redis.pool_size", "REDIS_POOL_SIZE")

	// Gamification configuration
	_ = v.BindEnv("gamification.cooldown_minutes", "GAMIFICATION_COOLDOWN_MINUTES")
	_ = v.BindEnv("gamification.pass_threshold", "GAMIFICATION_PASS_THRESHOLD")
	_ = v.BindEnv("gamification.badge_catalog_path", "GAMIFICATION_BADGE_CATALOG_PATH")

	// Scheduler configuration
	_ = v.BindEnv("scheduler.enabled", "SCHEDULER_ENABLED")
	_ = v.BindEnv("scheduler.timezone", "SCHEDULER_TIMEZONE")

	// Logging configuration
	_ = v.BindEnv("logging.level", "LOG_LEVEL")
	_ = v.BindEnv("logging.format", "LOG_FORMAT")
	_ = v.BindEnv("logging.output", "LOG_OUTPUT")

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate required fields
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.environment", "development")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	v.SetDefault("gamification.daily_login_points", 10)
	v.SetDefault("gamification.quiz_pass_base_points", 100)
	v.SetDefault("gamification.course_complete_points", 500)
	v.SetDefault("gamification.badge_bonus_points", 50)
	v.SetDefault("gamification.streak_bonus_unit", 50)
	v.SetDefault("gamification.pass_threshold", 75.0)
	v.SetDefault("gamification.cooldown_minutes", 30)
	v.SetDefault("gamification.default_question_points", 10)

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.timezone", "UTC")
	v.SetDefault("scheduler.leaderboard_refresh_time", "00:05")
	v.SetDefault("scheduler.balance_audit_schedule", "30 3 * * *")
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Database.Postgres.Host == "" {
		return fmt.Errorf("database.postgres.host is required")
	}
	if c.Database.Postgres.Database == "" {
		return fmt.Errorf("database.postgres.database is required")
	}
	if c.Database.Postgres.User == "" {
		return fmt.Errorf("database.postgres.user is required")
	}
	if c.Database.Redis.Host == "" {
		return fmt.Errorf("database.redis.host is required")
	}
	if c.Gamification.PassThreshold <= 0 || c.Gamification.PassThreshold > 100 {
		return fmt.Errorf("gamification.pass_threshold must be in (0, 100]")
	}
	if c.Gamification.CooldownMinutes < 0 {
		return fmt.Errorf("gamification.cooldown_minutes must not be negative")
	}
	return nil
}
