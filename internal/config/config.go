package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Supported DB_TYPE values
const (
	DBTypeSQLite   = "sqlite"
	DBTypePostgres = "postgres"
)

// Config represents the runtime configuration
type Config struct {
	DBType      string
	DBPath      string // SQLite file
	DatabaseURL string // Postgres DSN

	LogMode string

	TelegramBotToken string

	RedisAddr    string
	RedisChannel string

	Neo4jURI      string
	Neo4jUsername string
	Neo4jPassword string
	Neo4jDatabase string

	// Reminders are only sent between these hours (inclusive)
	NotificationStartHour int
	NotificationEndHour   int

	// Retries of an answer transaction after a write conflict
	AnswerMaxRetries   int
	AnswerRetryBackoff time.Duration
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		DBType:                DBTypeSQLite,
		DBPath:                "data/progression.db",
		LogMode:               "development",
		RedisChannel:          "progression",
		Neo4jDatabase:         "neo4j",
		NotificationStartHour: 4,
		NotificationEndHour:   18,
		AnswerMaxRetries:      5,
		AnswerRetryBackoff:    20 * time.Millisecond,
	}
}

// Load reads .env (if present) and the environment on top of the defaults
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}

	cfg := DefaultConfig()
	cfg.DBType = str("DB_TYPE", cfg.DBType)
	cfg.DBPath = str("DB_PATH", cfg.DBPath)
	cfg.DatabaseURL = str("DATABASE_URL", cfg.DatabaseURL)
	cfg.LogMode = str("LOG_MODE", cfg.LogMode)
	cfg.TelegramBotToken = str("TELEGRAM_BOT_TOKEN", "")
	cfg.RedisAddr = str("REDIS_ADDR", "")
	cfg.RedisChannel = str("REDIS_CHANNEL", cfg.RedisChannel)
	cfg.Neo4jURI = str("NEO4J_URI", "")
	cfg.Neo4jUsername = str("NEO4J_USERNAME", "")
	cfg.Neo4jPassword = str("NEO4J_PASSWORD", "")
	cfg.Neo4jDatabase = str("NEO4J_DATABASE", cfg.Neo4jDatabase)
	cfg.NotificationStartHour = intVal("NOTIFICATION_START_HOUR", cfg.NotificationStartHour)
	cfg.NotificationEndHour = intVal("NOTIFICATION_END_HOUR", cfg.NotificationEndHour)
	cfg.AnswerMaxRetries = intVal("ANSWER_MAX_RETRIES", cfg.AnswerMaxRetries)

	if v := str("ANSWER_RETRY_BACKOFF", ""); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid ANSWER_RETRY_BACKOFF %q: %w", v, err)
		}
		cfg.AnswerRetryBackoff = d
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values that cannot be defaulted silently
func (c *Config) Validate() error {
	switch c.DBType {
	case DBTypeSQLite:
		if c.DBPath == "" {
			return fmt.Errorf("DB_PATH is required for sqlite")
		}
	case DBTypePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for postgres")
		}
	default:
		return fmt.Errorf("unsupported DB_TYPE %q", c.DBType)
	}
	for name, h := range map[string]int{
		"NOTIFICATION_START_HOUR": c.NotificationStartHour,
		"NOTIFICATION_END_HOUR":   c.NotificationEndHour,
	} {
		if h < 0 || h > 23 {
			return fmt.Errorf("%s must be within 0-23, got %d", name, h)
		}
	}
	if c.AnswerMaxRetries < 1 {
		return fmt.Errorf("ANSWER_MAX_RETRIES must be positive, got %d", c.AnswerMaxRetries)
	}
	return nil
}

func str(name, def string) string {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	return v
}

func intVal(name string, def int) int {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}
