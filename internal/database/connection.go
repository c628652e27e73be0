package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/example/progression/internal/config"
)

// Driver names as registered with database/sql
const (
	driverSQLite   = "sqlite3"
	driverPostgres = "postgres"
)

// DB is the global database connection
var DB *sqlx.DB

// Connect establishes a connection to the database and creates the schema
func Connect(cfg *config.Config) error {
	var (
		db  *sqlx.DB
		err error
	)

	switch cfg.DBType {
	case config.DBTypePostgres:
		db, err = sqlx.Connect(driverPostgres, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		db.SetMaxOpenConns(20)
		db.SetMaxIdleConns(5)
	default:
		// Create data directory if it doesn't exist
		if dir := filepath.Dir(cfg.DBPath); dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create data directory: %w", err)
			}
		}

		db, err = sqlx.Connect(driverSQLite, cfg.DBPath)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}

		// SQLite doesn't support multiple writers; one connection also serializes answer transactions
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)

		if _, err = db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return fmt.Errorf("failed to enable foreign keys: %w", err)
		}
	}

	DB = db
	return initializeSchema(db)
}

// Close closes the database connection
func Close() error {
	if DB != nil {
		err := DB.Close()
		DB = nil
		return err
	}
	return nil
}

// initializeSchema creates necessary tables if they don't exist
func initializeSchema(db *sqlx.DB) error {
	idColumn := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if db.DriverName() == driverPostgres {
		idColumn = "BIGSERIAL PRIMARY KEY"
	}

	for _, t := range schema {
		stmt := strings.ReplaceAll(t.ddl, "{{id}}", idColumn)
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create %s table: %w", t.name, err)
		}
	}
	return nil
}

var schema = []struct {
	name string
	ddl  string
}{
	{"users", `
		CREATE TABLE IF NOT EXISTS users (
			id BIGINT PRIMARY KEY,
			telegram_chat_id BIGINT NOT NULL DEFAULT 0,
			username TEXT NOT NULL DEFAULT '',
			notification_enabled BOOLEAN NOT NULL DEFAULT true,
			notification_hour INTEGER NOT NULL DEFAULT 9,
			reviews_per_day INTEGER NOT NULL DEFAULT 20,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`},
	{"skills", `
		CREATE TABLE IF NOT EXISTS skills (
			id {{id}},
			name TEXT NOT NULL UNIQUE,
			skill_type TEXT NOT NULL DEFAULT '',
			sort_order INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`},
	{"concepts", `
		CREATE TABLE IF NOT EXISTS concepts (
			id {{id}},
			external_key TEXT NOT NULL UNIQUE,
			concept_type TEXT NOT NULL DEFAULT '',
			sort_order INTEGER NOT NULL DEFAULT 0,
			level TEXT NOT NULL DEFAULT '',
			language TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`},
	{"skill_concepts", `
		CREATE TABLE IF NOT EXISTS skill_concepts (
			skill_id BIGINT NOT NULL REFERENCES skills(id),
			concept_id BIGINT NOT NULL REFERENCES concepts(id),
			role TEXT NOT NULL DEFAULT 'core',
			weight INTEGER NOT NULL DEFAULT 1 CHECK (weight >= 1),
			PRIMARY KEY (skill_id, concept_id)
		)`},
	{"skill_prerequisites", `
		CREATE TABLE IF NOT EXISTS skill_prerequisites (
			skill_id BIGINT NOT NULL REFERENCES skills(id),
			prerequisite_skill_id BIGINT NOT NULL REFERENCES skills(id),
			min_mastery DOUBLE PRECISION NOT NULL DEFAULT 0.8,
			PRIMARY KEY (skill_id, prerequisite_skill_id)
		)`},
	{"concept_progress", `
		CREATE TABLE IF NOT EXISTS concept_progress (
			id {{id}},
			user_id BIGINT NOT NULL,
			concept_id BIGINT NOT NULL REFERENCES concepts(id),
			mastery DOUBLE PRECISION NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'new',
			easiness_factor DOUBLE PRECISION NOT NULL DEFAULT 2.5,
			interval_days DOUBLE PRECISION NOT NULL DEFAULT 1,
			repetitions INTEGER NOT NULL DEFAULT 0,
			total_attempts INTEGER NOT NULL DEFAULT 0,
			correct_attempts INTEGER NOT NULL DEFAULT 0,
			last_quality INTEGER NOT NULL DEFAULT 0,
			next_review_at TIMESTAMP NULL,
			last_reviewed_at TIMESTAMP NULL,
			version BIGINT NOT NULL DEFAULT 1,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(user_id, concept_id)
		)`},
	{"skill_progress", `
		CREATE TABLE IF NOT EXISTS skill_progress (
			id {{id}},
			user_id BIGINT NOT NULL,
			skill_id BIGINT NOT NULL REFERENCES skills(id),
			status TEXT NOT NULL DEFAULT 'locked',
			mastery DOUBLE PRECISION NOT NULL DEFAULT 0,
			unlocked_at TIMESTAMP NULL,
			mastered_at TIMESTAMP NULL,
			version BIGINT NOT NULL DEFAULT 1,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(user_id, skill_id)
		)`},
	{"review_logs", `
		CREATE TABLE IF NOT EXISTS review_logs (
			id TEXT PRIMARY KEY,
			event_id TEXT NOT NULL DEFAULT '',
			user_id BIGINT NOT NULL,
			concept_id BIGINT NOT NULL REFERENCES concepts(id),
			quality INTEGER NOT NULL,
			is_correct BOOLEAN NOT NULL,
			response_time_ms BIGINT NULL,
			interval_days DOUBLE PRECISION NOT NULL,
			easiness_factor DOUBLE PRECISION NOT NULL,
			reviewed_at TIMESTAMP NOT NULL
		)`},
	{"concept_progress due index", `
		CREATE INDEX IF NOT EXISTS idx_concept_progress_due ON concept_progress (user_id, next_review_at)`},
}
