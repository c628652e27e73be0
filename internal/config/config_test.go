package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, DBTypeSQLite, cfg.DBType)
	assert.Equal(t, 5, cfg.AnswerMaxRetries)
	assert.Equal(t, 20*time.Millisecond, cfg.AnswerRetryBackoff)
}

func TestLoadFromEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	content := "DB_TYPE=postgres\nDATABASE_URL=postgres://localhost/progression\nANSWER_RETRY_BACKOFF=50ms\nNOTIFICATION_START_HOUR=7\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	// godotenv does not override variables that already exist
	for _, k := range []string{"DB_TYPE", "DATABASE_URL", "ANSWER_RETRY_BACKOFF", "NOTIFICATION_START_HOUR"} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DBTypePostgres, cfg.DBType)
	assert.Equal(t, "postgres://localhost/progression", cfg.DatabaseURL)
	assert.Equal(t, 50*time.Millisecond, cfg.AnswerRetryBackoff)
	assert.Equal(t, 7, cfg.NotificationStartHour)
}

func TestLoadRejectsBadValues(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.env")

	t.Setenv("DB_TYPE", "mongodb")
	_, err := Load(missing)
	assert.Error(t, err)

	t.Setenv("DB_TYPE", DBTypeSQLite)
	t.Setenv("NOTIFICATION_END_HOUR", "25")
	_, err = Load(missing)
	assert.Error(t, err)

	t.Setenv("NOTIFICATION_END_HOUR", "18")
	t.Setenv("ANSWER_RETRY_BACKOFF", "soon")
	_, err = Load(missing)
	assert.Error(t, err)
}
