package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const curriculumYAML = `
skills:
  - name: basics
    concepts:
      - key: es.hola
  - name: greetings
    concepts:
      - key: es.gracias
    prerequisites:
      - skill: basics
`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCLIFlow(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DB_TYPE", "sqlite")
	t.Setenv("DB_PATH", filepath.Join(dir, "progression.db"))
	t.Setenv("LOG_MODE", "production")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	env := filepath.Join(dir, "missing.env")

	file := filepath.Join(dir, "curriculum.yaml")
	require.NoError(t, os.WriteFile(file, []byte(curriculumYAML), 0o600))

	out, err := run(t, "--env", env, "validate", file)
	require.NoError(t, err)
	assert.Contains(t, out, "ok: 2 skills, 2 concepts, 1 prerequisites")

	xlsx := filepath.Join(dir, "curriculum.xlsx")
	_, err = run(t, "--env", env, "convert", file, xlsx)
	require.NoError(t, err)

	out, err = run(t, "--env", env, "import", xlsx)
	require.NoError(t, err)
	assert.Contains(t, out, "imported 2 skills, 2 concepts, 1 prerequisites")

	out, err = run(t, "--env", env, "answer", "--user", "7", "--key", "es.hola", "--correct", "--ms", "2000")
	require.NoError(t, err)
	assert.Contains(t, out, `"quality": 5`)

	out, err = run(t, "--env", env, "tree", "--user", "7")
	require.NoError(t, err)
	assert.Contains(t, out, `"status": "in_progress"`)
	assert.Contains(t, out, `"status": "locked"`)

	out, err = run(t, "--env", env, "user", "--id", "7", "--hour", "8", "--per-day", "5")
	require.NoError(t, err)
	assert.Contains(t, out, `"notification_hour": 8`)
	assert.Contains(t, out, `"reviews_per_day": 5`)

	// nothing is due right after the answer
	out, err = run(t, "--env", env, "remind", "--user", "7")
	require.NoError(t, err)
	assert.Contains(t, out, `"sent": false`)

	// no bot token: the reminder goes to the log notifier even without a chat
	out, err = run(t, "--env", env, "remind", "--user", "7", "--at", time.Now().UTC().AddDate(0, 0, 2).Format(time.RFC3339))
	require.NoError(t, err)
	assert.Contains(t, out, `"sent": true`)

	_, err = run(t, "--env", env, "answer", "--user", "0", "--concept", "1")
	assert.Error(t, err)
	_, err = run(t, "--env", env, "answer", "--user", "7", "--key", "es.nada")
	assert.Error(t, err)
	_, err = run(t, "--env", env, "answer", "--user", "7")
	assert.Error(t, err)
	_, err = run(t, "--env", env, "user", "--id", "7", "--hour", "24")
	assert.Error(t, err)
}
