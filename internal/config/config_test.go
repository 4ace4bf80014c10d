package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/scan-insight/internal/config"
)

func write(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		// given
		p := write(t, "database:\n  host: db\n  user: app\n  name: findings\n")

		// when
		cfg, err := config.Load(p)

		// then
		require.NoError(t, err)
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, "mysql", cfg.Database.Driver)
		assert.Equal(t, 3306, cfg.Database.Port)
		require.NotNil(t, cfg.Conversation.IntentThreshold)
		assert.Equal(t, float64(30), *cfg.Conversation.IntentThreshold)
		assert.Equal(t, 30, cfg.Conversation.DetailRowCap)
		assert.Equal(t, 200, cfg.Conversation.ResourceNameBudget)
		assert.Equal(t, 80000, cfg.Conversation.MaxPromptChars)
		assert.Equal(t, "/tmp/scan-insight/results", cfg.Reports.Dir)
		assert.Equal(t, "app:@tcp(db:3306)/findings?parseTime=true&charset=utf8mb4&loc=UTC", cfg.DSN())
	})

	t.Run("postgres with env secret", func(t *testing.T) {
		// given
		t.Setenv("DB_PASSWORD", "p@ss")
		p := write(t, `
database:
  driver: postgres
  host: pg
  user: app
  name: findings
conversation:
  intentThreshold: 50
ai:
  provider: gemini
`)

		// when
		cfg, err := config.Load(p)

		// then
		require.NoError(t, err)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "postgres://app:p%40ss@pg:5432/findings?sslmode=disable", cfg.DSN())
		require.NotNil(t, cfg.Conversation.IntentThreshold)
		assert.Equal(t, float64(50), *cfg.Conversation.IntentThreshold)
		assert.Equal(t, "gemini", cfg.AI.Provider)
	})

	t.Run("explicit zero threshold is kept", func(t *testing.T) {
		// given
		p := write(t, "conversation:\n  intentThreshold: 0\n")

		// when
		cfg, err := config.Load(p)

		// then
		require.NoError(t, err)
		require.NotNil(t, cfg.Conversation.IntentThreshold)
		assert.Zero(t, *cfg.Conversation.IntentThreshold)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		_, err := config.Load(write(t, "server: [1,2"))
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}

func TestPath(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	assert.Equal(t, "config.yaml", config.Path())

	t.Setenv("CONFIG_PATH", "/etc/scan-insight.yaml")
	assert.Equal(t, "/etc/scan-insight.yaml", config.Path())
}
