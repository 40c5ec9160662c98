package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0644))
}

func TestLoadConfig_Defaults(t *testing.T) {
	dir := t.TempDir()
	uploads := filepath.Join(dir, "uploads")
	writeConfig(t, dir, "storage:\n  local_path: "+uploads+"\n")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 24*time.Hour, cfg.JWT.ExpireTime)
	assert.Equal(t, "local", cfg.Storage.Type)
	assert.Equal(t, 80.0, cfg.Progression.ModulePassingScore)
	assert.Equal(t, 3, cfg.Progression.MaxAttempts)
	assert.Equal(t, 70.0, cfg.Progression.Policy().AssignmentPassingScore)
	assert.Equal(t, 30*24*time.Hour, cfg.Progression.AppealWindow())
	assert.Equal(t, "0 3 * * *", cfg.Progression.MaintenanceSchedule)
	assert.Equal(t, 10, cfg.Gamification.LessonPoints)
	assert.Equal(t, filepath.Join(dir, "config.yaml"), cfg.ConfigFile)

	_, err = os.Stat(uploads)
	assert.NoError(t, err)
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
server:
  port: "9090"
storage:
  local_path: `+filepath.Join(dir, "files")+`
progression:
  module_passing_score: 75
  max_attempts: 5
`)
	t.Setenv("JWT_SECRET", "from-env")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "from-env", cfg.JWT.Secret)

	p := cfg.Progression.Policy()
	assert.Equal(t, 75.0, p.ModulePassingScore)
	assert.Equal(t, 5, p.DefaultMaxAttempts)
}

func TestLoadConfig_ReleaseNeedsStrongSecret(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "server:\n  mode: release\nstorage:\n  local_path: "+filepath.Join(dir, "u")+"\njwt:\n  secret: short\n")

	_, err := LoadConfig(dir)
	assert.Error(t, err)
}
