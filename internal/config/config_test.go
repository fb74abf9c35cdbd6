package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/sluice/internal/config"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir runs the test from an empty directory so no stray sluice.yaml or
// .env is picked up.
func chdir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t)

	cfg, err := config.Load(viper.New(), config.Options{})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(".sluice", "schedules"), cfg.Dir)
	assert.Equal(t, 10*time.Second, cfg.PollInterval)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "jobs.yaml", cfg.JobsFile)
	assert.Empty(t, cfg.RedisURL)
}

func TestLoad_Precedence(t *testing.T) {
	dir := chdir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sluice.yaml"), []byte(`
dir: /srv/schedules
poll_interval: 30s
log_level: debug
smtp:
  host: mail.example.org
  port: 587
  from: sluice@example.org
`), 0644))
	t.Setenv("SLUICE_POLL_INTERVAL", "1m")
	t.Setenv("SLUICE_SMTP_PORT", "2525")

	v := viper.New()
	v.Set("log_level", "warn") // what a bound flag would do

	cfg, err := config.Load(v, config.Options{})
	require.NoError(t, err)
	assert.Equal(t, "/srv/schedules", cfg.Dir)
	assert.Equal(t, time.Minute, cfg.PollInterval)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "mail.example.org", cfg.SMTP.Host)
	assert.Equal(t, 2525, cfg.SMTP.Port)
}

func TestLoad_EnvFile(t *testing.T) {
	dir := chdir(t)
	envFile := filepath.Join(dir, "custom.env")
	require.NoError(t, os.WriteFile(envFile, []byte("SLUICE_REDIS_URL=redis://localhost:6379/0\n"), 0644))
	t.Setenv("SLUICE_REDIS_URL", "")
	os.Unsetenv("SLUICE_REDIS_URL")

	cfg, err := config.Load(viper.New(), config.Options{EnvFile: envFile})
	require.NoError(t, err)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
}

func TestLoad_Invalid(t *testing.T) {
	dir := chdir(t)
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level: loud
poll_interval: 0s
smtp:
  host: mail.example.org
`), 0644))

	_, err := config.Load(viper.New(), config.Options{ConfigFile: path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log_level")
	assert.Contains(t, err.Error(), "poll_interval")
	assert.Contains(t, err.Error(), "smtp.from")
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	chdir(t)
	_, err := config.Load(viper.New(), config.Options{ConfigFile: "nope.yaml"})
	assert.Error(t, err)
}
