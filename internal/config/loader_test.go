package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scraper.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))

	cfg, err := Load("")
	require.NoError(t, err)

	def := DefaultScrapeConfig()
	assert.Equal(t, def.Origin, cfg.Origin)
	assert.Equal(t, 2, cfg.MaxRetries)
	assert.Equal(t, def.ChallengeIndicators, cfg.ChallengeIndicators)
	assert.Equal(t, Interval{Min: 5 * time.Second, Max: 8 * time.Second}, cfg.Pacing.SearchRender)
}

func TestLoad_FileOverridesAndDefaultsFill(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	path := writeConfig(t, `
max_retries: 4
browser:
  proxy_server: "socks5://127.0.0.1:1080"
pacing:
  search_render:
    min: 1s
    max: 2s
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.MaxRetries)
	assert.Equal(t, "socks5://127.0.0.1:1080", cfg.Browser.ProxyServer)
	assert.Equal(t, Interval{Min: time.Second, Max: 2 * time.Second}, cfg.Pacing.SearchRender)
	// untouched sections keep their defaults
	assert.Equal(t, Interval{Min: 3 * time.Second, Max: 5 * time.Second}, cfg.Pacing.DetailLoad)
	assert.Equal(t, 1920, cfg.Browser.WindowWidth)
}

func TestLoad_EnvWins(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("SCRAPER_MAX_RETRIES", "7")
	t.Setenv("SCRAPER_HEADFUL", "true")
	t.Setenv("SCRAPER_NAVIGATION_TIMEOUT", "10s")
	t.Setenv("SCRAPER_CHALLENGE_INDICATORS", " 验证码 , captcha,, ")
	t.Setenv("SCRAPER_MAX_ITEMS", "lots")
	path := writeConfig(t, "max_retries: 4\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.MaxRetries)
	assert.True(t, cfg.Browser.Headful)
	assert.Equal(t, 10*time.Second, cfg.NavigationTimeout)
	assert.Equal(t, []string{"验证码", "captcha"}, cfg.ChallengeIndicators)
	assert.Equal(t, DefaultScrapeConfig().MaxItems, cfg.MaxItems)
}

func TestLoad_EnvFile(t *testing.T) {
	envPath := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(envPath, []byte("SCRAPER_MAX_COMMENTS=12\n"), 0o600))
	t.Setenv("ENV_FILE", envPath)
	// godotenv does not override variables that are already set, so make
	// sure the key starts unset and is cleaned up afterwards.
	t.Setenv("SCRAPER_MAX_COMMENTS", "")
	require.NoError(t, os.Unsetenv("SCRAPER_MAX_COMMENTS"))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.MaxComments)
}

func TestLoad_Errors(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))

	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	require.Error(t, err)

	_, err = Load(writeConfig(t, "max_retries: [oops"))
	require.Error(t, err)

	_, err = Load(writeConfig(t, "pacing:\n  item_gap:\n    min: 5s\n    max: 1s\n"))
	require.ErrorContains(t, err, "pacing.item_gap")
}

func TestInterval_Validate(t *testing.T) {
	assert.NoError(t, Fixed(time.Second).Validate())
	assert.NoError(t, Interval{}.Validate())
	assert.Error(t, Interval{Min: -time.Second}.Validate())
	assert.Error(t, Interval{Min: 2 * time.Second, Max: time.Second}.Validate())
}
