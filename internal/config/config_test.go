package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadWithDefaults(t *testing.T) {
	cfg, err := Load(context.Background(), WithEnvMap(map[string]string{}), WithoutSystemEnv(), WithEnvFile(""))
	require.NoError(t, err)

	require.Equal(t, "8080", cfg.Server.Port)
	require.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	require.Equal(t, 60*time.Second, cfg.Server.IdleTimeout)
	require.Equal(t, "https://www.airtoolpro.com", cfg.Site.Origin)
	require.Equal(t, "AirTool Pro", cfg.Site.Name)
	require.Equal(t, "https://www.airtoolpro.com", cfg.API.Origin, "api origin defaults to site origin")
	require.Equal(t, "https://www.airtoolpro.com/php/api", cfg.API.BaseURL())
	require.Equal(t, 10*time.Second, cfg.API.Timeout)
	require.Equal(t, 30*time.Second, cfg.Images.CacheTTL)
	require.False(t, cfg.Admin.Enabled())
	require.Equal(t, "info", cfg.Log.Level)
}

func TestLoadWithOverrides(t *testing.T) {
	env := map[string]string{
		"PORT":                     "9000",
		"SITE_WEB_PORT":            "9090",
		"SITE_ORIGIN":              "https://staging.airtoolpro.com/",
		"SITE_NAME":                "AirTool Pro Staging",
		"SITE_API_ORIGIN":          "http://php.internal:8081",
		"SITE_API_BASE_PATH":       "/api/v2/",
		"SITE_API_TIMEOUT":         "3s",
		"SITE_IMAGE_CACHE_TTL":     "1m",
		"SITE_SERVER_READ_TIMEOUT": "20s",
		"SITE_ADMIN_TOKEN":         "s3cret",
		"LOG_LEVEL":                "DEBUG",
	}
	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	require.NoError(t, err)

	require.Equal(t, "9090", cfg.Server.Port)
	require.Equal(t, "https://staging.airtoolpro.com", cfg.Site.Origin)
	require.Equal(t, "AirTool Pro Staging", cfg.Site.Name)
	require.Equal(t, "http://php.internal:8081/api/v2", cfg.API.BaseURL())
	require.Equal(t, 3*time.Second, cfg.API.Timeout)
	require.Equal(t, time.Minute, cfg.Images.CacheTTL)
	require.Equal(t, 20*time.Second, cfg.Server.ReadTimeout)
	require.True(t, cfg.Admin.Enabled())
	require.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadFallsBackToCloudRunPort(t *testing.T) {
	cfg, err := Load(context.Background(), WithEnvMap(map[string]string{"PORT": "7070"}), WithoutSystemEnv(), WithEnvFile(""))
	require.NoError(t, err)
	require.Equal(t, "7070", cfg.Server.Port)
}

func TestLoadReadsDotEnvWithLowerPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "# local overrides\nSITE_NAME=\"From File\"\nexport SITE_IMAGE_CACHE_TTL=45s\nSITE_ADMIN_TOKEN=file-token\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(context.Background(),
		WithEnvFile(path),
		WithoutSystemEnv(),
		WithEnvMap(map[string]string{"SITE_ADMIN_TOKEN": "map-token"}),
	)
	require.NoError(t, err)
	require.Equal(t, "From File", cfg.Site.Name)
	require.Equal(t, 45*time.Second, cfg.Images.CacheTTL)
	require.Equal(t, "map-token", cfg.Admin.Token)
}

func TestLoadIgnoresMissingDotEnv(t *testing.T) {
	_, err := Load(context.Background(), WithEnvFile(filepath.Join(t.TempDir(), "missing.env")), WithoutSystemEnv())
	require.NoError(t, err)
}

func TestLoadValidation(t *testing.T) {
	env := map[string]string{
		"SITE_ORIGIN":          "www.airtoolpro.com",
		"SITE_API_BASE_PATH":   "php/api",
		"SITE_IMAGE_CACHE_TTL": "soon",
		"SITE_API_TIMEOUT":     "-1s",
		"LOG_LEVEL":            "loud",
	}
	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))

	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
	require.ElementsMatch(t, []string{
		"SITE_ORIGIN",
		"SITE_API_ORIGIN",
		"SITE_API_BASE_PATH",
		"SITE_IMAGE_CACHE_TTL",
		"SITE_API_TIMEOUT",
		"LOG_LEVEL",
	}, vErr.Fields())
}
