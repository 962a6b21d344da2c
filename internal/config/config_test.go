//go:build unit

package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{"PORTAL_API_URL", "PORTAL_PAGE_SIZE", "PORTAL_HTTP_TIMEOUT", "PORTAL_LOG_LEVEL"} {
		t.Setenv(k, "")
	}
	cfg := FromEnv()
	assert.Equal(t, "http://localhost:8081", cfg.APIURL)
	assert.Equal(t, 10, cfg.PageSize)
	assert.Equal(t, 10*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.NotEmpty(t, cfg.CredentialsPath)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("PORTAL_API_URL", "https://books.example.com")
	t.Setenv("PORTAL_PAGE_SIZE", "25")
	t.Setenv("PORTAL_HTTP_TIMEOUT", "3s")
	t.Setenv("PORTAL_LOG_LEVEL", "debug")
	t.Setenv("PORTAL_CREDENTIALS", "/tmp/cred")

	cfg := FromEnv()
	assert.Equal(t, "https://books.example.com", cfg.APIURL)
	assert.Equal(t, 25, cfg.PageSize)
	assert.Equal(t, 3*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, "/tmp/cred", cfg.CredentialsPath)
}

func TestFromEnv_BadValuesFallBack(t *testing.T) {
	t.Setenv("PORTAL_PAGE_SIZE", "-4")
	t.Setenv("PORTAL_HTTP_TIMEOUT", "soon")
	t.Setenv("PORTAL_LOG_LEVEL", "loud")

	cfg := FromEnv()
	assert.Equal(t, 10, cfg.PageSize)
	assert.Equal(t, 10*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
}
