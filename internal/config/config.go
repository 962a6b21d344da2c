package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	APIURL          string
	Addr            string
	PageSize        int
	HTTPTimeout     time.Duration
	CredentialsPath string
	StubAddr        string
	StubSecret      string
	LogLevel        slog.Level
}

// Load reads the environment, after merging a .env file from the working
// directory when one exists. Variables already set win over the file.
func Load() Config {
	_ = godotenv.Load()
	return FromEnv()
}

func FromEnv() Config {
	return Config{
		APIURL:          getenv("PORTAL_API_URL", "http://localhost:8081"),
		Addr:            getenv("PORTAL_ADDR", "127.0.0.1:8080"),
		PageSize:        getenvInt("PORTAL_PAGE_SIZE", 10),
		HTTPTimeout:     getenvDuration("PORTAL_HTTP_TIMEOUT", 10*time.Second),
		CredentialsPath: getenv("PORTAL_CREDENTIALS", defaultCredentialsPath()),
		StubAddr:        getenv("PORTAL_STUB_ADDR", "127.0.0.1:8081"),
		StubSecret:      getenv("PORTAL_STUB_SECRET", "dev-secret-change-me"),
		LogLevel:        parseLevel(getenv("PORTAL_LOG_LEVEL", "info")),
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvInt(k string, def int) int {
	n, err := strconv.Atoi(os.Getenv(k))
	if err != nil || n < 1 {
		return def
	}
	return n
}

func getenvDuration(k string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(k))
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func parseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return l
}

func defaultCredentialsPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "book-portal", "credential")
}
