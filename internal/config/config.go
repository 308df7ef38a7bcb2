// Package config loads the server configuration from the environment.
//
// A .env file in the working directory, when present, seeds variables that
// are not already set. Real environment variables always win.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

const (
	defaultPort   = 8080
	defaultDBPath = "data/gitpilot.db"
)

// Config holds everything main needs to build the server.
type Config struct {
	Port   int
	DBPath string

	// JWTSecret signs session tokens. Empty disables authentication routes.
	JWTSecret string

	GitHubClientID     string
	GitHubClientSecret string
	GitHubCallbackURL  string
	// GitHubToken authenticates repository metadata lookups. Optional, but
	// anonymous calls are heavily rate limited.
	GitHubToken string

	// NATSURL enables event publishing when set.
	NATSURL string

	AllowDuplicateJoinRequests bool
}

// Load reads the configuration, seeding from envFile when it exists.
// Pass "" to skip the file.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: loading %s: %w", envFile, err)
		}
	}

	cfg := &Config{
		Port:               defaultPort,
		DBPath:             getenv("DB_PATH", defaultDBPath),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		GitHubClientID:     os.Getenv("GITHUB_CLIENT_ID"),
		GitHubClientSecret: os.Getenv("GITHUB_CLIENT_SECRET"),
		GitHubCallbackURL:  os.Getenv("GITHUB_CALLBACK_URL"),
		GitHubToken:        os.Getenv("GITHUB_TOKEN"),
		NATSURL:            os.Getenv("NATS_URL"),
	}

	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			return nil, fmt.Errorf("config: invalid PORT %q", v)
		}
		cfg.Port = port
	}

	if v := os.Getenv("ALLOW_DUPLICATE_JOIN_REQUESTS"); v != "" {
		allow, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("config: invalid ALLOW_DUPLICATE_JOIN_REQUESTS %q: %w", v, err)
		}
		cfg.AllowDuplicateJoinRequests = allow
	}

	if cfg.GitHubCallbackURL == "" {
		cfg.GitHubCallbackURL = fmt.Sprintf("http://localhost:%d/auth/github/callback", cfg.Port)
	}

	return cfg, nil
}

// AuthEnabled reports whether the GitHub login routes can be registered.
func (c *Config) AuthEnabled() bool {
	return c.JWTSecret != "" && c.GitHubClientID != "" && c.GitHubClientSecret != ""
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
