package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Config holds process configuration, read from the environment (with an
// optional .env file for local development).
type Config struct {
	DatabaseURL string
	LogLevel    string
	LogFormat   string // "console" or "json"
}

// Load reads configuration from the environment. DATABASE_URL is required.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		LogLevel:    envOr("LOG_LEVEL", "info"),
		LogFormat:   envOr("LOG_FORMAT", "console"),
	}
	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL environment variable not set")
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
