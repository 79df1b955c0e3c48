// Package config handles loading application configuration from environment variables.
// All settings have sensible defaults for local development.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application settings loaded from environment variables.
type Config struct {
	Port               string
	DatabasePath       string
	JWTSecret          string
	TokenDuration      time.Duration
	AdminSignupCode    string
	SongsDir           string
	RateLimitPerMinute int
	CORSAllowedOrigins []string
	TrustedProxies     []string
	SentryDSN          string
	SentryEnvironment  string
}

// Load reads configuration from environment variables, using defaults where not set.
// A .env file in the working directory is applied first if present; variables that
// are already set in the environment win.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to read .env file", slog.String("error", err.Error()))
	}

	return &Config{
		Port:               getEnv("PORT", "8080"),
		DatabasePath:       getEnv("DATABASE_PATH", "./jamroom.db"),
		JWTSecret:          getEnv("JWT_SECRET", "change-me-in-production"), // #nosec G101 -- intentional dev default
		TokenDuration:      getDurationEnv("TOKEN_DURATION", 24*time.Hour),
		AdminSignupCode:    getEnv("ADMIN_SIGNUP_CODE", ""),
		SongsDir:           getEnv("SONGS_DIR", "./songs"),
		RateLimitPerMinute: getIntEnv("RATE_LIMIT_PER_MINUTE", 20),
		CORSAllowedOrigins: getStringSliceEnv("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173", "http://localhost:3000"}),
		TrustedProxies:     getStringSliceEnv("TRUSTED_PROXIES", nil),
		SentryDSN:          getEnv("SENTRY_DSN", ""),
		SentryEnvironment:  getEnv("SENTRY_ENVIRONMENT", "production"),
	}
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var result []string
	for _, s := range strings.Split(value, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			result = append(result, s)
		}
	}
	return result
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
