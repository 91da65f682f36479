package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL string
	HTTPPort    string
	LogLevel    string

	JWTSecret    string
	SessionTTL   time.Duration
	CookieSecure bool

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	PostLoginRedirect  string
}

// GoogleEnabled reports whether the OAuth sign-in routes should be mounted.
func (c *Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// LoadDotEnv loads a .env file if one exists. It reports whether a file was found.
func LoadDotEnv() bool {
	return godotenv.Load() == nil
}

// Load reads the server configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL: getEnv("DATABASE_URL", "sow_wizard.db"),
		HTTPPort:    getEnv("HTTP_PORT", "8080"),
		LogLevel:    getEnv("LOG_LEVEL", "INFO"),

		JWTSecret:    getEnv("JWT_SECRET", ""),
		SessionTTL:   getEnvAsDuration("SESSION_TTL", 24*time.Hour),
		CookieSecure: getEnvAsBool("COOKIE_SECURE", false),

		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:  getEnv("GOOGLE_REDIRECT_URL", "http://localhost:8080/auth/google/callback"),
		PostLoginRedirect:  getEnv("POST_LOGIN_REDIRECT", "/"),
	}

	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET environment variable is required")
	}
	if cfg.SessionTTL <= 0 {
		return nil, errors.New("SESSION_TTL must be a positive duration")
	}
	return cfg, nil
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
