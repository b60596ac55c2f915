// Package config provides environment-driven configuration for the server and CLI.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jonathan/otj-helper/internal/db"
	"github.com/jonathan/otj-helper/internal/types"
)

// DefaultSecretKey is the development signing key. It is rejected on deployed environments.
const DefaultSecretKey = "dev-key-change-in-production"

// Config holds every setting read from the environment.
type Config struct {
	Port        string
	DatabaseURL string // PostgreSQL URL; empty selects SQLite
	DBPath      string // SQLite file used when DatabaseURL is empty

	SecretKey              string
	SessionExpirationHours int

	GoogleClientID     string
	GoogleClientSecret string
	OAuthRedirectURL   string
	DevAutoLoginEmail  string
	AllowedEmails      map[string]bool // empty allows everyone

	UploadDir      string
	MaxUploadBytes int64

	RecurrenceInterval time.Duration
	RailwayEnvironment string
}

// Load reads the configuration from environment variables, applying defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Port:                   getEnvString("PORT", "8080"),
		DatabaseURL:            strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DBPath:                 getEnvString("OTJ_DB_PATH", filepath.Join("data", "otj.db")),
		SecretKey:              getEnvString("SECRET_KEY", DefaultSecretKey),
		SessionExpirationHours: getEnvInt("SESSION_EXPIRATION_HOURS", 24*14),
		GoogleClientID:         os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret:     os.Getenv("GOOGLE_CLIENT_SECRET"),
		OAuthRedirectURL:       os.Getenv("OAUTH_REDIRECT_URL"),
		DevAutoLoginEmail:      strings.ToLower(strings.TrimSpace(os.Getenv("DEV_AUTO_LOGIN_EMAIL"))),
		AllowedEmails:          parseEmailList(os.Getenv("ALLOWED_EMAILS")),
		UploadDir:              getEnvString("UPLOAD_DIR", filepath.Join("data", "uploads")),
		MaxUploadBytes:         int64(getEnvInt("MAX_UPLOAD_BYTES", types.MaxUploadBytes)),
		RecurrenceInterval:     getEnvDuration("RECURRENCE_INTERVAL", time.Hour),
		RailwayEnvironment:     os.Getenv("RAILWAY_ENVIRONMENT"),
	}

	if cfg.MaxUploadBytes < 1 {
		return nil, fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got: %d", cfg.MaxUploadBytes)
	}
	if cfg.RecurrenceInterval <= 0 {
		return nil, fmt.Errorf("RECURRENCE_INTERVAL must be positive, got: %s", cfg.RecurrenceInterval)
	}
	return cfg, nil
}

// OAuthEnabled reports whether Google sign-in is fully configured.
func (c *Config) OAuthEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// DevLoginEnabled reports whether requests without a session are signed in automatically.
func (c *Config) DevLoginEnabled() bool {
	return c.DevAutoLoginEmail != ""
}

// EmailAllowed reports whether the address may sign in.
func (c *Config) EmailAllowed(email string) bool {
	if len(c.AllowedEmails) == 0 {
		return true
	}
	return c.AllowedEmails[strings.ToLower(strings.TrimSpace(email))]
}

// Database resolves the configured backend and its DSN.
func (c *Config) Database() (db.Dialect, string, error) {
	return ResolveDatabase(c.DatabaseURL, c.DBPath)
}

// Session returns the session signing configuration.
func (c *Config) Session() (*SessionConfig, error) {
	return NewSessionConfig(c.SecretKey, c.SessionExpirationHours)
}

// ResolveDatabase picks PostgreSQL for postgres:// and postgresql:// URLs and the
// SQLite file at dbPath otherwise. The SQLite parent directory is created.
func ResolveDatabase(databaseURL, dbPath string) (db.Dialect, string, error) {
	if strings.HasPrefix(databaseURL, "postgres://") || strings.HasPrefix(databaseURL, "postgresql://") {
		return db.Postgres, NormalizeDatabaseURLPassword(databaseURL), nil
	}
	if databaseURL != "" {
		return "", "", fmt.Errorf("unsupported DATABASE_URL scheme: only postgres:// and postgresql:// are accepted")
	}

	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", "", fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}
	return db.SQLite, db.SQLiteDSN(dbPath), nil
}

// NormalizeDatabaseURLPassword decodes and re-encodes the password of a database
// URL so characters such as @, # and % reach the driver intact. URLs without a
// password, or that cannot be parsed, are returned unchanged.
func NormalizeDatabaseURLPassword(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	password, ok := u.User.Password()
	if !ok {
		return raw
	}
	u.User = url.UserPassword(u.User.Username(), password)
	return u.String()
}

// ValidateDeployEnv checks a deployed (Railway) environment for settings that
// would leave the app insecure or unable to sign anyone in. It is a no-op when
// RAILWAY_ENVIRONMENT is unset. Every problem is reported in one error.
func ValidateDeployEnv(databaseURL string) error {
	if os.Getenv("RAILWAY_ENVIRONMENT") == "" {
		return nil
	}

	var problems []string
	secret := os.Getenv("SECRET_KEY")
	if secret == "" || secret == DefaultSecretKey {
		problems = append(problems, "SECRET_KEY must be set to a random value (not the development default)")
	}

	oauth := os.Getenv("GOOGLE_CLIENT_ID") != "" && os.Getenv("GOOGLE_CLIENT_SECRET") != ""
	if !oauth && os.Getenv("DEV_AUTO_LOGIN_EMAIL") == "" {
		problems = append(problems,
			"no login method configured: set GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET, or DEV_AUTO_LOGIN_EMAIL")
	}

	if databaseURL != "" {
		if u, err := url.Parse(databaseURL); err != nil {
			problems = append(problems, fmt.Sprintf("DATABASE_URL cannot be parsed: %v", err))
		} else {
			if _, ok := u.User.Password(); !ok {
				problems = append(problems, "DATABASE_URL has no password")
			}
			if u.Hostname() == "" {
				problems = append(problems, "DATABASE_URL has no host")
			}
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("deployment environment is misconfigured:\n  - %s", strings.Join(problems, "\n  - "))
}

func parseEmailList(list string) map[string]bool {
	result := make(map[string]bool)
	for _, email := range strings.Split(list, ",") {
		email = strings.ToLower(strings.TrimSpace(email))
		if email != "" {
			result[email] = true
		}
	}
	return result
}

// getEnvString gets an environment variable as a string with a default value.
func getEnvString(key string, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an environment variable as an integer with a default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvDuration gets an environment variable as a duration with a default value.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
