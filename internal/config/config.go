package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config captures runtime configuration sourced from environment variables.
type Config struct {
	Environment string
	HTTPPort    string
	Debug       bool
	LogDir      string
	FrontendDir string

	// AllowedOrigins restricts websocket upgrades; empty allows same-host only.
	AllowedOrigins []string

	// DatabaseURL is either a postgres DSN (postgres:// or host=...) or a SQLite path.
	DatabaseURL string
	JWTSecret   string
	TokenTTL    time.Duration

	Redis RedisConfig
	PDF   PDFConfig
	SMS   SMSConfig

	EmailProvider string // "smtp" or "ses"
	SESRegion     string
	SESFrom       string

	SweepSpec         string
	QuoteValidityDays int
}

// RedisConfig is optional; an empty Addr disables the distributed sweep lock.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type PDFConfig struct {
	Enabled    bool
	ChromePath string
	Timeout    time.Duration
}

type SMSConfig struct {
	Enabled  bool
	Region   string
	SenderID string
}

// DefaultJWTSecret is the development fallback. Load refuses it outside development.
const DefaultJWTSecret = "change-me-in-production"

// Load reads env vars (and a .env file when present) and falls back to defaults
// so the server can boot with zero configuration.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Environment: getEnv("CRM_ENV", "development"),
		HTTPPort:    getEnv("CRM_HTTP_PORT", "8080"),
		Debug:       getBool("CRM_DEBUG", false),
		LogDir:      getEnv("CRM_LOG_DIR", filepath.Join("data", "logs")),
		FrontendDir: os.Getenv("CRM_FRONTEND_DIR"),
		DatabaseURL: getEnv("CRM_DATABASE_URL", filepath.Join("data", "crm.db")),
		JWTSecret:   getEnv("CRM_JWT_SECRET", DefaultJWTSecret),
		TokenTTL:    getDuration("CRM_TOKEN_TTL", 24*time.Hour),
		Redis: RedisConfig{
			Addr:     os.Getenv("CRM_REDIS_ADDR"),
			Password: os.Getenv("CRM_REDIS_PASSWORD"),
			DB:       getInt("CRM_REDIS_DB", 0),
		},
		PDF: PDFConfig{
			Enabled:    getBool("CRM_PDF_ENABLED", true),
			ChromePath: os.Getenv("CRM_CHROME_PATH"),
			Timeout:    getDuration("CRM_PDF_TIMEOUT", 30*time.Second),
		},
		SMS: SMSConfig{
			Enabled:  getBool("CRM_SMS_ENABLED", false),
			Region:   getEnv("CRM_SMS_REGION", "ap-south-1"),
			SenderID: os.Getenv("CRM_SMS_SENDER_ID"),
		},
		EmailProvider:     strings.ToLower(getEnv("CRM_EMAIL_PROVIDER", "smtp")),
		SESRegion:         getEnv("CRM_SES_REGION", "ap-south-1"),
		SESFrom:           os.Getenv("CRM_SES_FROM"),
		SweepSpec:         getEnv("CRM_SWEEP_SPEC", "@every 60s"),
		QuoteValidityDays: getInt("CRM_QUOTE_VALIDITY_DAYS", 30),
		AllowedOrigins:    getList("CRM_ALLOWED_ORIGINS"),
	}

	if IsSQLite(cfg.DatabaseURL) && !strings.HasPrefix(cfg.DatabaseURL, "file:") {
		if err := os.MkdirAll(filepath.Dir(cfg.DatabaseURL), 0o755); err != nil {
			return Config{}, fmt.Errorf("ensure data directory: %w", err)
		}
	}

	if cfg.QuoteValidityDays <= 0 {
		return Config{}, fmt.Errorf("CRM_QUOTE_VALIDITY_DAYS must be positive, got %d", cfg.QuoteValidityDays)
	}

	if cfg.Environment != "development" && (cfg.JWTSecret == "" || cfg.JWTSecret == DefaultJWTSecret) {
		return Config{}, fmt.Errorf("CRM_JWT_SECRET must be set when CRM_ENV is %q", cfg.Environment)
	}

	return cfg, nil
}

// IsSQLite reports whether the database URL points at a SQLite file rather than postgres.
func IsSQLite(url string) bool {
	return !strings.HasPrefix(url, "postgres://") &&
		!strings.HasPrefix(url, "postgresql://") &&
		!strings.Contains(url, "host=")
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}

	return fallback
}

func getBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
