package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: every environment variable is read here and nowhere else
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production, test

	// Database (optional warehouse sink)
	Database DatabaseConfig

	// NSE scraping
	NSE NSEConfig

	// Scheduler
	Scheduler SchedulerConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Enabled reports whether a warehouse database is configured
func (d DatabaseConfig) Enabled() bool {
	return d.URL != ""
}

// NSEConfig holds fetcher, cache and calendar settings
type NSEConfig struct {
	DataRoot      string
	EndpointsFile string // empty: embedded endpoints.yaml

	// Fetcher
	MaxRetries int // total attempts per request
	Timeout    time.Duration
	PaceDelay  time.Duration // before every attempt
	RetryDelay time.Duration // after a failed attempt

	// Pacing between chunked/bulk requests
	ChunkDelay   time.Duration
	RefreshDelay time.Duration

	// Calendar
	Timezone        string
	MarketClose     string // HH:MM
	CalendarCutoff  string // HH:MM
	ReferenceSymbol string
}

// SchedulerConfig holds cron specs (6 fields, seconds first)
type SchedulerConfig struct {
	EODSpec     string
	SymbolsSpec string
	MaxRetries  int
	RetryDelay  time.Duration
}

// Load reads configuration from environment variables
// ⭐ SSOT: the only function that calls os.Getenv()
func Load() (*Config, error) {
	// Try multiple paths for .env file
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8089"),
		Env:  getEnv("ENV", "development"),

		// Database
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 1),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		NSE: NSEConfig{
			DataRoot:        getEnv("NSE_DATA_ROOT", "data"),
			EndpointsFile:   getEnv("NSE_ENDPOINTS_FILE", ""),
			MaxRetries:      getEnvAsInt("NSE_MAX_RETRIES", 5),
			Timeout:         getEnvAsDuration("NSE_TIMEOUT", "10s"),
			PaceDelay:       getEnvAsDuration("NSE_PACE_DELAY", "5s"),
			RetryDelay:      getEnvAsDuration("NSE_RETRY_DELAY", "10s"),
			ChunkDelay:      getEnvAsDuration("NSE_CHUNK_DELAY", "1s"),
			RefreshDelay:    getEnvAsDuration("NSE_REFRESH_DELAY", "1s"),
			Timezone:        getEnv("NSE_TIMEZONE", "Asia/Kolkata"),
			MarketClose:     getEnv("MARKET_CLOSE", "15:30"),
			CalendarCutoff:  getEnv("CALENDAR_CUTOFF", "18:45"),
			ReferenceSymbol: getEnv("NSE_REFERENCE_SYMBOL", "SBIN"),
		},

		Scheduler: SchedulerConfig{
			EODSpec:     getEnv("SCHEDULER_EOD_SPEC", "0 0 19 * * MON-FRI"),
			SymbolsSpec: getEnv("SCHEDULER_SYMBOLS_SPEC", "0 0 8 * * SAT"),
			MaxRetries:  getEnvAsInt("SCHEDULER_MAX_RETRIES", 2),
			RetryDelay:  getEnvAsDuration("SCHEDULER_RETRY_DELAY", "1m"),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if configuration values are usable
func (c *Config) validate() error {
	switch c.Env {
	case "development", "staging", "production", "test":
	default:
		return fmt.Errorf("ENV must be one of: development, staging, production, test")
	}

	if c.NSE.MaxRetries < 1 {
		return fmt.Errorf("NSE_MAX_RETRIES must be at least 1")
	}

	if _, err := c.NSE.Location(); err != nil {
		return err
	}

	if _, err := ParseClock(c.NSE.MarketClose); err != nil {
		return fmt.Errorf("MARKET_CLOSE: %w", err)
	}

	if _, err := ParseClock(c.NSE.CalendarCutoff); err != nil {
		return fmt.Errorf("CALENDAR_CUTOFF: %w", err)
	}

	return nil
}

// Location resolves the exchange timezone
func (n NSEConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(n.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid NSE_TIMEZONE %q: %w", n.Timezone, err)
	}
	return loc, nil
}

// ParseClock converts "HH:MM" into an offset from midnight
func ParseClock(s string) (time.Duration, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("expected HH:MM, got %q", s)
	}

	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}

	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}

	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute, nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	// Try paths in order of priority
	paths := []string{
		".env", // Current directory
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		// Fallback to default
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
