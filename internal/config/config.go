package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

type Config struct {
	// HTTP Server
	Port               string
	DefaultUserID      string
	RateLimitPerMinute int
	MetricsEnabled     bool

	// Logging
	LogLevel  string
	LogFormat string

	// Backend selection
	DataBackend   string
	DataDirectory string

	// Database
	SQLiteDBPath string
	PostgresDSN  string

	// Supabase
	SupabaseURL    string
	SupabaseAPIKey string

	// Preferences
	PreferencesBackend string
	RedisURL           string

	// AMQP
	AMQPURL           string
	AMQPExchange      string
	AMQPReminderQueue string
	AMQPEventsQueue   string

	// Reminders
	ReminderLeadTime  time.Duration
	ReminderBatchSize int
	ReminderSchedule  string
	RenewalWindowDays int

	// Push delivery
	PushProvider    string
	ExpoPushURL     string
	ExpoAccessToken string

	// Google Sheets
	GoogleSpreadsheetID      string
	GoogleSheetTabPrefix     string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
	SheetsSyncUsers          []string
}

var (
	validBackends           = []string{"memory", "sqlite", "postgres", "supabase"}
	validPreferenceBackends = []string{"", "memory", "redis"}
	validPushProviders      = []string{"log", "expo"}
	validLogLevels          = []string{"debug", "info", "warn", "error"}
	validLogFormats         = []string{"text", "json"}
)

func defaults() *Config {
	return &Config{
		Port:               "8081",
		DefaultUserID:      "default",
		RateLimitPerMinute: 120,
		MetricsEnabled:     true,

		LogLevel:  "info",
		LogFormat: "text",

		DataBackend:   "memory",
		DataDirectory: "./data",
		SQLiteDBPath:  "./data/subtrack.db",

		AMQPExchange:      "subtrack",
		AMQPReminderQueue: "renewal_reminders",
		AMQPEventsQueue:   "subscription_events",

		ReminderLeadTime:  72 * time.Hour,
		ReminderBatchSize: 50,
		ReminderSchedule:  "@every 1m",
		RenewalWindowDays: 7,

		PushProvider: "log",

		GoogleSheetTabPrefix: "Subscriptions",
	}
}

// Load reads the configuration from environment variables on top of the
// defaults.
func Load() *Config {
	cfg := defaults()
	cfg.applyEnv()
	return cfg
}

// LoadWithFile applies a TOML, YAML or JSON file over the defaults and then
// the environment, which wins. An empty path behaves like Load.
func LoadWithFile(path string) (*Config, error) {
	cfg := defaults()
	if path != "" {
		fc, err := readFile(path)
		if err != nil {
			return nil, err
		}
		if err := cfg.applyFile(fc); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Port = getEnv("PORT", c.Port)
	c.DefaultUserID = getEnv("DEFAULT_USER_ID", c.DefaultUserID)
	c.RateLimitPerMinute = getEnvInt("RATE_LIMIT_PER_MINUTE", c.RateLimitPerMinute)
	c.MetricsEnabled = getEnvBool("METRICS_ENABLED", c.MetricsEnabled)

	c.LogLevel = strings.ToLower(getEnv("LOG_LEVEL", c.LogLevel))
	c.LogFormat = strings.ToLower(getEnv("LOG_FORMAT", c.LogFormat))

	c.DataBackend = getEnv("DATA_BACKEND", c.DataBackend)
	c.DataDirectory = getEnv("DATA_DIRECTORY", c.DataDirectory)
	c.SQLiteDBPath = getEnv("SQLITE_DB_PATH", c.SQLiteDBPath)
	c.PostgresDSN = getEnv("POSTGRES_DSN", c.PostgresDSN)

	c.SupabaseURL = getEnv("SUPABASE_URL", c.SupabaseURL)
	c.SupabaseAPIKey = getEnv("SUPABASE_API_KEY", c.SupabaseAPIKey)

	c.PreferencesBackend = getEnv("PREFERENCES_BACKEND", c.PreferencesBackend)
	c.RedisURL = getEnv("REDIS_URL", c.RedisURL)

	c.AMQPURL = getEnv("AMQP_URL", c.AMQPURL)
	c.AMQPExchange = getEnv("AMQP_EXCHANGE", c.AMQPExchange)
	c.AMQPReminderQueue = getEnv("AMQP_REMINDER_QUEUE", c.AMQPReminderQueue)
	c.AMQPEventsQueue = getEnv("AMQP_EVENTS_QUEUE", c.AMQPEventsQueue)

	c.ReminderLeadTime = getEnvDuration("REMINDER_LEAD_TIME", c.ReminderLeadTime)
	c.ReminderBatchSize = getEnvInt("REMINDER_BATCH_SIZE", c.ReminderBatchSize)
	c.ReminderSchedule = getEnv("REMINDER_SCHEDULE", c.ReminderSchedule)
	c.RenewalWindowDays = getEnvInt("RENEWAL_WINDOW_DAYS", c.RenewalWindowDays)

	c.PushProvider = getEnv("PUSH_PROVIDER", c.PushProvider)
	c.ExpoPushURL = getEnv("EXPO_PUSH_URL", c.ExpoPushURL)
	c.ExpoAccessToken = getEnv("EXPO_ACCESS_TOKEN", c.ExpoAccessToken)

	c.GoogleSpreadsheetID = getEnv("GOOGLE_SPREADSHEET_ID", c.GoogleSpreadsheetID)
	c.GoogleSheetTabPrefix = getEnv("GOOGLE_SHEET_TAB_PREFIX", c.GoogleSheetTabPrefix)
	c.GoogleServiceAccountJSON = getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", c.GoogleServiceAccountJSON)
	c.GoogleServiceAccountFile = getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", c.GoogleServiceAccountFile)
	c.SheetsSyncUsers = getEnvList("SHEETS_SYNC_USERS", c.SheetsSyncUsers)
}

// SheetsEnabled reports whether the spreadsheet mirror is configured.
func (c *Config) SheetsEnabled() bool {
	return c.GoogleSpreadsheetID != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if strings.TrimSpace(c.DefaultUserID) == "" {
		errors = append(errors, "default user ID cannot be empty")
	}
	if c.RateLimitPerMinute < 0 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must not be negative", c.RateLimitPerMinute))
	}

	if !oneOf(c.LogLevel, validLogLevels) {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of %v", c.LogLevel, validLogLevels))
	}
	if !oneOf(c.LogFormat, validLogFormats) {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be one of %v", c.LogFormat, validLogFormats))
	}

	// Validate data backend
	if !oneOf(c.DataBackend, validBackends) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	switch c.DataBackend {
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			// Check if directory exists or can be created
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	case "postgres":
		if c.PostgresDSN == "" {
			errors = append(errors, "POSTGRES_DSN is required when using postgres backend")
		}
	case "supabase":
		if c.SupabaseURL == "" {
			errors = append(errors, "SUPABASE_URL is required when using supabase backend")
		} else if u, err := url.Parse(c.SupabaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			errors = append(errors, fmt.Sprintf("invalid Supabase URL '%s': must be http or https", c.SupabaseURL))
		}
		if c.SupabaseAPIKey == "" {
			errors = append(errors, "SUPABASE_API_KEY is required when using supabase backend")
		}
	}

	if !oneOf(c.PreferencesBackend, validPreferenceBackends) {
		errors = append(errors, fmt.Sprintf("invalid preferences backend '%s': must be one of %v", c.PreferencesBackend, validPreferenceBackends))
	}
	if c.PreferencesBackend == "redis" {
		if c.RedisURL == "" {
			errors = append(errors, "REDIS_URL is required when using redis preferences")
		} else if u, err := url.Parse(c.RedisURL); err != nil || (u.Scheme != "redis" && u.Scheme != "rediss") {
			errors = append(errors, fmt.Sprintf("invalid Redis URL '%s': must be redis or rediss", c.RedisURL))
		}
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPReminderQueue == "" || c.AMQPEventsQueue == "" {
			errors = append(errors, "AMQP queue names cannot be empty when AMQP URL is provided")
		}
	}

	// Validate reminder configuration
	if c.ReminderLeadTime < time.Hour {
		errors = append(errors, fmt.Sprintf("invalid reminder lead time %v: must be at least 1 hour", c.ReminderLeadTime))
	} else if c.ReminderLeadTime > 30*24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid reminder lead time %v: must be at most 30 days", c.ReminderLeadTime))
	}
	if c.ReminderBatchSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid reminder batch size %d: must be at least 1", c.ReminderBatchSize))
	} else if c.ReminderBatchSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid reminder batch size %d: must be at most 1000", c.ReminderBatchSize))
	}
	if _, err := cron.ParseStandard(c.ReminderSchedule); err != nil {
		errors = append(errors, fmt.Sprintf("invalid reminder schedule '%s': %v", c.ReminderSchedule, err))
	}
	if c.RenewalWindowDays < 0 || c.RenewalWindowDays > 366 {
		errors = append(errors, fmt.Sprintf("invalid renewal window %d: must be between 0 and 366 days", c.RenewalWindowDays))
	}

	if !oneOf(c.PushProvider, validPushProviders) {
		errors = append(errors, fmt.Sprintf("invalid push provider '%s': must be one of %v", c.PushProvider, validPushProviders))
	}

	// Google Sheets credentials are only checked when the mirror is enabled
	if c.SheetsEnabled() {
		if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" && os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_APPLICATION_CREDENTIALS must be provided for the sheets mirror")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
