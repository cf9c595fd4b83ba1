package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml"
	"gopkg.in/yaml.v3"
)

// fileConfig is the on-disk shape. Zero values leave the default in place,
// so booleans are pointers.
type fileConfig struct {
	Port               string `json:"port" yaml:"port" toml:"port"`
	DefaultUserID      string `json:"default_user_id" yaml:"default_user_id" toml:"default_user_id"`
	RateLimitPerMinute int    `json:"rate_limit_per_minute" yaml:"rate_limit_per_minute" toml:"rate_limit_per_minute"`
	MetricsEnabled     *bool  `json:"metrics_enabled" yaml:"metrics_enabled" toml:"metrics_enabled"`

	Log struct {
		Level  string `json:"level" yaml:"level" toml:"level"`
		Format string `json:"format" yaml:"format" toml:"format"`
	} `json:"log" yaml:"log" toml:"log"`

	Data struct {
		Backend     string `json:"backend" yaml:"backend" toml:"backend"`
		Directory   string `json:"directory" yaml:"directory" toml:"directory"`
		SQLitePath  string `json:"sqlite_path" yaml:"sqlite_path" toml:"sqlite_path"`
		PostgresDSN string `json:"postgres_dsn" yaml:"postgres_dsn" toml:"postgres_dsn"`
	} `json:"data" yaml:"data" toml:"data"`

	Supabase struct {
		URL    string `json:"url" yaml:"url" toml:"url"`
		APIKey string `json:"api_key" yaml:"api_key" toml:"api_key"`
	} `json:"supabase" yaml:"supabase" toml:"supabase"`

	Preferences struct {
		Backend  string `json:"backend" yaml:"backend" toml:"backend"`
		RedisURL string `json:"redis_url" yaml:"redis_url" toml:"redis_url"`
	} `json:"preferences" yaml:"preferences" toml:"preferences"`

	AMQP struct {
		URL           string `json:"url" yaml:"url" toml:"url"`
		Exchange      string `json:"exchange" yaml:"exchange" toml:"exchange"`
		ReminderQueue string `json:"reminder_queue" yaml:"reminder_queue" toml:"reminder_queue"`
		EventsQueue   string `json:"events_queue" yaml:"events_queue" toml:"events_queue"`
	} `json:"amqp" yaml:"amqp" toml:"amqp"`

	Reminders struct {
		LeadTime   string `json:"lead_time" yaml:"lead_time" toml:"lead_time"`
		BatchSize  int    `json:"batch_size" yaml:"batch_size" toml:"batch_size"`
		Schedule   string `json:"schedule" yaml:"schedule" toml:"schedule"`
		WindowDays int    `json:"window_days" yaml:"window_days" toml:"window_days"`
	} `json:"reminders" yaml:"reminders" toml:"reminders"`

	Push struct {
		Provider    string `json:"provider" yaml:"provider" toml:"provider"`
		ExpoURL     string `json:"expo_url" yaml:"expo_url" toml:"expo_url"`
		AccessToken string `json:"access_token" yaml:"access_token" toml:"access_token"`
	} `json:"push" yaml:"push" toml:"push"`

	Sheets struct {
		SpreadsheetID      string   `json:"spreadsheet_id" yaml:"spreadsheet_id" toml:"spreadsheet_id"`
		TabPrefix          string   `json:"tab_prefix" yaml:"tab_prefix" toml:"tab_prefix"`
		ServiceAccountFile string   `json:"service_account_file" yaml:"service_account_file" toml:"service_account_file"`
		SyncUsers          []string `json:"sync_users" yaml:"sync_users" toml:"sync_users"`
	} `json:"sheets" yaml:"sheets" toml:"sheets"`
}

// readFile loads a TOML, YAML or JSON configuration file.
func readFile(path string) (*fileConfig, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("error accessing config file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory, not a file", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var fc fileConfig
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if err := toml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("error parsing TOML file: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("error parsing YAML file: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("error parsing JSON file: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}
	return &fc, nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func (c *Config) applyFile(fc *fileConfig) error {
	setString(&c.Port, fc.Port)
	setString(&c.DefaultUserID, fc.DefaultUserID)
	setInt(&c.RateLimitPerMinute, fc.RateLimitPerMinute)
	if fc.MetricsEnabled != nil {
		c.MetricsEnabled = *fc.MetricsEnabled
	}

	setString(&c.LogLevel, strings.ToLower(fc.Log.Level))
	setString(&c.LogFormat, strings.ToLower(fc.Log.Format))

	setString(&c.DataBackend, fc.Data.Backend)
	setString(&c.DataDirectory, fc.Data.Directory)
	setString(&c.SQLiteDBPath, fc.Data.SQLitePath)
	setString(&c.PostgresDSN, fc.Data.PostgresDSN)

	setString(&c.SupabaseURL, fc.Supabase.URL)
	setString(&c.SupabaseAPIKey, fc.Supabase.APIKey)

	setString(&c.PreferencesBackend, fc.Preferences.Backend)
	setString(&c.RedisURL, fc.Preferences.RedisURL)

	setString(&c.AMQPURL, fc.AMQP.URL)
	setString(&c.AMQPExchange, fc.AMQP.Exchange)
	setString(&c.AMQPReminderQueue, fc.AMQP.ReminderQueue)
	setString(&c.AMQPEventsQueue, fc.AMQP.EventsQueue)

	if fc.Reminders.LeadTime != "" {
		d, err := time.ParseDuration(fc.Reminders.LeadTime)
		if err != nil {
			return fmt.Errorf("invalid reminders.lead_time: %w", err)
		}
		c.ReminderLeadTime = d
	}
	setInt(&c.ReminderBatchSize, fc.Reminders.BatchSize)
	setString(&c.ReminderSchedule, fc.Reminders.Schedule)
	setInt(&c.RenewalWindowDays, fc.Reminders.WindowDays)

	setString(&c.PushProvider, fc.Push.Provider)
	setString(&c.ExpoPushURL, fc.Push.ExpoURL)
	setString(&c.ExpoAccessToken, fc.Push.AccessToken)

	setString(&c.GoogleSpreadsheetID, fc.Sheets.SpreadsheetID)
	setString(&c.GoogleSheetTabPrefix, fc.Sheets.TabPrefix)
	setString(&c.GoogleServiceAccountFile, fc.Sheets.ServiceAccountFile)
	if len(fc.Sheets.SyncUsers) > 0 {
		c.SheetsSyncUsers = fc.Sheets.SyncUsers
	}
	return nil
}
