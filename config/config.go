package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"HealthIntake/repo"

	"gopkg.in/yaml.v3"
)

// Config holds runtime configuration for the intake server
type Config struct {
	Addr string `json:"addr" yaml:"addr"`
	// StaticDir is the built front-end; empty means the first existing of build/ and dist/
	StaticDir       string        `json:"static_dir" yaml:"static_dir"`
	ContentDir      string        `json:"content_dir" yaml:"content_dir"`
	MaxBodyBytes    int64         `json:"max_body_bytes" yaml:"max_body_bytes"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`

	LogFile   string `json:"log_file" yaml:"log_file"`
	LogLevel  string `json:"log_level" yaml:"log_level"`
	LogFormat string `json:"log_format" yaml:"log_format"` // "json" or "console"

	// Storage
	StorageDriver       string `json:"storage_driver" yaml:"storage_driver"`
	SQLitePath          string `json:"sqlite_path" yaml:"sqlite_path"`
	FirebaseCredentials string `json:"firebase_credentials" yaml:"firebase_credentials"`
	FirebaseDatabaseURL string `json:"firebase_database_url" yaml:"firebase_database_url"`

	// Telegram
	TelegramToken   string        `json:"telegram_token" yaml:"telegram_token"`
	TelegramChatID  string        `json:"telegram_chat_id" yaml:"telegram_chat_id"`
	TelegramTimeout time.Duration `json:"telegram_timeout" yaml:"telegram_timeout"`
	StaffBot        bool          `json:"staff_bot" yaml:"staff_bot"`
	// StaffChatIDs may talk to the staff bot; empty means only TelegramChatID
	StaffChatIDs []int64 `json:"staff_chat_ids" yaml:"staff_chat_ids"`

	// Admin
	AdminPassword   string        `json:"admin_password" yaml:"admin_password"`
	AdminSecret     string        `json:"admin_secret" yaml:"admin_secret"`
	AdminSessionTTL time.Duration `json:"admin_session_ttl" yaml:"admin_session_ttl"`

	// Retention removes questionnaires older than this; zero keeps them forever
	Retention         time.Duration `json:"retention" yaml:"retention"`
	RetentionInterval time.Duration `json:"retention_interval" yaml:"retention_interval"`

	MetricsEnabled bool `json:"metrics_enabled" yaml:"metrics_enabled"`
}

// DefaultConfig returns a sane default configuration
func DefaultConfig() *Config {
	return &Config{
		Addr:            ":8080",
		ContentDir:      "server",
		MaxBodyBytes:    2 << 20,
		ShutdownTimeout: 10 * time.Second,

		LogLevel:  "info",
		LogFormat: "json",

		StorageDriver: repo.DriverMemory,
		SQLitePath:    "intake.db",

		TelegramTimeout: 30 * time.Second,

		AdminSessionTTL: time.Hour,

		RetentionInterval: time.Hour,

		MetricsEnabled: true,
	}
}

// TelegramConfigured reports whether both bot token and chat id are present
func (c *Config) TelegramConfigured() bool {
	return c.TelegramToken != "" && c.TelegramChatID != ""
}

// Validate returns an error for settings the server cannot run with and a
// list of non-fatal warnings for incomplete setups.
func (c *Config) Validate() ([]string, error) {
	var errs []error
	switch c.StorageDriver {
	case repo.DriverMemory:
	case repo.DriverSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("sqlite storage needs sqlite_path"))
		}
	case repo.DriverFirebase:
		if c.FirebaseDatabaseURL == "" {
			errs = append(errs, errors.New("firebase storage needs firebase_database_url"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.StorageDriver))
	}
	if c.Addr == "" {
		errs = append(errs, errors.New("addr must not be empty"))
	}
	if c.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("max_body_bytes must be positive"))
	}
	if c.Retention < 0 {
		errs = append(errs, errors.New("retention must not be negative"))
	}
	if c.Retention > 0 && c.RetentionInterval <= 0 {
		errs = append(errs, errors.New("retention_interval must be positive when retention is set"))
	}
	if f := strings.ToLower(c.LogFormat); f != "" && f != "json" && f != "console" {
		errs = append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}

	var warnings []string
	checks := []struct {
		cond bool
		msg  string
	}{
		{c.TelegramToken != "" && c.TelegramChatID == "", "telegram token provided but chat id is missing"},
		{c.TelegramChatID != "" && c.TelegramToken == "", "telegram chat id provided but token is missing"},
		{!c.TelegramConfigured(), "telegram not configured, questionnaires will only be logged"},
		{c.StaffBot && c.TelegramToken == "", "staff bot enabled but telegram token is missing"},
		{c.AdminPassword == "", "admin password not set, content editing is disabled"},
		{c.AdminPassword != "" && c.AdminSecret == "", "admin secret not set, sessions will not survive a restart"},
		{c.StorageDriver == repo.DriverMemory, "memory storage selected, questionnaires are lost on restart"},
	}
	for _, ch := range checks {
		if ch.cond {
			warnings = append(warnings, ch.msg)
		}
	}
	return warnings, errors.Join(errs...)
}

// LoadConfigFromFile loads config from a YAML/JSON file on top of the defaults
func LoadConfigFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}
