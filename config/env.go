package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvOverrides reads configuration values from environment variables and
// overrides fields in the provided Config. Returns an error if parsing fails.
//
// Environment variables supported:
// - INTAKE_ADDR (string, e.g. ":8080"), or PORT (int)
// - INTAKE_STATIC_DIR, INTAKE_CONTENT_DIR (paths)
// - INTAKE_LOG_FILE, INTAKE_LOG_LEVEL, INTAKE_LOG_FORMAT
// - INTAKE_STORAGE_DRIVER ("memory", "sqlite", "firebase"), INTAKE_SQLITE_PATH
// - FIREBASE_SERVICE_ACCOUNT_KEY_PATH, FIREBASE_DATABASE_URL
// - VITE_TELEGRAM_BOT_TOKEN or TELEGRAM_BOT_TOKEN
// - VITE_TELEGRAM_CHAT_ID or TELEGRAM_CHAT_ID
// - INTAKE_TELEGRAM_TIMEOUT (duration)
// - INTAKE_STAFF_BOT (bool), INTAKE_STAFF_CHAT_IDS (comma separated ids)
// - ADMIN_PASSWORD, INTAKE_ADMIN_SECRET, INTAKE_ADMIN_SESSION_TTL (duration)
// - INTAKE_RETENTION, INTAKE_RETENTION_INTERVAL (durations)
// - INTAKE_METRICS_ENABLED (bool)
func ApplyEnvOverrides(cfg *Config) error {
	if err := applyServerEnv(cfg); err != nil {
		return err
	}
	applyStorageEnv(cfg)
	if err := applyTelegramEnv(cfg); err != nil {
		return err
	}
	if err := applyAdminEnv(cfg); err != nil {
		return err
	}
	if err := setDurationEnv("INTAKE_RETENTION", func(d time.Duration) { cfg.Retention = d }); err != nil {
		return err
	}
	if err := setDurationEnv("INTAKE_RETENTION_INTERVAL", func(d time.Duration) { cfg.RetentionInterval = d }); err != nil {
		return err
	}
	return setBoolEnv("INTAKE_METRICS_ENABLED", func(b bool) { cfg.MetricsEnabled = b })
}

func applyServerEnv(cfg *Config) error {
	if v := os.Getenv("PORT"); v != "" {
		if _, err := strconv.Atoi(v); err != nil {
			return fmt.Errorf("invalid PORT: %w", err)
		}
		cfg.Addr = ":" + v
	}
	setStringEnv("INTAKE_ADDR", &cfg.Addr)
	setStringEnv("INTAKE_STATIC_DIR", &cfg.StaticDir)
	setStringEnv("INTAKE_CONTENT_DIR", &cfg.ContentDir)
	setStringEnv("INTAKE_LOG_FILE", &cfg.LogFile)
	setStringEnv("INTAKE_LOG_LEVEL", &cfg.LogLevel)
	setStringEnv("INTAKE_LOG_FORMAT", &cfg.LogFormat)
	return nil
}

func applyStorageEnv(cfg *Config) {
	setStringEnv("INTAKE_STORAGE_DRIVER", &cfg.StorageDriver)
	setStringEnv("INTAKE_SQLITE_PATH", &cfg.SQLitePath)
	setStringEnv("FIREBASE_SERVICE_ACCOUNT_KEY_PATH", &cfg.FirebaseCredentials)
	setStringEnv("FIREBASE_DATABASE_URL", &cfg.FirebaseDatabaseURL)
}

func applyTelegramEnv(cfg *Config) error {
	if v := firstEnv("VITE_TELEGRAM_BOT_TOKEN", "TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.TelegramToken = v
	}
	if v := firstEnv("VITE_TELEGRAM_CHAT_ID", "TELEGRAM_CHAT_ID"); v != "" {
		cfg.TelegramChatID = v
	}
	if err := setDurationEnv("INTAKE_TELEGRAM_TIMEOUT", func(d time.Duration) { cfg.TelegramTimeout = d }); err != nil {
		return err
	}
	if err := setBoolEnv("INTAKE_STAFF_BOT", func(b bool) { cfg.StaffBot = b }); err != nil {
		return err
	}
	if v := os.Getenv("INTAKE_STAFF_CHAT_IDS"); v != "" {
		var ids []int64
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid INTAKE_STAFF_CHAT_IDS entry %q: %w", part, err)
			}
			ids = append(ids, id)
		}
		cfg.StaffChatIDs = ids
	}
	return nil
}

func applyAdminEnv(cfg *Config) error {
	setStringEnv("ADMIN_PASSWORD", &cfg.AdminPassword)
	setStringEnv("INTAKE_ADMIN_SECRET", &cfg.AdminSecret)
	return setDurationEnv("INTAKE_ADMIN_SESSION_TTL", func(d time.Duration) { cfg.AdminSessionTTL = d })
}

func firstEnv(names ...string) string {
	for _, n := range names {
		if v := os.Getenv(n); v != "" {
			return v
		}
	}
	return ""
}

func setStringEnv(env string, dst *string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

// setBoolEnv is a small helper to parse boolean environment variables
func setBoolEnv(env string, setter func(bool)) error {
	if v := os.Getenv(env); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", env, err)
		}
		setter(b)
	}
	return nil
}

func setDurationEnv(env string, setter func(time.Duration)) error {
	if v := os.Getenv(env); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", env, err)
		}
		setter(d)
	}
	return nil
}
