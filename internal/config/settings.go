package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/rgehrsitz/finsight/internal/logging"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Settings holds process configuration for the CLI and the service.
type Settings struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat is json or console.
	LogFormat string `koanf:"log_format"`

	// TablesFile points at a YAML tax tables file. Empty uses the built-in tables.
	TablesFile      string `koanf:"tables_file"`
	DefaultSchedule string `koanf:"default_schedule"`
	Currency        string `koanf:"currency"`

	// Store selects the document store backend.
	Store     string `koanf:"store"`
	RedisAddr string `koanf:"redis_addr"`

	// HTTPAddr configures the API listen address, e.g. ":8080".
	HTTPAddr string `koanf:"http_addr"`

	ReminderCron       string `koanf:"reminder_cron"`
	ReminderWindowDays int    `koanf:"reminder_window_days"`
	// ReminderUsers is a comma-separated list of user IDs the scheduler scans.
	ReminderUsers string `koanf:"reminder_users"`
}

// DefaultSettings returns the settings used before any file or env layer.
func DefaultSettings() *Settings {
	return &Settings{
		LogLevel:           "info",
		LogFormat:          "console",
		Currency:           "MWK",
		Store:              StoreMemory,
		RedisAddr:          "localhost:6379",
		HTTPAddr:           ":8080",
		ReminderCron:       "@daily",
		ReminderWindowDays: 3,
	}
}

// LoadSettings layers defaults, an optional YAML file and FINSIGHT_ env vars.
// Order of precedence (low -> high):
//  1. defaults
//  2. file at path, or FINSIGHT_CONFIG when path is empty
//  3. env (prefix FINSIGHT_)
func LoadSettings(path string) (*Settings, error) {
	k := koanf.New(".")

	if path == "" {
		path = os.Getenv("FINSIGHT_CONFIG")
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load settings file %s: %w", path, err)
		}
	}

	// FINSIGHT_REDIS_ADDR -> redis_addr
	envProvider := env.Provider("FINSIGHT_", ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), "finsight_")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load settings from environment: %w", err)
	}

	s := *DefaultSettings()
	if err := k.UnmarshalWithConf("", &s, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks enumerated and numeric settings.
func (s *Settings) Validate() error {
	switch s.Store {
	case StoreMemory:
	case StoreRedis:
		if s.RedisAddr == "" {
			return fmt.Errorf("%w: redis_addr must not be empty when store is redis", ErrInvalidSettings)
		}
	default:
		return fmt.Errorf("%w: unknown store %q", ErrInvalidSettings, s.Store)
	}
	switch s.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("%w: unknown log_format %q", ErrInvalidSettings, s.LogFormat)
	}
	if _, err := logging.ParseLevel(s.LogLevel); err != nil {
		return fmt.Errorf("%w: log_level: %v", ErrInvalidSettings, err)
	}
	if s.ReminderWindowDays < 0 {
		return fmt.Errorf("%w: reminder_window_days must not be negative", ErrInvalidSettings)
	}
	if s.HTTPAddr == "" {
		return fmt.Errorf("%w: http_addr must not be empty", ErrInvalidSettings)
	}
	return nil
}

// Users returns the reminder user IDs.
func (s *Settings) Users() []string {
	var users []string
	for _, u := range strings.Split(s.ReminderUsers, ",") {
		if u = strings.TrimSpace(u); u != "" {
			users = append(users, u)
		}
	}
	return users
}
