package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads and parses configuration from a file.
func Load(configPath string) (*Config, error) {
	// Resolve to absolute path for consistent relative path resolution
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or set $CURATOR_CONFIG", absPath)
	}

	if info.IsDir() {
		// Directory provided - look for config.yaml inside
		absPath = filepath.Join(absPath, "config.yaml")
		if _, err := os.Stat(absPath); err != nil {
			return nil, fmt.Errorf("directory provided but config.yaml not found: %s", absPath)
		}
	}

	cfg, err := loadConfigFile(absPath)
	if err != nil {
		return nil, err
	}

	cfg = applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Discover finds the config file by checking standard locations.
// Priority order: $CURATOR_CONFIG, ~/.config/curator, /etc/curator, ./config.yaml
func Discover() (string, error) {
	if p := os.Getenv("CURATOR_CONFIG"); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
		return "", fmt.Errorf("$CURATOR_CONFIG points to missing path: %s", p)
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		userConfigDir := filepath.Join(homeDir, ".config", "curator")
		if _, err := os.Stat(filepath.Join(userConfigDir, "config.yaml")); err == nil {
			return filepath.Join(userConfigDir, "config.yaml"), nil
		}
	}

	systemConfig := "/etc/curator/config.yaml"
	if _, err := os.Stat(systemConfig); err == nil {
		return systemConfig, nil
	}

	legacyConfigPath := "./config.yaml"
	if _, err := os.Stat(legacyConfigPath); err == nil {
		return legacyConfigPath, nil
	}

	return "", fmt.Errorf("no config found (checked: $CURATOR_CONFIG, ~/.config/curator, /etc/curator, ./config.yaml)")
}

// loadConfigFile loads and parses a single config file.
func loadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	// Apply environment variable interpolation
	interpolated := interpolateEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(interpolated), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	return &cfg, nil
}

// interpolateEnv replaces ${VAR} placeholders with environment values.
// Unset variables are left as-is so validation can surface them.
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return match
	})
}

func applyDefaults(cfg *Config) *Config {
	defaults := Defaults()

	if cfg.Service.Name == "" {
		cfg.Service.Name = defaults.Service.Name
	}
	if cfg.Service.LogLevel == "" {
		cfg.Service.LogLevel = defaults.Service.LogLevel
	}
	if cfg.Service.Mode == "" {
		cfg.Service.Mode = defaults.Service.Mode
	}
	if cfg.Service.CycleInterval == 0 {
		cfg.Service.CycleInterval = defaults.Service.CycleInterval
	}
	if cfg.Service.EntryDelay == 0 {
		cfg.Service.EntryDelay = defaults.Service.EntryDelay
	}
	if cfg.Service.DailyAt == "" {
		cfg.Service.DailyAt = defaults.Service.DailyAt
	}

	if cfg.Watch.Mode == "" {
		cfg.Watch.Mode = defaults.Watch.Mode
	}
	if cfg.Watch.Exclude == nil {
		cfg.Watch.Exclude = defaults.Watch.Exclude
	}

	if cfg.Ledger.Path == "" {
		cfg.Ledger.Path = defaults.Ledger.Path
	}
	if cfg.Ledger.LockPath == "" {
		cfg.Ledger.LockPath = cfg.Ledger.Path + ".lock"
	}

	if cfg.History.Path == "" {
		cfg.History.Path = defaults.History.Path
	}
	if cfg.History.Retention == 0 {
		cfg.History.Retention = defaults.History.Retention
	}

	if cfg.Catalog.Collection == "" {
		cfg.Catalog.Collection = defaults.Catalog.Collection
	}

	if !cfg.API.Enabled && cfg.API.Listen == "" {
		cfg.API = defaults.API
	}
	if cfg.API.Listen == "" {
		cfg.API.Listen = defaults.API.Listen
	}

	return cfg
}

// validate performs basic validation on the configuration.
func validate(cfg *Config) error {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[strings.ToLower(cfg.Service.LogLevel)] {
		return fmt.Errorf("service.log_level must be one of: debug, info, warn, error (got %q)", cfg.Service.LogLevel)
	}

	if cfg.Service.Mode != ModeContinuous && cfg.Service.Mode != ModeDaily {
		return fmt.Errorf("service.mode must be %q or %q (got %q)", ModeContinuous, ModeDaily, cfg.Service.Mode)
	}
	if cfg.Service.CycleInterval <= 0 {
		return fmt.Errorf("service.cycle_interval must be positive")
	}
	if cfg.Service.EntryDelay < 0 {
		return fmt.Errorf("service.entry_delay must not be negative")
	}
	if cfg.Service.Mode == ModeDaily {
		if _, _, err := ParseTimeOfDay(cfg.Service.DailyAt); err != nil {
			return fmt.Errorf("service.daily_at: %w", err)
		}
	}

	if cfg.Watch.Directory == "" {
		return fmt.Errorf("watch.directory is required")
	}
	if envVarPattern.MatchString(cfg.Watch.Directory) {
		return fmt.Errorf("watch.directory: unresolved environment variable in %q", cfg.Watch.Directory)
	}
	if cfg.Watch.Mode != WatchFiles && cfg.Watch.Mode != WatchDirectories {
		return fmt.Errorf("watch.mode must be %q or %q (got %q)", WatchFiles, WatchDirectories, cfg.Watch.Mode)
	}
	if cfg.Watch.Prefix != "" && cfg.Watch.Mode != WatchDirectories {
		return fmt.Errorf("watch.prefix requires watch.mode %q", WatchDirectories)
	}

	if cfg.Ledger.Path == "" {
		return fmt.Errorf("ledger.path is required")
	}

	if cfg.Catalog.Repository == "" {
		return fmt.Errorf("catalog.repository is required")
	}
	if envVarPattern.MatchString(cfg.Catalog.Password) {
		matches := envVarPattern.FindStringSubmatch(cfg.Catalog.Password)
		return fmt.Errorf("catalog.password: environment variable ${%s} is not set", matches[1])
	}

	if cfg.API.Enabled {
		if envVarPattern.MatchString(cfg.API.Auth.APIKey) {
			matches := envVarPattern.FindStringSubmatch(cfg.API.Auth.APIKey)
			return fmt.Errorf("api.auth.api_key: environment variable ${%s} is not set", matches[1])
		}
		if cfg.API.Auth.APIKey == "" && len(cfg.API.Auth.Tokens) == 0 {
			return fmt.Errorf("api.auth.api_key or api.auth.tokens required when api.enabled is true")
		}
		for i, t := range cfg.API.Auth.Tokens {
			if t.Token == "" {
				return fmt.Errorf("api.auth.tokens[%d].token is empty", i)
			}
		}
	}

	return nil
}

// ParseTimeOfDay parses an "HH:MM" wall-clock string.
func ParseTimeOfDay(s string) (hour, minute int, err error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time of day %q (expected HH:MM)", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hour, minute, nil
}

// NextDailyRun returns the next wall-clock occurrence of hour:minute after now.
func NextDailyRun(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
