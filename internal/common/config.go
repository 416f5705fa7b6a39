// Package common provides shared utilities for Pulse
package common

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/bobmcallan/pulse/internal/models"
)

// Config holds all configuration for Pulse
type Config struct {
	Environment string         `toml:"environment"`
	Server      ServerConfig   `toml:"server"`
	Storage     StorageConfig  `toml:"storage"`
	Clients     ClientsConfig  `toml:"clients"`
	Analysis    AnalysisConfig `toml:"analysis"`
	Schedule    ScheduleConfig `toml:"schedule"`
	Logging     LoggingConfig  `toml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
	// AdminTokenHash is a bcrypt hash guarding POST /api/generate. Empty disables the guard.
	AdminTokenHash string `toml:"admin_token_hash"`
}

// StorageConfig holds report collection configuration.
type StorageConfig struct {
	Backend    string `toml:"backend"` // "file" or "surrealdb"
	Path       string `toml:"path"`
	MaxReports int    `toml:"max_reports"`
	Versions   int    `toml:"versions"` // backups of reports.json kept by the file backend
	Address    string `toml:"address"`
	Namespace  string `toml:"namespace"`
	Database   string `toml:"database"`
	Username   string `toml:"username"`
	Password   string `toml:"password"`
}

// ClientsConfig holds API client configurations
type ClientsConfig struct {
	Gemini GeminiConfig `toml:"gemini"`
	Market MarketConfig `toml:"market"`
}

// GeminiConfig holds Gemini API configuration
type GeminiConfig struct {
	APIKey  string `toml:"api_key"`
	Model   string `toml:"model"`
	Timeout string `toml:"timeout"`
}

// GetTimeout parses and returns the per-call timeout
func (c *GeminiConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 5 * time.Minute
	}
	return d
}

// MarketConfig holds market data provider configuration
type MarketConfig struct {
	Provider  string `toml:"provider"` // "yahoo" or "eodhd"
	BaseURL   string `toml:"base_url"`
	APIKey    string `toml:"api_key"`
	RateLimit int    `toml:"rate_limit"`
	Timeout   string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *MarketConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 15 * time.Second
	}
	return d
}

// AnalysisConfig tunes the discover-and-analyze pipeline.
type AnalysisConfig struct {
	Mode                 string `toml:"mode"` // "single" or "two_pass"
	MaxAttempts          int    `toml:"max_attempts"`
	QuotaBackoff         string `toml:"quota_backoff"`
	TransientBackoff     string `toml:"transient_backoff"`
	ExcludeRecent        int    `toml:"exclude_recent"`
	ExcludeWindow        string `toml:"exclude_window"`
	AppendSourcesSection bool   `toml:"append_sources_section"`
	Language             string `toml:"language"`
}

// GetQuotaBackoff returns the linear backoff base for quota errors.
func (c *AnalysisConfig) GetQuotaBackoff() time.Duration {
	return parseDurationOr(c.QuotaBackoff, 10*time.Second)
}

// GetTransientBackoff returns the linear backoff base for other transient errors.
func (c *AnalysisConfig) GetTransientBackoff() time.Duration {
	return parseDurationOr(c.TransientBackoff, 5*time.Second)
}

// GetExcludeWindow returns how far back reports count towards the exclusion list.
func (c *AnalysisConfig) GetExcludeWindow() time.Duration {
	return parseDurationOr(c.ExcludeWindow, 7*24*time.Hour)
}

// ScheduleConfig holds the automatic publication schedule.
type ScheduleConfig struct {
	Enabled      bool   `toml:"enabled"`
	Cron         string `toml:"cron"`
	Timezone     string `toml:"timezone"`
	WeekdaysOnly bool   `toml:"weekdays_only"`
	KROpenHour   int    `toml:"kr_open_hour"`
	KRCloseHour  int    `toml:"kr_close_hour"`
}

// Location resolves the schedule timezone, falling back to a fixed KST offset.
func (c *ScheduleConfig) Location() *time.Location {
	if c.Timezone != "" {
		if loc, err := time.LoadLocation(c.Timezone); err == nil {
			return loc
		}
	}
	return time.FixedZone("KST", 9*60*60)
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level    string   `toml:"level"`
	Outputs  []string `toml:"outputs"`
	FilePath string   `toml:"file_path"`
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Storage: StorageConfig{
			Backend:    "file",
			Path:       "data",
			MaxReports: 500,
			Versions:   1,
			Namespace:  "pulse",
			Database:   "pulse",
		},
		Clients: ClientsConfig{
			Gemini: GeminiConfig{
				Model:   "gemini-3-flash-preview",
				Timeout: "5m",
			},
			Market: MarketConfig{
				Provider:  "yahoo",
				RateLimit: 5,
				Timeout:   "15s",
			},
		},
		Analysis: AnalysisConfig{
			Mode:                 "single",
			MaxAttempts:          3,
			QuotaBackoff:         "10s",
			TransientBackoff:     "5s",
			ExcludeRecent:        10,
			ExcludeWindow:        "168h",
			AppendSourcesSection: true,
			Language:             "Korean",
		},
		Schedule: ScheduleConfig{
			Enabled:      true,
			Cron:         "0 */3 * * *",
			Timezone:     "Asia/Seoul",
			WeekdaysOnly: true,
			KROpenHour:   9,
			KRCloseHour:  16,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Outputs:  []string{"console"},
			FilePath: "./logs/pulse.log",
		},
	}
}

// LoadConfig loads configuration from files with environment overrides
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// Later files override earlier ones
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)
	normalize(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("PULSE_ENV"); env != "" {
		config.Environment = env
	}

	if host := os.Getenv("PULSE_HOST"); host != "" {
		config.Server.Host = host
	}

	if port := os.Getenv("PULSE_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if level := os.Getenv("PULSE_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if path := os.Getenv("PULSE_DATA_PATH"); path != "" {
		config.Storage.Path = path
	}

	if model := os.Getenv("PULSE_GEMINI_MODEL"); model != "" {
		config.Clients.Gemini.Model = model
	}

	if provider := os.Getenv("PULSE_MARKET_PROVIDER"); provider != "" {
		config.Clients.Market.Provider = strings.ToLower(provider)
	}

	if mode := os.Getenv("PULSE_ANALYSIS_MODE"); mode != "" {
		config.Analysis.Mode = strings.ToLower(mode)
	}

	if v := os.Getenv("PULSE_STORAGE_ADDRESS"); v != "" {
		config.Storage.Address = v
		config.Storage.Backend = "surrealdb"
	}
}

// normalize clamps values that would otherwise break the pipeline.
func normalize(config *Config) {
	if config.Storage.MaxReports <= 0 {
		config.Storage.MaxReports = 500
	}
	if config.Analysis.MaxAttempts <= 0 {
		config.Analysis.MaxAttempts = 1
	}
	switch config.Analysis.Mode {
	case "single", "two_pass":
	default:
		config.Analysis.Mode = "single"
	}
	if config.Schedule.KRCloseHour <= config.Schedule.KROpenHour {
		config.Schedule.KROpenHour, config.Schedule.KRCloseHour = 9, 16
	}
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// ResolveAPIKey resolves an API key from environment or the config fallback.
func ResolveAPIKey(name string, fallback string) (string, error) {
	keyToEnvMapping := map[string][]string{
		"gemini_api_key": {"GEMINI_API_KEY", "PULSE_GEMINI_API_KEY", "GOOGLE_API_KEY", "API_KEY"},
		"market_api_key": {"EODHD_API_KEY", "PULSE_MARKET_API_KEY"},
	}

	if envVarNames, ok := keyToEnvMapping[name]; ok {
		for _, envVarName := range envVarNames {
			if envValue := os.Getenv(envVarName); envValue != "" {
				return envValue, nil
			}
		}
	}

	if fallback != "" {
		return fallback, nil
	}

	return "", fmt.Errorf("%w: '%s' not found in environment or config", models.ErrMissingCredential, name)
}

// CredentialProvider returns the credential to use for the next call.
type CredentialProvider func(ctx context.Context) (string, error)

// EnvCredentialProvider re-resolves the named key on every call so a rotated
// environment value is picked up without a restart.
func EnvCredentialProvider(name, fallback string) CredentialProvider {
	return func(ctx context.Context) (string, error) {
		return ResolveAPIKey(name, fallback)
	}
}

// ResolvePath makes a relative path absolute against baseDir.
func ResolvePath(baseDir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}
