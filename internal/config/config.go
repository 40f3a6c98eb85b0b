package config

import (
	"fmt"
	"net"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/pixelpruner/pruneriq/pkg/validation"
)

type Config struct {
	Host               string
	Port               string
	RequestTimeout     time.Duration
	ImageFetchTimeout  time.Duration
	AnalysisTimeout    time.Duration
	MaxRequestBodySize int64

	// Quality thresholds after env and THRESHOLDS_FILE are applied
	Thresholds validation.Thresholds
	// BaseThresholds are the env/default values the file is layered on
	BaseThresholds validation.Thresholds
	ThresholdsFile string

	// AllowedImageHosts restricts /analyze URLs; empty allows any host
	AllowedImageHosts []string

	ScanWorkers int
	// SafeMode refuses every delete request
	SafeMode bool

	AzureAccount string
	AzureKey     string
}

func (c *Config) ServerAddress() string {
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

// AzureEnabled reports whether az:// folders can be served
func (c *Config) AzureEnabled() bool {
	return c.AzureAccount != "" && c.AzureKey != ""
}

// LoadFromEnv reads the server configuration and validates all of it
func LoadFromEnv() (*Config, error) {
	cfg, err := loadEnv()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadScannerFromEnv reads the same environment for the command-line
// scanner, which ignores the HTTP server settings.
func LoadScannerFromEnv() (*Config, error) {
	cfg, err := loadEnv()
	if err != nil {
		return nil, err
	}
	if err := cfg.ValidateScanner(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadEnv() (*Config, error) {
	defaults := validation.DefaultThresholds()

	cfg := &Config{
		Host:               getEnvOrDefault("HOST", "0.0.0.0"),
		Port:               getEnvOrDefault("PORT", "8080"),
		RequestTimeout:     parseDurationOrDefault("REQUEST_TIMEOUT", 5*time.Minute),
		ImageFetchTimeout:  parseDurationOrDefault("IMAGE_FETCH_TIMEOUT", 15*time.Second),
		AnalysisTimeout:    parseDurationOrDefault("ANALYSIS_TIMEOUT", 20*time.Second),
		MaxRequestBodySize: parseIntOrDefault("MAX_REQUEST_BODY_SIZE", 1<<20), // 1MB of JSON
		BaseThresholds: validation.Thresholds{
			Contrast: parseFloatOrDefault("CONTRAST_THRESHOLD", defaults.Contrast),
			Clarity:  parseFloatOrDefault("CLARITY_THRESHOLD", defaults.Clarity),
			Noise:    parseFloatOrDefault("NOISE_THRESHOLD", defaults.Noise),
		},
		ThresholdsFile:    strings.TrimSpace(os.Getenv("THRESHOLDS_FILE")),
		AllowedImageHosts: parseList("ALLOWED_IMAGE_HOSTS"),
		ScanWorkers:       int(parseIntOrDefault("SCAN_WORKERS", int64(runtime.NumCPU()))),
		SafeMode:          parseBoolOrDefault("SAFE_MODE", true),
		AzureAccount:      strings.TrimSpace(os.Getenv("AZURE_STORAGE_ACCOUNT")),
		AzureKey:          strings.TrimSpace(os.Getenv("AZURE_STORAGE_KEY")),
	}
	cfg.Thresholds = cfg.BaseThresholds

	if cfg.ThresholdsFile != "" {
		thresholds, err := LoadThresholds(cfg.ThresholdsFile, cfg.BaseThresholds)
		if err != nil {
			return nil, err
		}
		cfg.Thresholds = thresholds
	}
	return cfg, nil
}

// Validate checks ranges that parsing alone cannot enforce
func (c *Config) Validate() error {
	p, err := strconv.Atoi(strings.TrimSpace(c.Port))
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("invalid PORT: %q", c.Port)
	}
	if c.MaxRequestBodySize <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0 (got %d)", c.MaxRequestBodySize)
	}
	if c.RequestTimeout <= 0 || c.ImageFetchTimeout <= 0 || c.AnalysisTimeout <= 0 {
		return fmt.Errorf("timeouts must be > 0 (got request=%s, fetch=%s, analysis=%s)",
			c.RequestTimeout, c.ImageFetchTimeout, c.AnalysisTimeout)
	}
	if (c.AzureAccount == "") != (c.AzureKey == "") {
		return fmt.Errorf("AZURE_STORAGE_ACCOUNT and AZURE_STORAGE_KEY must be set together")
	}
	return c.ValidateScanner()
}

// ValidateScanner checks only what a folder scan uses
func (c *Config) ValidateScanner() error {
	if c.ScanWorkers < 1 {
		return fmt.Errorf("SCAN_WORKERS must be >= 1 (got %d)", c.ScanWorkers)
	}
	if err := c.Thresholds.Validate(); err != nil {
		return fmt.Errorf("invalid thresholds: %w", err)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && duration > 0 {
			return duration
		}
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// Unparsable values keep the default, like the other parsers. Range checks
// happen in Validate.
func parseFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func parseBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}

// parseList splits a comma-separated variable, dropping empty items
func parseList(key string) []string {
	var items []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
