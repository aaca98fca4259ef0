package discovery

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/PentesterFlow/crmprobe/internal/ratelimit"
)

// Environment variables read by ApplyEnv.
const (
	EnvAPIURL                = "TWENTY_API_URL"
	EnvAPIKey                = "TWENTY_API_KEY"
	EnvMaxConcurrentRequests = "MAX_CONCURRENT_REQUESTS"
	EnvRequestTimeoutMs      = "REQUEST_TIMEOUT_MS"
	EnvTestIterations        = "TEST_ITERATIONS"
	EnvLogLevel              = "LOG_LEVEL"
)

// Config holds all discovery configuration.
type Config struct {
	// Base URL of the CRM, without the /rest or /graphql suffix
	APIBaseURL string `json:"api_base_url" yaml:"api_base_url"`

	// Bearer credential sent on every call
	APIKey string `json:"api_key" yaml:"api_key"`

	// Connection cap per host; two or more lets the protocol sweeps overlap
	MaxConcurrentRequests int `json:"max_concurrent_requests" yaml:"max_concurrent_requests"`

	// Sequential trials per operation and protocol
	TestIterations int `json:"test_iterations" yaml:"test_iterations"`

	// Per-request timeout
	RequestTimeout time.Duration `json:"request_timeout" yaml:"request_timeout"`

	// Record id used by single-record operations
	SampleRecordID string `json:"sample_record_id" yaml:"sample_record_id"`

	// Rate-limit probe settings
	RateLimit ratelimit.Config `json:"rate_limit" yaml:"rate_limit"`

	// Endpoints checked for cache headers; empty selects the defaults
	CacheEndpoints []string `json:"cache_endpoints" yaml:"cache_endpoints"`

	// Where the JSON report is written; empty selects a timestamped name
	OutputPath string `json:"output_path" yaml:"output_path"`

	// BoltDB history file; empty disables history
	HistoryPath string `json:"history_path" yaml:"history_path"`

	// debug, info, warn or error
	LogLevel string `json:"log_level" yaml:"log_level"`

	// Verbose logging
	Verbose bool `json:"verbose" yaml:"verbose"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		MaxConcurrentRequests: 10,
		TestIterations:        5,
		RequestTimeout:        10 * time.Second,
		RateLimit:             ratelimit.DefaultConfig(),
		HistoryPath:           "./reports/history.db",
		LogLevel:              "info",
	}
}

// LoadFromFile loads configuration from a file (JSON or YAML).
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()

	// Try YAML first, then JSON
	if err := yaml.Unmarshal(data, config); err != nil {
		config = DefaultConfig()
		if err := json.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	return config, nil
}

// SaveToFile saves configuration to a file.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".json") {
		data, err = json.MarshalIndent(c, "", "  ")
	} else {
		data, err = yaml.Marshal(c)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0600)
}

// ApplyEnv overlays environment variables onto c. The process environment
// wins over envFiles, and missing files are skipped. With no envFiles,
// ./.env is tried.
func (c *Config) ApplyEnv(envFiles ...string) error {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}

	existing := make([]string, 0, len(envFiles))
	for _, f := range envFiles {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}

	fileValues := map[string]string{}
	if len(existing) > 0 {
		var err error
		fileValues, err = godotenv.Read(existing...)
		if err != nil {
			return fmt.Errorf("failed to read env file: %w", err)
		}
	}

	// Empty values count as unset.
	lookup := func(key string) (string, bool) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v, true
		}
		v := strings.TrimSpace(fileValues[key])
		return v, v != ""
	}

	if v, ok := lookup(EnvAPIURL); ok {
		c.APIBaseURL = v
	}
	if v, ok := lookup(EnvAPIKey); ok {
		c.APIKey = v
	}
	if v, ok := lookup(EnvLogLevel); ok {
		c.LogLevel = v
	}

	ints := []struct {
		key string
		set func(int)
	}{
		{EnvMaxConcurrentRequests, func(n int) { c.MaxConcurrentRequests = n }},
		{EnvTestIterations, func(n int) { c.TestIterations = n }},
		{EnvRequestTimeoutMs, func(n int) { c.RequestTimeout = time.Duration(n) * time.Millisecond }},
	}
	for _, iv := range ints {
		v, ok := lookup(iv.key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", iv.key, v, err)
		}
		iv.set(n)
	}

	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("api base URL is required")
	}

	u, err := url.Parse(c.APIBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api base URL must be an http(s) URL: %q", c.APIBaseURL)
	}

	if c.APIKey == "" {
		return fmt.Errorf("api key is required")
	}

	if c.TestIterations < 0 {
		return fmt.Errorf("test iterations must not be negative")
	}

	if c.MaxConcurrentRequests < 1 {
		return fmt.Errorf("max concurrent requests must be at least 1")
	}

	if c.RequestTimeout < 0 {
		return fmt.Errorf("request timeout must not be negative")
	}

	return nil
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	data, _ := json.Marshal(c)
	clone := &Config{}
	json.Unmarshal(data, clone)
	return clone
}
