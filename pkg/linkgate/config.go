package linkgate

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all service configuration.
type Config struct {
	// Address the filter API listens on
	Listen string `json:"listen" yaml:"listen"`

	// User agent, used for robots.txt group selection and outbound fetches
	UserAgent string `json:"user_agent" yaml:"user_agent"`

	// Scope rules applied to every filter call in a crawl
	Scope ScopeConfig `json:"scope" yaml:"scope"`

	// Crawl loop settings
	Crawl CrawlConfig `json:"crawl" yaml:"crawl"`

	// Frontier persistence
	Queue QueueConfig `json:"queue" yaml:"queue"`

	// Outbound HTTP settings
	Fetch FetchConfig `json:"fetch" yaml:"fetch"`

	// Verbose logging
	Verbose bool `json:"verbose" yaml:"verbose"`

	// Debug mode
	Debug bool `json:"debug" yaml:"debug"`
}

// ScopeConfig mirrors the per-call crawl scope of a filter request.
type ScopeConfig struct {
	MaxDepth              int      `json:"max_depth" yaml:"max_depth"`
	Limit                 int      `json:"limit" yaml:"limit"`
	Excludes              []string `json:"excludes" yaml:"excludes"`
	Includes              []string `json:"includes" yaml:"includes"`
	RegexOnFullURL        bool     `json:"regex_on_full_url" yaml:"regex_on_full_url"`
	AllowBackwardCrawling bool     `json:"allow_backward_crawling" yaml:"allow_backward_crawling"`
	IgnoreRobotsTxt       bool     `json:"ignore_robots_txt" yaml:"ignore_robots_txt"`
}

// CrawlConfig holds crawl loop settings.
type CrawlConfig struct {
	Workers           int     `json:"workers" yaml:"workers"`
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second"`
	Burst             int     `json:"burst" yaml:"burst"`
	HostRPS           float64 `json:"host_rps" yaml:"host_rps"`
	HostBurst         int     `json:"host_burst" yaml:"host_burst"`
	EstimatedPages    int     `json:"estimated_pages" yaml:"estimated_pages"`
}

// QueueConfig holds frontier persistence settings. An empty path keeps the
// frontier in memory only.
type QueueConfig struct {
	Path      string `json:"path" yaml:"path"`
	MaxMemory int    `json:"max_memory" yaml:"max_memory"`
}

// FetchConfig holds outbound HTTP settings.
type FetchConfig struct {
	Timeout       time.Duration `json:"timeout" yaml:"timeout"`
	SkipTLSVerify bool          `json:"skip_tls_verify" yaml:"skip_tls_verify"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Listen:    ":8720",
		UserAgent: "linkgate/1.0",
		Scope: ScopeConfig{
			MaxDepth: 10,
		},
		Crawl: CrawlConfig{
			Workers:           16,
			RequestsPerSecond: 50,
			Burst:             10,
			HostRPS:           4,
			HostBurst:         2,
			EstimatedPages:    100000,
		},
		Queue: QueueConfig{
			MaxMemory: 10000,
		},
		Fetch: FetchConfig{
			Timeout: 10 * time.Second,
		},
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

	return os.WriteFile(path, data, 0644)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address is required")
	}

	if c.Crawl.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}

	if c.Scope.MaxDepth < 0 {
		return fmt.Errorf("max depth must not be negative")
	}

	if c.Scope.Limit < 0 {
		return fmt.Errorf("limit must not be negative")
	}

	if c.Crawl.RequestsPerSecond <= 0 {
		return fmt.Errorf("rate limit must be positive")
	}

	for _, pattern := range append(append([]string{}, c.Scope.Excludes...), c.Scope.Includes...) {
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("invalid scope pattern %q: %w", pattern, err)
		}
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
