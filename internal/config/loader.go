package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"genctl/internal/common/fsutil"
)

// Defaults applied by WithDefaults.
const (
	DefaultAddr              = ":8089"
	DefaultBaseURL           = "http://localhost:8000"
	DefaultRequestTimeoutSec = 300
	DefaultLoadTimeoutSec    = 600
	DefaultQueueCapacity     = 8
	DefaultScheduling        = "global"
	DefaultLogLevel          = "info"
	DefaultBreakerFailures   = 5
	DefaultBreakerOpenSec    = 30
	DefaultJobRetentionSec   = 900
)

// Config holds runtime parameters for the controller.
// Zero values mean "unspecified" and are replaced by WithDefaults.
type Config struct {
	Addr              string   `json:"addr" yaml:"addr" toml:"addr"`
	BaseURL           string   `json:"base_url" yaml:"base_url" toml:"base_url"`
	RequestTimeoutSec int      `json:"request_timeout_sec" yaml:"request_timeout_sec" toml:"request_timeout_sec"`
	LoadTimeoutSec    int      `json:"load_timeout_sec" yaml:"load_timeout_sec" toml:"load_timeout_sec"`
	QueueCapacity     int      `json:"queue_capacity" yaml:"queue_capacity" toml:"queue_capacity"`
	Scheduling        string   `json:"scheduling" yaml:"scheduling" toml:"scheduling"`
	Models            []string `json:"models" yaml:"models" toml:"models"`
	// ClearAllSweep enables the remote POST /models/clear-all after ClearAll. Nil means enabled.
	ClearAllSweep   *bool    `json:"clear_all_sweep" yaml:"clear_all_sweep" toml:"clear_all_sweep"`
	LogLevel        string   `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogJSON         bool     `json:"log_json" yaml:"log_json" toml:"log_json"`
	CORSOrigins     []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
	BreakerFailures int      `json:"breaker_failures" yaml:"breaker_failures" toml:"breaker_failures"`
	BreakerOpenSec  int      `json:"breaker_open_sec" yaml:"breaker_open_sec" toml:"breaker_open_sec"`
	// JobRetentionSec is how long a resolved async job stays queryable.
	JobRetentionSec int `json:"job_retention_sec" yaml:"job_retention_sec" toml:"job_retention_sec"`
}

// SearchPaths are tried in order when no config file is named.
var SearchPaths = []string{"genctl.yaml", "genctl.toml", "~/.config/genctl/config.yaml"}

// Discover returns the first existing file from SearchPaths, or "".
func Discover() string { return fsutil.FirstExisting(SearchPaths...) }

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	path, err := fsutil.ExpandHome(path)
	if err != nil {
		return cfg, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

// WithDefaults returns a copy of c with unspecified fields filled in.
func (c Config) WithDefaults() Config {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.RequestTimeoutSec <= 0 {
		c.RequestTimeoutSec = DefaultRequestTimeoutSec
	}
	if c.LoadTimeoutSec <= 0 {
		c.LoadTimeoutSec = DefaultLoadTimeoutSec
	}
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = DefaultQueueCapacity
	}
	if c.Scheduling == "" {
		c.Scheduling = DefaultScheduling
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.BreakerFailures <= 0 {
		c.BreakerFailures = DefaultBreakerFailures
	}
	if c.BreakerOpenSec <= 0 {
		c.BreakerOpenSec = DefaultBreakerOpenSec
	}
	if c.JobRetentionSec <= 0 {
		c.JobRetentionSec = DefaultJobRetentionSec
	}
	return c
}

// Validate rejects values WithDefaults cannot repair.
func (c Config) Validate() error {
	switch c.Scheduling {
	case "", "global", "per-model":
	default:
		return fmt.Errorf("invalid scheduling %q (want global or per-model)", c.Scheduling)
	}
	if c.BaseURL != "" && !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return fmt.Errorf("invalid base_url %q: must start with http:// or https://", c.BaseURL)
	}
	return nil
}

// Sweep reports whether the remote clear-all sweep is enabled.
func (c Config) Sweep() bool { return c.ClearAllSweep == nil || *c.ClearAllSweep }

// JobRetention is how long a resolved job stays queryable.
func (c Config) JobRetention() time.Duration {
	return time.Duration(c.JobRetentionSec) * time.Second
}

// RequestTimeout is the generation call timeout.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSec) * time.Second
}

// LoadTimeout is the lifecycle call timeout.
func (c Config) LoadTimeout() time.Duration {
	return time.Duration(c.LoadTimeoutSec) * time.Second
}

// BreakerOpen is how long the transport breaker stays open.
func (c Config) BreakerOpen() time.Duration {
	return time.Duration(c.BreakerOpenSec) * time.Second
}
