package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nicktill/energyview/pkg/results"
)

// Environment variables read by Load.
const (
	EnvConfig        = "ENERGYVIEW_CONFIG"
	EnvPort          = "ENERGYVIEW_PORT"
	EnvCacheDir      = "ENERGYVIEW_CACHE_DIR"
	EnvCacheTTL      = "ENERGYVIEW_CACHE_TTL"
	EnvCacheDisabled = "ENERGYVIEW_CACHE_DISABLED"
	EnvPGDSN         = "ENERGYVIEW_PG_DSN"
	EnvMaxCacheMB    = "ENERGYVIEW_MAX_CACHE_MB"
)

// Config is the runtime configuration of the server and CLI.
type Config struct {
	Port           string        `yaml:"port"`
	CacheDir       string        `yaml:"cache_dir"`
	CacheTTL       time.Duration `yaml:"cache_ttl"`
	CacheDisabled  bool          `yaml:"cache_disabled"`
	MaxCacheMB     int64         `yaml:"max_cache_mb"`
	Delimiter      string        `yaml:"delimiter"`
	RequiredGroups []string      `yaml:"required_groups"`
	PostgresDSN    string        `yaml:"postgres_dsn"`
	SessionIdle    time.Duration `yaml:"session_idle"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Port:           DefaultPort,
		CacheDir:       DefaultCacheDir,
		CacheTTL:       DefaultCacheTTL,
		MaxCacheMB:     DefaultMaxMemoryMB,
		Delimiter:      DefaultDelimiter,
		RequiredGroups: append([]string{}, results.DefaultRequiredGroups...),
		SessionIdle:    DefaultSessionIdle,
	}
}

// Load reads the YAML file at path (or $ENERGYVIEW_CONFIG when path is
// empty) over the defaults, then applies environment overrides. A missing
// path is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv(EnvPort); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv(EnvCacheDir); v != "" {
		cfg.CacheDir = v
	}
	if v := os.Getenv(EnvPGDSN); v != "" {
		cfg.PostgresDSN = v
	}
	if v := os.Getenv(EnvCacheTTL); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvCacheTTL, err)
		}
		cfg.CacheTTL = d
	}
	if v := os.Getenv(EnvCacheDisabled); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvCacheDisabled, err)
		}
		cfg.CacheDisabled = b
	}
	if v := os.Getenv(EnvMaxCacheMB); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvMaxCacheMB, err)
		}
		cfg.MaxCacheMB = n
	}
	return nil
}

// Validate checks field ranges.
func (c Config) Validate() error {
	if c.Port == "" {
		return errors.New("config: port required")
	}
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("config: invalid port %q", c.Port)
	}
	if !c.CacheDisabled && strings.TrimSpace(c.CacheDir) == "" {
		return errors.New("config: cache_dir required unless cache_disabled")
	}
	if c.CacheTTL < 0 {
		return errors.New("config: cache_ttl must not be negative")
	}
	if c.MaxCacheMB < 0 {
		return errors.New("config: max_cache_mb must not be negative")
	}
	if len([]rune(c.Delimiter)) > 1 {
		return fmt.Errorf("config: delimiter %q must be a single character", c.Delimiter)
	}
	return nil
}

// DelimiterRune returns the configured delimiter, ';' when unset.
func (c Config) DelimiterRune() rune {
	if r := []rune(c.Delimiter); len(r) == 1 {
		return r[0]
	}
	return ';'
}
