// Package config loads and saves the flowmode YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/eliteGoblin/focusd/flowmode/internal/domain"
	"github.com/eliteGoblin/focusd/flowmode/internal/matcher"
)

const (
	DefaultIdleTimeoutSecs  = 300
	DefaultPollIntervalSecs = 5
	DefaultCommandQueueSize = 16
)

// Config is the user-editable configuration. It is built once in main and
// passed explicitly to the components that need it.
type Config struct {
	IdleTimeoutSecs   uint64              `yaml:"idle_timeout_secs"`
	PollIntervalSecs  uint64              `yaml:"poll_interval_secs"`
	ProcessMatchField domain.ProcessField `yaml:"process_match_field"`
	EncryptStore      bool                `yaml:"encrypt_store"`
	CommandQueueSize  int                 `yaml:"command_queue_size"`

	// Apps is nil when the file has no apps key (defaults apply) and empty
	// when the user explicitly tracks nothing.
	Apps []domain.TrackedApp `yaml:"apps"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		IdleTimeoutSecs:   DefaultIdleTimeoutSecs,
		PollIntervalSecs:  DefaultPollIntervalSecs,
		ProcessMatchField: domain.ProcessFieldWindowClass,
		CommandQueueSize:  DefaultCommandQueueSize,
		Apps:              matcher.DefaultApps(),
	}
}

// IdleTimeout returns the idle threshold as a duration.
func (c *Config) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutSecs) * time.Second
}

// PollInterval returns the sampling period as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSecs) * time.Second
}

// Matcher builds the rule matcher for this configuration.
func (c *Config) Matcher() *matcher.Matcher {
	return matcher.New(c.Apps, c.ProcessMatchField)
}

// Read parses the file at path. Failures are returned as *domain.ConfigError.
func Read(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &domain.ConfigError{Path: path, Err: err}
	}

	// Unmarshal over a zero value so a missing apps key stays nil.
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, &domain.ConfigError{Path: path, Err: fmt.Errorf("parse yaml: %w", err)}
	}
	return cfg, nil
}

// Load reads path and fills gaps with defaults. A missing file yields the
// default config; an unreadable or malformed file is logged and also falls
// back to defaults so the tracker can still start.
func Load(path string, logger *zap.Logger) *Config {
	cfg, err := Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Debug("no config file, using defaults", zap.String("path", path))
		} else {
			logger.Warn("failed to load config, using defaults", zap.String("path", path), zap.Error(err))
		}
		return Default()
	}
	cfg.normalize(logger)
	return cfg
}

// normalize replaces zero or invalid values with defaults.
func (c *Config) normalize(logger *zap.Logger) {
	if c.IdleTimeoutSecs == 0 {
		logger.Warn("idle_timeout_secs unset or zero, using default", zap.Int("default", DefaultIdleTimeoutSecs))
		c.IdleTimeoutSecs = DefaultIdleTimeoutSecs
	}
	if c.PollIntervalSecs == 0 {
		logger.Warn("poll_interval_secs unset or zero, using default", zap.Int("default", DefaultPollIntervalSecs))
		c.PollIntervalSecs = DefaultPollIntervalSecs
	}
	if c.CommandQueueSize <= 0 {
		c.CommandQueueSize = DefaultCommandQueueSize
	}
	switch c.ProcessMatchField {
	case domain.ProcessFieldWindowClass, domain.ProcessFieldProcessName:
	case "":
		c.ProcessMatchField = domain.ProcessFieldWindowClass
	default:
		logger.Warn("unknown process_match_field, using window_class",
			zap.String("value", string(c.ProcessMatchField)))
		c.ProcessMatchField = domain.ProcessFieldWindowClass
	}
	if c.Apps == nil {
		c.Apps = matcher.DefaultApps()
	}
}

// Save writes cfg to path, creating parent directories. It refuses to
// replace an existing file unless force is set.
func Save(path string, cfg *Config, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return &domain.ConfigError{Path: path, Err: os.ErrExist}
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return &domain.ConfigError{Path: path, Err: fmt.Errorf("create config dir: %w", err)}
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return &domain.ConfigError{Path: path, Err: fmt.Errorf("marshal yaml: %w", err)}
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return &domain.ConfigError{Path: path, Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return &domain.ConfigError{Path: path, Err: err}
	}
	return nil
}
