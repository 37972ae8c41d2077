// Package loader handles configuration file loading and validation.
//
// This package is responsible for:
//   - Loading YAML configuration files
//   - Expanding environment variables
//   - Filling in runtime defaults (host name, portal)
//   - Converting the result into engine settings

package loader

import (
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/xtxerr/saga/internal/consolidation"
	"github.com/xtxerr/saga/internal/errors"
	"github.com/xtxerr/saga/internal/logging"
)

// =============================================================================
// Load
// =============================================================================

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	return Parse(data)
}

// LoadOptional is Load, except that a missing file yields the defaults.
func LoadOptional(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}
	return cfg, err
}

// Parse parses a YAML document over the defaults.
func Parse(data []byte) (*Config, error) {
	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	// Start with defaults
	cfg := DefaultConfig()

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}
	return cfg, nil
}

// ApplyRuntimeDefaults fills in the values that depend on the machine.
func (c *Config) ApplyRuntimeDefaults() {
	if c.Host == "" {
		if name, err := os.Hostname(); err == nil {
			c.Host = name
		} else {
			c.Host = "localhost"
		}
	}
	if c.Portal == "" {
		c.Portal = c.Host
	}
}

// =============================================================================
// Validate
// =============================================================================

// Validate validates the configuration.
func Validate(cfg *Config) error {
	errs := errors.NewValidationErrors()

	if cfg.Listen == "" {
		errs.AddField("listen", "cannot be empty")
	}
	if cfg.Storage.Root == "" {
		errs.AddField("storage.root", "cannot be empty")
	}
	if _, err := cfg.Location(); err != nil {
		errs.AddField("storage.timezone", err.Error())
	}

	c := cfg.Consolidation
	if c.HistoryDepth < 2 {
		errs.AddField("consolidation.history_depth", "must be at least 2")
	}
	if c.SaveDelay.Duration() <= 0 {
		errs.AddField("consolidation.save_delay", "must be positive")
	}
	if c.ForcedSaveMargin.Duration() < 0 {
		errs.AddField("consolidation.forced_save_margin", "cannot be negative")
	}
	if c.RenderCapacity.Bytes() < 1024 {
		errs.AddField("consolidation.render_capacity", "must be at least 1KB")
	}

	if _, err := logging.ParseLevel(cfg.Logging.Level); err != nil {
		errs.AddField("logging.level", err.Error())
	}

	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs.AddField("metrics.path", "must start with /")
	}

	return errs.Err()
}

// =============================================================================
// Conversion: Config → Engine Config
// =============================================================================

// EngineConfig converts the consolidation section for consolidation.New.
func (c *Config) EngineConfig(clock func() time.Time) consolidation.Config {
	return consolidation.Config{
		HistoryDepth:     c.Consolidation.HistoryDepth,
		SaveDelay:        c.Consolidation.SaveDelay.Duration(),
		ForcedSaveMargin: c.Consolidation.ForcedSaveMargin.Duration(),
		RenderCapacity:   int(c.Consolidation.RenderCapacity.Bytes()),
		Clock:            clock,
	}
}

// Location resolves storage.timezone. Empty selects the local time zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Storage.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Storage.Timezone)
	if err != nil {
		return nil, errors.Wrapf(err, "load time zone %q", c.Storage.Timezone)
	}
	return loc, nil
}
