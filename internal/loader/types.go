// Package loader - Configuration Types
//
// Defines the YAML configuration structure for sagad.
//
//	listen:        HTTP listen address
//	host, portal:  Identity reported in poll responses
//	storage:       Root of the day-partitioned log tree
//	consolidation: Buffer depth, save delays, response capacity
//	logging:       Level and format
//	metrics:       Prometheus endpoint

package loader

import (
	"strconv"
	"strings"
	"time"

	"github.com/xtxerr/saga/config"
	"github.com/xtxerr/saga/internal/errors"
)

// =============================================================================
// Root Configuration
// =============================================================================

// Config is the root configuration structure for sagad.
type Config struct {
	// Listen is the HTTP listen address.
	// Format: "host:port" or ":port"
	// Default: "0.0.0.0:8096"
	Listen string `yaml:"listen"`

	// Host is the name stamped on local records and poll responses.
	// Default: os.Hostname()
	Host string `yaml:"host"`

	// Portal is reported as "proxy" in poll responses, so that web pages
	// know where to send their own requests.
	// Default: Host
	Portal string `yaml:"portal"`

	// PublicDir holds the static pages served at "/".
	// Default: "/usr/local/share/house/public"
	PublicDir string `yaml:"public_dir"`

	Storage       StorageConfig       `yaml:"storage"`
	Consolidation ConsolidationConfig `yaml:"consolidation"`
	Logging       LoggingConfig       `yaml:"logging"`
	Metrics       MetricsConfig       `yaml:"metrics"`
}

// StorageConfig configures the log tree.
type StorageConfig struct {
	// Root is the directory holding <YYYY>/<MM>/<DD>/<kind>.csv.
	// Default: "/var/lib/house/log"
	Root string `yaml:"root"`

	// Timezone names the zone that decides calendar days, e.g. "Europe/Berlin".
	// Default: "" (local time)
	Timezone string `yaml:"timezone"`
}

// ConsolidationConfig configures the event and sensor engines.
type ConsolidationConfig struct {
	// HistoryDepth is the number of records kept in memory per kind.
	// Default: 256
	HistoryDepth int `yaml:"history_depth"`

	// SaveDelay is how long a record is held back before a periodic save.
	// Default: 6s
	SaveDelay Duration `yaml:"save_delay"`

	// ForcedSaveMargin is how far ahead of now a forced save reaches.
	// Default: 2s
	ForcedSaveMargin Duration `yaml:"forced_save_margin"`

	// RenderCapacity bounds one poll response. Accepts "256KB" style sizes.
	// Default: 256KB
	RenderCapacity ByteSize `yaml:"render_capacity"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	// Default: info
	Level string `yaml:"level"`

	// JSON selects JSON output instead of text.
	JSON bool `yaml:"json"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`

	// Path is the URL path of the handler.
	// Default: "/metrics"
	Path string `yaml:"path"`
}

// =============================================================================
// Defaults
// =============================================================================

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Listen:    config.DefaultListenAddress,
		PublicDir: config.DefaultPublicDir,

		Storage: StorageConfig{
			Root: config.DefaultStorageRoot,
		},

		Consolidation: ConsolidationConfig{
			HistoryDepth:     config.DefaultHistoryDepth,
			SaveDelay:        Duration(config.DefaultSaveDelay),
			ForcedSaveMargin: Duration(config.DefaultForcedSaveMargin),
			RenderCapacity:   ByteSize(config.DefaultRenderCapacity),
		},

		Logging: LoggingConfig{
			Level: "info",
		},

		Metrics: MetricsConfig{
			Enabled: true,
			Path:    config.DefaultMetricsPath,
		},
	}
}

// =============================================================================
// Value Types
// =============================================================================

// Duration is a time.Duration that can be unmarshaled from YAML.
// Supports: "6s", "1m30s", or a plain integer number of seconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		// Try as int (seconds)
		var i int
		if err := unmarshal(&i); err != nil {
			return err
		}
		*d = Duration(time.Duration(i) * time.Second)
		return nil
	}
	if i, err := strconv.Atoi(s); err == nil {
		*d = Duration(time.Duration(i) * time.Second)
		return nil
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// Duration returns the time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// ByteSize is a size in bytes that can be unmarshaled from YAML.
// Supports: "256KB", "1MB", or plain bytes.
type ByteSize int64

// UnmarshalYAML implements yaml.Unmarshaler.
func (b *ByteSize) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		// Try as int64
		var i int64
		if err := unmarshal(&i); err != nil {
			return err
		}
		*b = ByteSize(i)
		return nil
	}
	size, err := parseByteSize(s)
	if err != nil {
		return err
	}
	*b = ByteSize(size)
	return nil
}

// byteUnits is ordered so that "B" is tried last.
var byteUnits = []struct {
	suffix     string
	multiplier int64
}{
	{"GB", 1024 * 1024 * 1024},
	{"MB", 1024 * 1024},
	{"KB", 1024},
	{"B", 1},
}

// parseByteSize parses a size string like "256KB" or "1MB".
func parseByteSize(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return 0, nil
	}

	for _, unit := range byteUnits {
		if strings.HasSuffix(s, unit.suffix) {
			numStr := strings.TrimSpace(strings.TrimSuffix(s, unit.suffix))
			n, err := strconv.ParseInt(numStr, 10, 64)
			if err != nil {
				return 0, errors.Wrapf(err, "parse byte size %q", s)
			}
			return n * unit.multiplier, nil
		}
	}

	// Try as plain number
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "parse byte size %q", s)
	}
	return n, nil
}

// Bytes returns the size in bytes.
func (b ByteSize) Bytes() int64 {
	return int64(b)
}
