// Package config provides configuration defaults and utilities
// for the saga log consolidation daemon.
//
// This package defines all configurable constants with documented defaults.
// Users can override these values via saga.yaml or command line flags.
package config

import "time"

// =============================================================================
// Network Defaults
// =============================================================================

const (
	// DefaultListenAddress is the default HTTP listen address.
	// Override via config: listen
	DefaultListenAddress = "0.0.0.0:8096"

	// DefaultConfigPath is where sagad looks for its config file.
	// A missing file is not an error: built-in defaults apply.
	DefaultConfigPath = "/etc/house/saga.yaml"

	// DefaultShutdownTimeout bounds the HTTP server drain on shutdown.
	DefaultShutdownTimeout = 5 * time.Second
)

// =============================================================================
// Storage Defaults
// =============================================================================

const (
	// DefaultStorageRoot is the root of the day-partitioned log tree:
	// <root>/<YYYY>/<MM>/<DD>/<kind>.csv
	// Override via config: storage.root
	DefaultStorageRoot = "/var/lib/house/log"

	// DefaultPublicDir holds the static web pages served at "/".
	// Override via config: public_dir
	DefaultPublicDir = "/usr/local/share/house/public"
)

// =============================================================================
// Consolidation Defaults
// =============================================================================

const (
	// DefaultHistoryDepth is the number of records kept in memory per kind.
	// Override via config: consolidation.history_depth
	DefaultHistoryDepth = 256

	// DefaultSaveDelay holds records back from storage so that slow or
	// buffered sources can still deliver earlier records for the same window.
	// Override via config: consolidation.save_delay
	DefaultSaveDelay = 6 * time.Second

	// DefaultForcedSaveMargin is how far past "now" a forced save reaches
	// when an unsaved record is about to be evicted.
	// Override via config: consolidation.forced_save_margin
	DefaultForcedSaveMargin = 2 * time.Second

	// DefaultRenderCapacity is the byte capacity of one poll response body.
	// Responses are truncated, never failed, when it is reached.
	// Override via config: consolidation.render_capacity
	DefaultRenderCapacity = 256 * 1024

	// DefaultBackgroundInterval is the period of the background save tick.
	DefaultBackgroundInterval = time.Second
)

// =============================================================================
// Traffic Defaults
// =============================================================================

const (
	// DefaultTrafficPeriod is the number of one-second buckets per traffic id.
	DefaultTrafficPeriod = 10

	// DefaultTrafficMaxIDs caps the number of distinct traffic ids tracked.
	// New ids are dropped once the cap is reached.
	DefaultTrafficMaxIDs = 32
)

// =============================================================================
// Metrics Defaults
// =============================================================================

const (
	// DefaultMetricsPath is where the Prometheus handler is mounted.
	// Override via config: metrics.path
	DefaultMetricsPath = "/metrics"
)

// =============================================================================
// HTTP Defaults
// =============================================================================

const (
	// DefaultMaxBodySize caps the body of a source report.
	DefaultMaxBodySize = 1 << 20
)
