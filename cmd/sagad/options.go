package main

import (
	goflags "github.com/jessevdk/go-flags"

	"github.com/xtxerr/saga/config"
	"github.com/xtxerr/saga/internal/loader"
)

// options are the sagad command line flags. Flags override the config file.
type options struct {
	Config       string `long:"config" description:"Config file path; a missing file selects the defaults"`
	Listen       string `long:"listen" description:"HTTP listen address"`
	LogPath      string `long:"log-path" description:"Root directory of the log tree"`
	PortalServer string `long:"portal-server" description:"Portal host reported to web clients"`
	Public       string `long:"public" description:"Directory of the static web pages"`
	LogLevel     string `long:"log-level" description:"Log level (debug, info, warn, error)"`
	LogJSON      bool   `long:"log-json" description:"Log in JSON format"`
	Version      bool   `long:"version" description:"Print the version and exit"`
}

func parseOptions(args []string) (*options, error) {
	opts := &options{Config: config.DefaultConfigPath}

	parser := goflags.NewParser(opts, goflags.Default)
	parser.Name = "sagad"
	parser.LongDescription = "Consolidates events, sensor data, traces and metrics from house services."

	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}
	return opts, nil
}

// buildConfig loads the config file, applies the flag overrides and
// validates the result.
func buildConfig(opts *options) (*loader.Config, error) {
	cfg, err := loader.LoadOptional(opts.Config)
	if err != nil {
		return nil, err
	}

	if opts.Listen != "" {
		cfg.Listen = opts.Listen
	}
	if opts.LogPath != "" {
		cfg.Storage.Root = opts.LogPath
	}
	if opts.PortalServer != "" {
		cfg.Portal = opts.PortalServer
	}
	if opts.Public != "" {
		cfg.PublicDir = opts.Public
	}
	if opts.LogLevel != "" {
		cfg.Logging.Level = opts.LogLevel
	}
	if opts.LogJSON {
		cfg.Logging.JSON = true
	}

	cfg.ApplyRuntimeDefaults()
	if err := loader.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
