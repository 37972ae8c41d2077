// sagad is the log consolidation daemon: it collects events, sensor samples,
// traces and metrics from house services and stores them by day.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	goflags "github.com/jessevdk/go-flags"

	"github.com/xtxerr/saga/internal/constants"
	"github.com/xtxerr/saga/internal/diag"
	"github.com/xtxerr/saga/internal/logging"
	"github.com/xtxerr/saga/internal/server"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "sagad: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	opts, err := parseOptions(args)
	if err != nil {
		if flagsErr, ok := err.(*goflags.Error); ok && flagsErr.Type == goflags.ErrHelp {
			return nil
		}
		return err
	}
	if opts.Version {
		fmt.Printf("sagad %s\n", Version)
		return nil
	}

	cfg, err := buildConfig(opts)
	if err != nil {
		return err
	}

	level, _ := logging.ParseLevel(cfg.Logging.Level)
	logging.Init(level, cfg.Logging.JSON)
	log := logging.Component("main")
	log.Info("sagad starting", "version", Version, "host", cfg.Host, "storage", cfg.Storage.Root)

	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	srv := server.New(server.Config{
		Listen:      cfg.Listen,
		Host:        cfg.Host,
		Portal:      cfg.Portal,
		StorageRoot: cfg.Storage.Root,
		PublicDir:   cfg.PublicDir,
		MetricsPath: metricsPath,
		Engine:      cfg.EngineConfig(nil),
		Location:    loc,
	})

	srv.Locked(func(r *diag.Recorder) {
		r.Event("SERVICE", constants.AppName, "STARTED", "ON %s", r.Host())
		r.Trace(constants.TraceInfo, constants.AppName, "listening on %s", cfg.Listen)
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return srv.Run(ctx)
}
