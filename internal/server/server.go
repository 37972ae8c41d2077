// Package server provides the HTTP surface of the saga daemon.
//
// Every handler and the background tick run under one lock: the engines,
// the storage writer and the traffic counter see a single stream of calls,
// in arrival order.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/xtxerr/saga/config"
	"github.com/xtxerr/saga/internal/consolidation"
	"github.com/xtxerr/saga/internal/diag"
	"github.com/xtxerr/saga/internal/logging"
	"github.com/xtxerr/saga/internal/storage/types"
	"github.com/xtxerr/saga/internal/storage/writer"
	"github.com/xtxerr/saga/internal/traffic"
)

var log = logging.Component("server")

// =============================================================================
// Configuration
// =============================================================================

// Config holds server configuration.
type Config struct {
	// Listen is the address to listen on (e.g., "0.0.0.0:8096").
	Listen string

	// Host and Portal identify this node in poll responses.
	Host   string
	Portal string

	// StorageRoot is the root of the log tree, also served at /archive/.
	StorageRoot string

	// PublicDir is served at "/" when not empty.
	PublicDir string

	// MetricsPath mounts the Prometheus handler when not empty.
	MetricsPath string

	// Engine configures both consolidation engines.
	Engine consolidation.Config

	// Location selects the time zone of the storage day buckets.
	// Default: time.Local
	Location *time.Location

	// TickInterval is the period of the background tick.
	// Default: 1s
	TickInterval time.Duration

	// ShutdownTimeout bounds the drain of in-flight requests.
	// Default: 5s
	ShutdownTimeout time.Duration
}

// =============================================================================
// Server
// =============================================================================

// Server is the saga HTTP server.
type Server struct {
	cfg Config
	now func() time.Time

	mu      sync.Mutex
	writer  *writer.Writer
	events  *consolidation.Engine
	sensors *consolidation.Engine
	traffic *traffic.Counter
	diag    *diag.Recorder

	handler http.Handler
}

// New creates a server and its engines. Nothing is started.
func New(cfg Config) *Server {
	if cfg.Portal == "" {
		cfg.Portal = cfg.Host
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = config.DefaultBackgroundInterval
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = config.DefaultShutdownTimeout
	}
	now := cfg.Engine.Clock
	if now == nil {
		now = time.Now
		cfg.Engine.Clock = now
	}

	w := writer.New(cfg.StorageRoot, writer.WithLocation(cfg.Location))
	events := consolidation.New(&types.EventKind, w, cfg.Engine)

	s := &Server{
		cfg:     cfg,
		now:     now,
		writer:  w,
		events:  events,
		sensors: consolidation.New(&types.SensorKind, w, cfg.Engine),
		traffic: traffic.New(traffic.WithClock(now)),
		diag:    diag.New(cfg.Host, events, w, now),
	}
	s.handler = s.routes()
	return s
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Locked runs fn with the server lock held and the local diagnostics
// recorder, which shares state with the handlers.
func (s *Server) Locked(fn func(r *diag.Recorder)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.diag)
}

// Tick runs the periodic background work: delayed saves on both engines
// and the traffic counter cleanup.
func (s *Server) Tick(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events.Background(now)
	s.sensors.Background(now)
	s.traffic.Background(now)
}

// Flush persists every record still held back, ignoring the save delay.
func (s *Server) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()

	events := s.events.SaveDue(true)
	sensors := s.sensors.SaveDue(true)
	log.Info("flushed pending records", "events", events, "sensors", sensors)
}

// Run serves HTTP and runs the background tick until ctx is canceled, then
// drains the listener and flushes pending records.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("listening", "address", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		ticker := time.NewTicker(s.cfg.TickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				s.Tick(s.now())
			}
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	s.Flush()
	log.Info("shutdown complete")
	return err
}
