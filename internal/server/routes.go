package server

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xtxerr/saga/config"
	"github.com/xtxerr/saga/internal/constants"
	"github.com/xtxerr/saga/internal/consolidation"
	"github.com/xtxerr/saga/internal/errors"
	"github.com/xtxerr/saga/internal/ingest"
	"github.com/xtxerr/saga/internal/metrics"
	"github.com/xtxerr/saga/internal/storage/archive"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// routes builds the mux. Every log route is served both with and without
// the application prefix.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	for _, prefix := range []string{"", constants.RoutePrefix} {
		s.handle(mux, prefix+"/log/events", s.records(s.events))
		s.handle(mux, prefix+"/log/latest", s.latest(s.events))
		s.handle(mux, prefix+"/log/sensor/data", s.records(s.sensors))
		s.handle(mux, prefix+"/log/sensor/latest", s.latest(s.sensors))
		s.handle(mux, prefix+"/log/sensor/check", s.latest(s.sensors))
		s.handle(mux, prefix+"/log/traces", s.handleTraces)
		s.handle(mux, prefix+"/log/metrics", s.handleMetrics)
		s.handle(mux, prefix+"/log/traffic", s.handleTraffic)
		s.handle(mux, prefix+"/log/status", s.handleStatus)
		s.handle(mux, prefix+"/monthly", s.handleMonthly)
		s.handle(mux, prefix+"/daily", s.handleDaily)

		archivePath := prefix + "/archive/"
		mux.Handle(archivePath, http.StripPrefix(archivePath, http.FileServer(http.Dir(s.cfg.StorageRoot))))
	}

	if s.cfg.MetricsPath != "" {
		mux.Handle(s.cfg.MetricsPath, promhttp.Handler())
	}
	if s.cfg.PublicDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(s.cfg.PublicDir)))
	}
	return mux
}

// handle registers h under path, serialized and timed.
func (s *Server) handle(mux *http.ServeMux, path string, h http.HandlerFunc) {
	route := strings.TrimPrefix(path, constants.RoutePrefix)
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		s.serialized(func() { h(w, r) })
		metrics.RequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// serialized runs fn under the server lock. The lock is released even if
// fn panics.
func (s *Server) serialized(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}

// =============================================================================
// Events and Sensors
// =============================================================================

// records serves the poll (GET) and report (POST) routes of one engine.
func (s *Server) records(engine *consolidation.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			s.poll(w, r, engine)
		case http.MethodPost:
			s.report(w, r, engine)
		default:
			methodNotAllowed(w, http.MethodGet, http.MethodPost)
		}
	}
}

func (s *Server) poll(w http.ResponseWriter, r *http.Request, engine *consolidation.Engine) {
	since := queryInt(r, "since")
	known := queryInt(r, "known")

	page, changed := engine.Render(since, known)
	if !changed {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	resp := s.envelope(engine.LatestID())
	resp.Saga.Truncated = page.Truncated
	items := jsoniter.RawMessage(page.Items)
	if engine.Kind().Section == constants.SectionSensor {
		resp.Saga.Sensor = items
	} else {
		resp.Saga.Events = items
	}
	writeJSON(w, resp)
}

// report ingests a source batch. The caller always gets an empty 200:
// rejected batches and entries are only logged and counted.
func (s *Server) report(w http.ResponseWriter, r *http.Request, engine *consolidation.Engine) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}

	batch, err := ingest.DecodeRecords(body, engine.Kind())
	if err != nil {
		log.Debug("report rejected", "route", r.URL.Path, "remote", r.RemoteAddr, "error", err)
		return
	}
	for _, entry := range batch.Entries {
		engine.Ingest(entry.TimestampMs, batch.Host, batch.App, entry.Fields, true)
		s.traffic.Increment(batch.App)
	}
}

// latest serves the deprecated routes that only report the latest id.
func (s *Server) latest(engine *consolidation.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w, http.MethodGet)
			return
		}
		writeJSON(w, s.envelope(engine.LatestID()))
	}
}

// =============================================================================
// Traces and Metrics
// =============================================================================

func (s *Server) handleTraces(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	body, ok := readBody(w, r)
	if !ok {
		return
	}

	batch, err := ingest.DecodeTraces(body)
	if err != nil {
		log.Debug("trace report rejected", "remote", r.RemoteAddr, "error", err)
		return
	}
	for _, trace := range batch.Traces {
		s.writer.Append(constants.KindTrace, trace.TimestampMs, constants.TraceHeader, trace.Row())
	}
	s.writer.Flush()
}

// handleMetrics stores the raw body as one line of the metrics file.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	body, ok := readBody(w, r)
	if !ok {
		return
	}

	line := strings.TrimSpace(strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(string(body)))
	if line == "" {
		return
	}
	s.writer.Append(constants.KindMetrics, s.now().UnixMilli(), "", line)
	s.writer.Flush()
}

// =============================================================================
// Traffic and Status
// =============================================================================

func (s *Server) handleTraffic(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	writeJSON(w, trafficResponse{
		Host:      s.cfg.Host,
		Timestamp: s.now().Unix(),
		Saga:      trafficBody{Traffic: s.traffic.Snapshot()},
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	ws := s.writer.Stats()
	writeJSON(w, statusResponse{
		Host:      s.cfg.Host,
		Timestamp: s.now().Unix(),
		Saga: statusBody{
			Events:  s.events.Stats(),
			Sensors: s.sensors.Stats(),
			Storage: storageStatus{
				Root:         s.cfg.StorageRoot,
				FilesOpened:  ws.FilesOpened,
				RowsWritten:  ws.RowsWritten,
				BytesWritten: ws.BytesWritten,
				Errors:       ws.Errors,
			},
		},
	})
}

// =============================================================================
// Archive Listings
// =============================================================================

func (s *Server) handleMonthly(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	year, ok1 := queryPositive(r, "year")
	month, ok2 := queryPositive(r, "month")
	if !ok1 || !ok2 {
		http.NotFound(w, r)
		return
	}

	days, err := archive.Monthly(s.cfg.StorageRoot, year, month)
	if err != nil {
		notFoundOrError(w, r, err)
		return
	}
	writeJSON(w, days)
}

func (s *Server) handleDaily(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	year, ok1 := queryPositive(r, "year")
	month, ok2 := queryPositive(r, "month")
	day, ok3 := queryPositive(r, "day")
	if !ok1 || !ok2 || !ok3 {
		http.NotFound(w, r)
		return
	}

	files, err := archive.Daily(s.cfg.StorageRoot, year, month, day)
	if err != nil {
		notFoundOrError(w, r, err)
		return
	}
	writeJSON(w, files)
}

// =============================================================================
// Helpers
// =============================================================================

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, config.DefaultMaxBodySize))
	if err != nil {
		log.Debug("cannot read request body", "route", r.URL.Path, "error", err)
		return nil, false
	}
	return body, true
}

// queryInt returns the integer parameter name, 0 when absent or invalid.
func queryInt(r *http.Request, name string) int64 {
	v, err := strconv.ParseInt(r.URL.Query().Get(name), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func queryPositive(r *http.Request, name string) (int, bool) {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

func notFoundOrError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.IsNotFound(err) {
		http.NotFound(w, r)
		return
	}
	log.Warn("archive listing failed", "path", r.URL.Path, "error", err)
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error("cannot encode response", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}
