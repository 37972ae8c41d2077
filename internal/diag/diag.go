// Package diag records events and traces originated by saga itself, with
// the same shape as those reported by source agents.
package diag

import (
	"fmt"
	"path/filepath"
	"runtime"
	"time"

	"github.com/xtxerr/saga/internal/constants"
	"github.com/xtxerr/saga/internal/consolidation"
	"github.com/xtxerr/saga/internal/storage/types"
)

// Recorder feeds local events into the event engine and appends local
// traces straight to storage.
//
// Recorder shares the engine and the store with the HTTP handlers: callers
// must hold the same lock.
type Recorder struct {
	host   string
	events *consolidation.Engine
	store  consolidation.Store
	now    func() time.Time
}

// New creates a Recorder for host.
func New(host string, events *consolidation.Engine, store consolidation.Store, now func() time.Time) *Recorder {
	if now == nil {
		now = time.Now
	}
	return &Recorder{host: host, events: events, store: store, now: now}
}

// Host returns the host name stamped on local records.
func (r *Recorder) Host() string {
	return r.host
}

// Event records a local event that is persisted like any other.
func (r *Recorder) Event(category, object, action, format string, args ...any) int64 {
	return r.event(true, category, object, action, format, args...)
}

// EventLocal records a local event for display only: it is never persisted.
func (r *Recorder) EventLocal(category, object, action, format string, args ...any) int64 {
	return r.event(false, category, object, action, format, args...)
}

func (r *Recorder) event(propagate bool, category, object, action, format string, args ...any) int64 {
	fields := types.Fields{category, object, action, fmt.Sprintf(format, args...)}
	return r.events.Ingest(r.now().UnixMilli(), r.host, constants.AppName, fields, propagate)
}

// Trace appends a local trace, attributed to the caller's source position,
// and flushes storage.
func (r *Recorder) Trace(level, object, format string, args ...any) {
	file, line := "?", 0
	if _, path, l, ok := runtime.Caller(1); ok {
		file, line = filepath.Base(path), l
	}

	trace := types.Trace{
		TimestampMs: r.now().UnixMilli(),
		Host:        r.host,
		App:         constants.AppName,
		File:        file,
		Line:        line,
		Level:       level,
		Object:      object,
		Text:        fmt.Sprintf(format, args...),
	}
	r.store.Append(constants.KindTrace, trace.TimestampMs, constants.TraceHeader, trace.Row())
	r.store.Flush()
}
