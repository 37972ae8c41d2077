// Package consolidation implements the per-kind consolidation engine.
//
// An engine holds the most recent records of one kind in a circular buffer
// and indexes them by timestamp. Arrival order drives slot reuse; timestamp
// order drives persistence and client-facing retrieval.
//
// Saves are delayed: a periodic pass only persists records older than
// now-SaveDelay, so that sources flushing late still land in chronological
// order on disk. When a slot about to be reused still holds an unsaved
// record, a forced pass persists everything up to now+ForcedSaveMargin first.
package consolidation

import (
	"time"

	"github.com/DataDog/sketches-go/ddsketch"

	"github.com/xtxerr/saga/config"
	"github.com/xtxerr/saga/internal/errors"
	"github.com/xtxerr/saga/internal/logging"
	"github.com/xtxerr/saga/internal/metrics"
	"github.com/xtxerr/saga/internal/storage/buffer"
	"github.com/xtxerr/saga/internal/storage/index"
	"github.com/xtxerr/saga/internal/storage/types"
)

var log = logging.Component("consolidation")

// idSeedMask keeps about 20 bits of the start time as the id seed, so ids
// differ across restarts while staying small.
const idSeedMask = 0xfffff

// Store is the persistence side of an engine.
type Store interface {
	Append(kind string, timestampMs int64, header, row string) error
	Flush() error
}

// Config configures an Engine. Zero values select the defaults.
type Config struct {
	HistoryDepth     int
	SaveDelay        time.Duration
	ForcedSaveMargin time.Duration
	RenderCapacity   int

	// Clock returns the current time. Default: time.Now
	Clock func() time.Time
}

func (c Config) withDefaults() Config {
	if c.HistoryDepth <= 0 {
		c.HistoryDepth = config.DefaultHistoryDepth
	}
	if c.SaveDelay <= 0 {
		c.SaveDelay = config.DefaultSaveDelay
	}
	if c.ForcedSaveMargin <= 0 {
		c.ForcedSaveMargin = config.DefaultForcedSaveMargin
	}
	if c.RenderCapacity <= 0 {
		c.RenderCapacity = config.DefaultRenderCapacity
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	return c
}

// Engine consolidates the records of one kind.
//
// Engine is not safe for concurrent use. Its owner serializes every call.
type Engine struct {
	kind  *types.Kind
	cfg   Config
	store Store

	buffer *buffer.RecordBuffer
	index  *index.Chronology

	seeded   bool
	latestID int64

	// Watermark: every unsaved record is at or after lastSaved.
	hasSaved  bool
	lastSaved int64 // Unix milliseconds
	saveLimit int64 // Unix milliseconds

	ticked   bool
	lastTick int64 // Unix seconds

	lateness *ddsketch.DDSketch
	stats    counters
}

type counters struct {
	ingested      int64
	saved         int64
	forcedSaves   int64
	evictions     int64
	lateArrivals  int64
	storageErrors int64
}

// New creates an engine for kind persisting to store.
func New(kind *types.Kind, store Store, cfg Config) *Engine {
	cfg = cfg.withDefaults()

	e := &Engine{
		kind:   kind,
		cfg:    cfg,
		store:  store,
		buffer: buffer.New(cfg.HistoryDepth),
		index:  index.New(),
	}

	// Create DDSketch with relative accuracy of 1%
	sketch, err := ddsketch.NewDefaultDDSketch(0.01)
	if err == nil {
		e.lateness = sketch
	}
	return e
}

// Kind returns the record kind handled by the engine.
func (e *Engine) Kind() *types.Kind {
	return e.kind
}

// LatestID returns the id of the most recent record, 0 before the first one.
func (e *Engine) LatestID() int64 {
	return e.latestID
}

// Len returns the number of records held in memory.
func (e *Engine) Len() int {
	return e.buffer.Len()
}

// Ingest records a new entry and returns its id.
//
// propagate=false keeps the record for display only: it is never persisted.
func (e *Engine) Ingest(timestampMs int64, host, app string, fields types.Fields, propagate bool) int64 {
	now := e.cfg.Clock()

	if !e.seeded {
		e.latestID = now.Unix() & idSeedMask
		e.seeded = true
	}
	e.latestID++

	// The slot under the cursor is the oldest record: make room first.
	e.evict(now, e.buffer.Cursor())

	record := types.NewRecord(e.kind, timestampMs, host, app, fields, propagate)
	record.ID = e.latestID
	slot := e.buffer.Write(record)
	e.index.Insert(timestampMs, slot)

	if e.hasSaved && timestampMs < e.lastSaved {
		// A record from before the watermark: move the watermark back so
		// that the next pass picks it up, even out of order.
		e.lastSaved = timestampMs
		e.stats.lateArrivals++
		metrics.LateArrivals.WithLabelValues(e.kind.Name).Inc()
	}

	if e.lateness != nil {
		lag := float64(now.UnixMilli()-timestampMs) / 1000
		if lag < 0 {
			lag = 0
		}
		_ = e.lateness.Add(lag)
	}

	e.stats.ingested++
	metrics.RecordsIngested.WithLabelValues(e.kind.Name).Inc()
	metrics.ResidentRecords.WithLabelValues(e.kind.Name).Set(float64(e.buffer.Len()))
	return record.ID
}

// evict removes the record at slot, persisting it first if it was unsaved.
func (e *Engine) evict(now time.Time, slot int) {
	record, ok := e.buffer.SlotAt(slot)
	if !ok {
		return
	}

	if record.Unsaved {
		e.stats.forcedSaves++
		metrics.ForcedSaves.WithLabelValues(e.kind.Name).Inc()
		log.Debug("forced save before eviction", "kind", e.kind.Name, "id", record.ID)
		e.saveDue(now, true)

		if record.Unsaved {
			// Stamped beyond the forced window (source clock ahead of ours).
			e.save(record)
			e.flush()
		}
	}

	e.index.Remove(record.TimestampMs, slot)
	e.buffer.Clear(slot)
	e.stats.evictions++
	metrics.Evictions.WithLabelValues(e.kind.Name).Inc()
}

// SaveDue persists, in timestamp order, the unsaved records that are old
// enough: up to now-SaveDelay, or up to now+ForcedSaveMargin when full is
// set. It returns the number of records saved.
func (e *Engine) SaveDue(full bool) int {
	return e.saveDue(e.cfg.Clock(), full)
}

func (e *Engine) saveDue(now time.Time, full bool) int {
	nowMs := now.UnixMilli()
	if full {
		e.saveLimit = nowMs + e.cfg.ForcedSaveMargin.Milliseconds()
	} else {
		e.saveLimit = nowMs - e.cfg.SaveDelay.Milliseconds()
	}

	saved := 0
	visit := func(_ int64, ref int) bool {
		record, ok := e.buffer.SlotAt(ref)
		if !ok || !record.Unsaved {
			return true
		}
		if record.TimestampMs > e.saveLimit {
			return false // Too recent: leave the rest for a later pass.
		}
		e.save(record)
		saved++
		return true
	}

	if e.hasSaved {
		e.index.AscendFrom(e.lastSaved, visit)
	} else {
		e.index.AscendAll(visit)
	}
	e.flush()

	if full {
		e.lastSaved = nowMs
	} else {
		e.lastSaved = e.saveLimit
	}
	e.hasSaved = true
	return saved
}

// save appends one record to storage. A failed write is not retried.
func (e *Engine) save(record *types.Record) {
	if err := e.store.Append(e.kind.Name, record.TimestampMs, e.kind.Header, e.kind.Row(record)); err != nil {
		e.storageFailed(errors.Wrapf(err, "save %s record %d", e.kind.Name, record.ID))
	}
	record.Unsaved = false
	e.stats.saved++
	metrics.RecordsSaved.WithLabelValues(e.kind.Name).Inc()
}

func (e *Engine) flush() {
	if err := e.store.Flush(); err != nil {
		e.storageFailed(errors.Wrap(err, "flush "+e.kind.Name))
	}
}

// storageFailed counts a dropped write. Storage errors were already logged
// by the writer; anything else is unexpected and logged here.
func (e *Engine) storageFailed(err error) {
	e.stats.storageErrors++
	if !errors.IsStorage(err) {
		log.Warn("store failed", "kind", e.kind.Name, "error", err)
	}
}

// Background runs the periodic save pass, at most once per wall-clock
// second. It reports whether a pass ran.
func (e *Engine) Background(now time.Time) bool {
	sec := now.Unix()
	if e.ticked && sec <= e.lastTick {
		return false
	}
	e.ticked = true
	e.lastTick = sec

	e.saveDue(now, false)
	return true
}

// Records returns a copy of the resident records in ascending timestamp order.
func (e *Engine) Records() []types.Record {
	out := make([]types.Record, 0, e.buffer.Len())
	e.index.AscendAll(func(_ int64, ref int) bool {
		if record, ok := e.buffer.SlotAt(ref); ok {
			out = append(out, *record)
		}
		return true
	})
	return out
}

// Watermark returns the save watermark in Unix milliseconds, and whether a
// save pass has run yet.
func (e *Engine) Watermark() (int64, bool) {
	return e.lastSaved, e.hasSaved
}
