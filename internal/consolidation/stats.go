package consolidation

import "github.com/DataDog/sketches-go/ddsketch"

// Stats is a snapshot of an engine's state and counters.
type Stats struct {
	Kind        string `json:"kind"`
	LatestID    int64  `json:"latest"`
	Resident    int    `json:"resident"`
	Capacity    int    `json:"capacity"`
	WatermarkMs int64  `json:"watermark"`

	Ingested      int64 `json:"ingested"`
	Saved         int64 `json:"saved"`
	ForcedSaves   int64 `json:"forced_saves"`
	Evictions     int64 `json:"evictions"`
	LateArrivals  int64 `json:"late_arrivals"`
	StorageErrors int64 `json:"storage_errors"`

	Lateness LatenessStats `json:"lateness"`
}

// LatenessStats summarizes how far behind the local clock records arrive,
// in seconds.
type LatenessStats struct {
	Count float64 `json:"count"`
	P50   float64 `json:"p50"`
	P90   float64 `json:"p90"`
	P99   float64 `json:"p99"`
	Max   float64 `json:"max"`
}

// Stats returns the engine statistics.
func (e *Engine) Stats() Stats {
	bs := e.buffer.Stats()
	return Stats{
		Kind:          e.kind.Name,
		LatestID:      e.latestID,
		Resident:      bs.Count,
		Capacity:      bs.Capacity,
		WatermarkMs:   e.lastSaved,
		Ingested:      e.stats.ingested,
		Saved:         e.stats.saved,
		ForcedSaves:   e.stats.forcedSaves,
		Evictions:     e.stats.evictions,
		LateArrivals:  e.stats.lateArrivals,
		StorageErrors: e.stats.storageErrors,
		Lateness:      latenessStats(e.lateness),
	}
}

func latenessStats(sketch *ddsketch.DDSketch) LatenessStats {
	if sketch == nil || sketch.IsEmpty() {
		return LatenessStats{}
	}
	ls := LatenessStats{Count: sketch.GetCount()}
	if v, err := sketch.GetValueAtQuantile(0.50); err == nil {
		ls.P50 = v
	}
	if v, err := sketch.GetValueAtQuantile(0.90); err == nil {
		ls.P90 = v
	}
	if v, err := sketch.GetValueAtQuantile(0.99); err == nil {
		ls.P99 = v
	}
	if v, err := sketch.GetMaxValue(); err == nil {
		ls.Max = v
	}
	return ls
}
