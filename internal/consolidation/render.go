package consolidation

import (
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Page is one rendered poll result.
type Page struct {
	// Latest is the engine's latest id at render time.
	Latest int64

	// Items is a JSON array of record tuples, newest first:
	// [timestamp_ms, field0, field1, field2, field3, host, app, id]
	Items []byte

	Count     int
	Truncated bool
}

// Render lists the records with a timestamp strictly after sinceMs, newest
// first. When knownID is nonzero and equals the latest id, the client is up
// to date and Render returns false.
//
// Output stops before the entry that would push Items beyond the configured
// render capacity. Items is always a well-formed array.
func (e *Engine) Render(sinceMs, knownID int64) (*Page, bool) {
	if knownID != 0 && knownID == e.latestID {
		return nil, false
	}

	page := &Page{Latest: e.latestID}
	items := make([]byte, 0, 4096)
	items = append(items, '[')

	e.index.DescendAll(func(ts int64, ref int) bool {
		if ts <= sinceMs {
			return false
		}
		record, ok := e.buffer.SlotAt(ref)
		if !ok {
			return true
		}

		tuple, err := json.Marshal([]interface{}{
			record.TimestampMs,
			record.Fields[0], record.Fields[1], record.Fields[2], record.Fields[3],
			record.Host, record.App, record.ID,
		})
		if err != nil {
			log.Warn("cannot encode record", "kind", e.kind.Name, "id", record.ID, "error", err)
			return true
		}

		// Separator plus closing bracket.
		if len(items)+len(tuple)+2 > e.cfg.RenderCapacity {
			page.Truncated = true
			return false
		}
		if page.Count > 0 {
			items = append(items, ',')
		}
		items = append(items, tuple...)
		page.Count++
		return true
	})

	page.Items = append(items, ']')
	return page, true
}
