package types

import "strconv"

// Trace is a diagnostic trace reported by a source or by saga itself.
// Traces bypass the consolidation engines and are appended immediately.
type Trace struct {
	TimestampMs int64
	Host        string
	App         string
	File        string
	Line        int
	Level       string
	Object      string
	Text        string
}

// Row formats t in the trace header column order.
func (t *Trace) Row() string {
	return FormatRow(FormatTimestamp(t.TimestampMs), t.Host, t.App,
		t.Level, t.File, strconv.Itoa(t.Line), t.Object, t.Text)
}
