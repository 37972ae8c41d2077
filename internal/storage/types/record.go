package types

import (
	"fmt"
	"unicode/utf8"
)

// Origin field limits. Longer values are truncated, never rejected.
const (
	HostMaxLen = 127
	AppMaxLen  = 127
)

// Fields holds the four kind-specific text fields of a record, in wire order.
// Events: category, object, action, description.
// Sensors: location, name, value, unit.
type Fields [4]string

// Record represents a single event or sensor sample.
// This is the data unit held by a consolidation engine.
type Record struct {
	// Timestamp, as supplied by the source
	TimestampMs int64 // Unix timestamp in milliseconds

	// ID is assigned on ingestion, strictly increasing per kind.
	ID int64

	// Origin
	Host string
	App  string

	// Kind-specific payload
	Fields Fields

	// Unsaved is true until the record has been appended to storage.
	// Records that must not propagate never become unsaved.
	Unsaved bool
}

// NewRecord builds a record for kind, truncating every text field to its limit.
func NewRecord(kind *Kind, timestampMs int64, host, app string, fields Fields, propagate bool) Record {
	r := Record{
		TimestampMs: timestampMs,
		Host:        Truncate(host, HostMaxLen),
		App:         Truncate(app, AppMaxLen),
		Unsaved:     propagate,
	}
	for i := range fields {
		r.Fields[i] = Truncate(fields[i], kind.Limits[i])
	}
	return r
}

// Truncate shortens s to at most max bytes without splitting a UTF-8 sequence.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 0 {
		return ""
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// FormatTimestamp renders milliseconds as "<seconds>.<millis>", the storage
// timestamp column format.
func FormatTimestamp(ms int64) string {
	return fmt.Sprintf("%d.%03d", ms/1000, ms%1000)
}
