// Package ingest decodes the reports pushed by source agents.
//
// A report has the same shape as the poll response of the source itself:
//
//	{"host": "h1", "apps": ["app"], "app": {"events": [[ts, ...], ...]}}
//
// Batch-level problems (malformed document, missing host or app, missing
// section) reject the whole report. A bad entry only rejects itself: the
// remaining entries of the same batch are still accepted.
package ingest

import (
	"fmt"

	"github.com/buger/jsonparser"

	"github.com/xtxerr/saga/internal/constants"
	"github.com/xtxerr/saga/internal/errors"
	"github.com/xtxerr/saga/internal/logging"
	"github.com/xtxerr/saga/internal/metrics"
	"github.com/xtxerr/saga/internal/storage/types"
)

var log = logging.Component("ingest")

// minTimestampMs rejects timestamps within the first second of the epoch,
// which is what an unset source clock reports.
const minTimestampMs = 1000

// Entry is one decoded event or sensor tuple.
type Entry struct {
	TimestampMs int64
	Fields      types.Fields
}

// Batch is a decoded event or sensor report.
type Batch struct {
	Host    string
	App     string
	Entries []Entry

	// Errors lists the rejected entries, as *errors.DecodeError.
	Errors []error
}

// TraceBatch is a decoded trace report.
type TraceBatch struct {
	Host   string
	App    string
	Traces []types.Trace
	Errors []error
}

// header holds the origin of a report.
type header struct {
	host string
	app  string
}

func decodeHeader(body []byte) (header, error) {
	if _, dataType, _, err := jsonparser.Get(body); err != nil || dataType != jsonparser.Object {
		return header{}, errors.NewDecodeError(-1, "body", errors.ErrMalformedJSON)
	}

	host, err := jsonparser.GetString(body, "host")
	if err != nil || host == "" {
		return header{}, errors.NewDecodeError(-1, "host", fieldError(err))
	}
	app, err := jsonparser.GetString(body, "apps", "[0]")
	if err != nil || app == "" {
		return header{}, errors.NewDecodeError(-1, "apps", fieldError(err))
	}
	return header{host: host, app: app}, nil
}

// section returns the raw array body.<app>.<name>.
func section(body []byte, app, name string) ([]byte, error) {
	value, dataType, _, err := jsonparser.Get(body, app, name)
	if err != nil {
		return nil, errors.NewDecodeError(-1, app+"."+name, fieldError(err))
	}
	if dataType != jsonparser.Array {
		return nil, errors.NewDecodeError(-1, app+"."+name, errors.ErrWrongType)
	}
	return value, nil
}

// fieldError maps a jsonparser lookup failure to a sentinel.
func fieldError(err error) error {
	if err == nil || err == jsonparser.KeyPathNotFoundError {
		return errors.ErrMissingField
	}
	return errors.ErrWrongType
}

// DecodeRecords decodes an event or sensor report. The section read is
// kind.Section; each tuple is [timestamp_ms, field0, field1, field2, field3].
func DecodeRecords(body []byte, kind *types.Kind) (*Batch, error) {
	h, err := decodeHeader(body)
	if err != nil {
		reject(kind.Section, err)
		return nil, err
	}
	items, err := section(body, h.app, kind.Section)
	if err != nil {
		reject(kind.Section, err)
		return nil, err
	}

	batch := &Batch{Host: h.host, App: h.app}
	index := 0
	_, err = jsonparser.ArrayEach(items, func(value []byte, dataType jsonparser.ValueType, _ int, _ error) {
		entry, err := decodeEntry(index, value, dataType, kind)
		if err != nil {
			reject(kind.Section, err)
			batch.Errors = append(batch.Errors, err)
		} else {
			batch.Entries = append(batch.Entries, entry)
		}
		index++
	})
	if err != nil {
		err = errors.NewDecodeError(index, kind.Section, fmt.Errorf("%w: %v", errors.ErrMalformedJSON, err))
		reject(kind.Section, err)
		batch.Errors = append(batch.Errors, err)
	}
	return batch, nil
}

func decodeEntry(index int, value []byte, dataType jsonparser.ValueType, kind *types.Kind) (Entry, error) {
	if dataType != jsonparser.Array {
		return Entry{}, errors.NewDecodeError(index, "entry", errors.ErrWrongType)
	}

	ts, err := decodeTimestamp(index, value)
	if err != nil {
		return Entry{}, err
	}

	entry := Entry{TimestampMs: ts}
	for i, name := range kind.FieldNames {
		s, err := jsonparser.GetString(value, fmt.Sprintf("[%d]", i+1))
		if err != nil {
			return Entry{}, errors.NewDecodeError(index, name, fieldError(err))
		}
		entry.Fields[i] = s
	}
	return entry, nil
}

func decodeTimestamp(index int, value []byte) (int64, error) {
	ts, err := jsonparser.GetInt(value, "[0]")
	if err != nil {
		return 0, errors.NewDecodeError(index, "timestamp", fieldError(err))
	}
	if ts < minTimestampMs {
		return 0, errors.NewDecodeError(index, "timestamp", errors.ErrInvalidTimestamp)
	}
	return ts, nil
}

// DecodeTraces decodes a trace report; each tuple is
// [timestamp_ms, file, line, level, object, text] and line must be nonzero.
func DecodeTraces(body []byte) (*TraceBatch, error) {
	h, err := decodeHeader(body)
	if err != nil {
		reject(constants.SectionTraces, err)
		return nil, err
	}
	items, err := section(body, h.app, constants.SectionTraces)
	if err != nil {
		reject(constants.SectionTraces, err)
		return nil, err
	}

	batch := &TraceBatch{Host: h.host, App: h.app}
	index := 0
	_, err = jsonparser.ArrayEach(items, func(value []byte, dataType jsonparser.ValueType, _ int, _ error) {
		trace, err := decodeTrace(index, value, dataType, h)
		if err != nil {
			reject(constants.SectionTraces, err)
			batch.Errors = append(batch.Errors, err)
		} else {
			batch.Traces = append(batch.Traces, trace)
		}
		index++
	})
	if err != nil {
		err = errors.NewDecodeError(index, constants.SectionTraces, fmt.Errorf("%w: %v", errors.ErrMalformedJSON, err))
		reject(constants.SectionTraces, err)
		batch.Errors = append(batch.Errors, err)
	}
	return batch, nil
}

func decodeTrace(index int, value []byte, dataType jsonparser.ValueType, h header) (types.Trace, error) {
	if dataType != jsonparser.Array {
		return types.Trace{}, errors.NewDecodeError(index, "entry", errors.ErrWrongType)
	}

	ts, err := decodeTimestamp(index, value)
	if err != nil {
		return types.Trace{}, err
	}

	line, err := jsonparser.GetInt(value, "[2]")
	if err != nil {
		return types.Trace{}, errors.NewDecodeError(index, "line", fieldError(err))
	}
	if line == 0 {
		return types.Trace{}, errors.NewDecodeError(index, "line", errors.ErrMissingField)
	}

	trace := types.Trace{
		TimestampMs: ts,
		Host:        h.host,
		App:         h.app,
		Line:        int(line),
	}
	texts := []struct {
		name string
		path string
		dst  *string
	}{
		{"file", "[1]", &trace.File},
		{"level", "[3]", &trace.Level},
		{"object", "[4]", &trace.Object},
		{"text", "[5]", &trace.Text},
	}
	for _, s := range texts {
		v, err := jsonparser.GetString(value, s.path)
		if err != nil {
			return types.Trace{}, errors.NewDecodeError(index, s.name, fieldError(err))
		}
		*s.dst = v
	}
	return trace, nil
}

func reject(section string, err error) {
	metrics.DecodeRejects.WithLabelValues(section).Inc()
	log.Debug("entry rejected", "section", section, "error", err)
}
