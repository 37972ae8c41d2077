package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xtxerr/saga/internal/errors"
	"github.com/xtxerr/saga/internal/storage/types"
)

func TestDecodeEvents(t *testing.T) {
	body := []byte(`{
		"host": "h1",
		"apps": ["a1"],
		"a1": {"events": [
			[1000000, "C", "O", "A", "d"],
			[1000500, "SERVICE", "a1", "STARTED", "ON \"h1\""]
		]}
	}`)

	batch, err := DecodeRecords(body, &types.EventKind)
	require.NoError(t, err)
	assert.Equal(t, "h1", batch.Host)
	assert.Equal(t, "a1", batch.App)
	assert.Empty(t, batch.Errors)
	require.Len(t, batch.Entries, 2)
	assert.Equal(t, Entry{TimestampMs: 1000000, Fields: types.Fields{"C", "O", "A", "d"}}, batch.Entries[0])
	assert.Equal(t, `ON "h1"`, batch.Entries[1].Fields[3])
}

func TestDecodeSensorSection(t *testing.T) {
	body := []byte(`{"host":"h","apps":["thermo"],"thermo":{"sensor":[[1700000000123,"attic","temp","21.5","C"]]}}`)

	batch, err := DecodeRecords(body, &types.SensorKind)
	require.NoError(t, err)
	require.Len(t, batch.Entries, 1)
	assert.Equal(t, int64(1700000000123), batch.Entries[0].TimestampMs)
	assert.Equal(t, types.Fields{"attic", "temp", "21.5", "C"}, batch.Entries[0].Fields)

	// The event section is absent from a sensor report.
	_, err = DecodeRecords(body, &types.EventKind)
	assert.ErrorIs(t, err, errors.ErrMissingField)
}

func TestDecodeRejectsBatch(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{"malformed", `{"host": "h", "apps": [`, errors.ErrMalformedJSON},
		{"not an object", `[1, 2]`, errors.ErrMalformedJSON},
		{"missing host", `{"apps":["a"],"a":{"events":[[1000000,"C","O","A","d"]]}}`, errors.ErrMissingField},
		{"host not a string", `{"host":3,"apps":["a"],"a":{"events":[]}}`, errors.ErrWrongType},
		{"missing apps", `{"host":"h","a":{"events":[]}}`, errors.ErrMissingField},
		{"empty apps", `{"host":"h","apps":[],"a":{"events":[]}}`, errors.ErrMissingField},
		{"missing section", `{"host":"h","apps":["a"],"a":{}}`, errors.ErrMissingField},
		{"section not an array", `{"host":"h","apps":["a"],"a":{"events":{}}}`, errors.ErrWrongType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batch, err := DecodeRecords([]byte(tt.body), &types.EventKind)
			require.Error(t, err)
			assert.Nil(t, batch)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, errors.IsDecode(err))
		})
	}
}

func TestDecodeSkipsBadEntries(t *testing.T) {
	body := []byte(`{"host":"h","apps":["a"],"a":{"events":[
		[1000000, "C", "O", "A", "first"],
		"not a tuple",
		[500, "C", "O", "A", "too early"],
		[1000001, "C", "O", "A"],
		[1000002, "C", 7, "A", "number"],
		["1000003", "C", "O", "A", "string time"],
		[1000004, "C", "O", "A", "last"]
	]}}`)

	batch, err := DecodeRecords(body, &types.EventKind)
	require.NoError(t, err)
	require.Len(t, batch.Entries, 2)
	assert.Equal(t, "first", batch.Entries[0].Fields[3])
	assert.Equal(t, "last", batch.Entries[1].Fields[3])

	require.Len(t, batch.Errors, 5)
	var de *errors.DecodeError
	require.True(t, errors.As(batch.Errors[0], &de))
	assert.Equal(t, 1, de.Index)
	assert.ErrorIs(t, batch.Errors[1], errors.ErrInvalidTimestamp)
	assert.ErrorIs(t, batch.Errors[2], errors.ErrMissingField)
	assert.ErrorIs(t, batch.Errors[3], errors.ErrWrongType)
}

func TestDecodeTraces(t *testing.T) {
	body := []byte(`{"host":"h","apps":["a"],"a":{"traces":[
		[1700000000000, "main.c", 42, "WARNING", "pump", "stalled"],
		[1700000000001, "main.c", 0, "INFO", "pump", "no line"],
		[1700000000002, "main.c", 43, "INFO", "pump"]
	]}}`)

	batch, err := DecodeTraces(body)
	require.NoError(t, err)
	require.Len(t, batch.Traces, 1)
	assert.Len(t, batch.Errors, 2)

	assert.Equal(t, types.Trace{
		TimestampMs: 1700000000000,
		Host:        "h",
		App:         "a",
		File:        "main.c",
		Line:        42,
		Level:       "WARNING",
		Object:      "pump",
		Text:        "stalled",
	}, batch.Traces[0])
}

func TestDecodeTracesMissingSection(t *testing.T) {
	_, err := DecodeTraces([]byte(`{"host":"h","apps":["a"],"a":{"events":[]}}`))
	assert.ErrorIs(t, err, errors.ErrMissingField)
}
