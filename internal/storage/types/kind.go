package types

import "github.com/xtxerr/saga/internal/constants"

// Kind describes one record kind handled by a consolidation engine.
type Kind struct {
	// Name is the storage kind, used as the file base name.
	Name string

	// Section is the JSON array name in source reports and poll responses.
	Section string

	// Header is written once at the top of a new storage file.
	Header string

	// FieldNames and Limits describe Fields, in wire order.
	FieldNames [4]string
	Limits     [4]int
}

// EventKind describes operational events.
var EventKind = Kind{
	Name:       constants.KindEvent,
	Section:    constants.SectionEvents,
	Header:     constants.EventHeader,
	FieldNames: [4]string{"category", "object", "action", "description"},
	Limits:     [4]int{31, 31, 15, 127},
}

// SensorKind describes sensor samples.
var SensorKind = Kind{
	Name:       constants.KindSensor,
	Section:    constants.SectionSensor,
	Header:     constants.SensorHeader,
	FieldNames: [4]string{"location", "name", "value", "unit"},
	Limits:     [4]int{31, 31, 15, 15},
}

// Row formats r as one storage line: timestamp, host, app, then the fields.
func (k *Kind) Row(r *Record) string {
	return FormatRow(FormatTimestamp(r.TimestampMs), r.Host, r.App,
		r.Fields[0], r.Fields[1], r.Fields[2], r.Fields[3])
}
