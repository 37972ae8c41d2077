// Package constants provides centralized domain-specific constants
// for the entire saga application.
//
// This file consolidates the record kind names, storage headers and
// JSON section names shared by the engine, the writer and the HTTP layer.
package constants

// =============================================================================
// Service Identity
// =============================================================================

const (
	// AppName is the application name used for self-originated records and
	// in the "apps" list of poll responses.
	AppName = "saga"

	// RoutePrefix is the application-scoped URL prefix. Every route is also
	// served without it.
	RoutePrefix = "/saga"
)

// =============================================================================
// Storage Kinds - Base names of the per-day files
// =============================================================================

const (
	// KindEvent stores operational events.
	KindEvent = "event"

	// KindSensor stores sensor samples.
	KindSensor = "sensor"

	// KindTrace stores diagnostic traces, written unbuffered.
	KindTrace = "trace"

	// KindMetrics stores raw metrics documents, one per line.
	KindMetrics = "metrics"
)

// =============================================================================
// Storage Headers - First line of a new file
// =============================================================================

const (
	EventHeader  = "TIMESTAMP,HOST,APP,CATEGORY,OBJECT,ACTION,DESCRIPTION"
	SensorHeader = "TIMESTAMP,HOST,APP,LOCATION,NAME,VALUE,UNIT"
	TraceHeader  = "TIMESTAMP,HOST,APP,LEVEL,FILE,LINE,OBJECT,DESCRIPTION"
)

// =============================================================================
// JSON Sections - Per-app array names in source reports and poll responses
// =============================================================================

const (
	SectionEvents = "events"
	SectionSensor = "sensor"
	SectionTraces = "traces"
)

// =============================================================================
// Trace Levels
// =============================================================================

const (
	TraceInfo    = "INFO"
	TraceWarning = "WARNING"
	TraceFailure = "FAILURE"
)
