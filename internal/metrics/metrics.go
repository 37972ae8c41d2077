// Package metrics holds the Prometheus instrumentation of the saga daemon.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var namespace = "house"
var subsystem = "saga"

var (
	// RecordsIngested counts records accepted by a consolidation engine.
	RecordsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "records_ingested_total",
		Help:      "Records accepted by a consolidation engine, by kind",
	}, []string{"kind"})

	// RecordsSaved counts records appended to storage by a save pass.
	RecordsSaved = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "records_saved_total",
		Help:      "Records appended to storage by a save pass, by kind",
	}, []string{"kind"})

	// ForcedSaves counts out-of-policy save passes triggered by eviction.
	ForcedSaves = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "forced_saves_total",
		Help:      "Save passes forced by the eviction of an unsaved record, by kind",
	}, []string{"kind"})

	// Evictions counts records removed from memory by slot reuse.
	Evictions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "evictions_total",
		Help:      "Records evicted from the in-memory buffer, by kind",
	}, []string{"kind"})

	// LateArrivals counts records older than the save watermark on arrival.
	LateArrivals = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "late_arrivals_total",
		Help:      "Records that arrived older than the save watermark, by kind",
	}, []string{"kind"})

	// ResidentRecords reports the records currently held in memory.
	ResidentRecords = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "resident_records",
		Help:      "Records currently held in memory, by kind",
	}, []string{"kind"})

	// DecodeRejects counts source records or batches dropped by the decoder.
	DecodeRejects = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "decode_rejects_total",
		Help:      "Source records or batches dropped at decode, by section",
	}, []string{"section"})

	// StorageFailures counts dropped storage writes.
	StorageFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "storage_failures_total",
		Help:      "Storage writes dropped because a file could not be opened or written, by kind",
	}, []string{"kind"})

	// StorageRows counts rows appended to storage files.
	StorageRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "storage_rows_total",
		Help:      "Rows appended to storage files, by kind",
	}, []string{"kind"})

	// RequestDuration stores the processing time of HTTP requests by route.
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "request_duration_seconds",
		Help:      "HTTP request processing time, by route",
	}, []string{"route"})
)
