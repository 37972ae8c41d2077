// Package types defines the core data types used throughout the storage system.
//
// Key types:
//   - Record: one event or sensor sample held by a consolidation engine
//   - Kind: the per-kind descriptor (storage name, header, field limits)
//   - Trace: a diagnostic trace, written straight to storage
package types
