package buffer

import (
	"github.com/xtxerr/saga/internal/storage/types"
)

// slot is one buffer cell. occupied is tracked explicitly so that a
// record with a zero timestamp is not mistaken for an empty cell.
type slot struct {
	record   types.Record
	occupied bool
}

// RecordBuffer is a fixed-capacity circular buffer of record slots.
// Writes always land on the cursor and overwrite whatever was there; the
// owner decides what to do with the previous occupant before writing.
//
// RecordBuffer is not safe for concurrent use. Its owner serializes access.
type RecordBuffer struct {
	data   []slot
	cursor int // Next write position
	count  int // Occupied slots

	// Statistics
	writes     int64
	overwrites int64
}

// New creates a new RecordBuffer with the given capacity.
func New(capacity int) *RecordBuffer {
	if capacity <= 0 {
		capacity = 256
	}
	return &RecordBuffer{
		data: make([]slot, capacity),
	}
}

// Write stores record at the cursor, advances the cursor and returns the
// index written.
func (rb *RecordBuffer) Write(record types.Record) int {
	idx := rb.cursor
	s := &rb.data[idx]
	if s.occupied {
		rb.overwrites++
	} else {
		rb.count++
	}
	s.record = record
	s.occupied = true

	rb.cursor = (rb.cursor + 1) % len(rb.data)
	rb.writes++
	return idx
}

// Cursor returns the index the next Write will use.
func (rb *RecordBuffer) Cursor() int {
	return rb.cursor
}

// SlotAt returns the record stored at index and whether the slot is occupied.
// The pointer stays valid until the slot is cleared or overwritten.
func (rb *RecordBuffer) SlotAt(index int) (*types.Record, bool) {
	if index < 0 || index >= len(rb.data) {
		return nil, false
	}
	s := &rb.data[index]
	if !s.occupied {
		return nil, false
	}
	return &s.record, true
}

// Clear empties the slot at index.
func (rb *RecordBuffer) Clear(index int) {
	if index < 0 || index >= len(rb.data) {
		return
	}
	s := &rb.data[index]
	if s.occupied {
		rb.count--
	}
	*s = slot{}
}

// Len returns the current number of occupied slots.
func (rb *RecordBuffer) Len() int {
	return rb.count
}

// Cap returns the capacity of the buffer.
func (rb *RecordBuffer) Cap() int {
	return len(rb.data)
}

// IsEmpty returns true if no slot is occupied.
func (rb *RecordBuffer) IsEmpty() bool {
	return rb.count == 0
}

// IsFull returns true if every slot is occupied.
func (rb *RecordBuffer) IsFull() bool {
	return rb.count >= len(rb.data)
}

// Stats returns buffer statistics.
func (rb *RecordBuffer) Stats() BufferStats {
	return BufferStats{
		Capacity:   len(rb.data),
		Count:      rb.count,
		UsageRatio: float64(rb.count) / float64(len(rb.data)),
		Writes:     rb.writes,
		Overwrites: rb.overwrites,
	}
}

// BufferStats holds buffer statistics.
type BufferStats struct {
	Capacity   int
	Count      int
	UsageRatio float64
	Writes     int64
	Overwrites int64
}
