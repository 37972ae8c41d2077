package buffer

import (
	"testing"

	"github.com/xtxerr/saga/internal/storage/types"
)

func TestRecordBuffer_Basic(t *testing.T) {
	rb := New(10)

	if rb.Cap() != 10 {
		t.Errorf("expected capacity=10, got %d", rb.Cap())
	}

	if !rb.IsEmpty() {
		t.Error("new buffer should be empty")
	}

	if rb.IsFull() {
		t.Error("new buffer should not be full")
	}

	if _, ok := rb.SlotAt(0); ok {
		t.Error("slot 0 of a new buffer should be empty")
	}
}

func TestRecordBuffer_DefaultCapacity(t *testing.T) {
	if New(0).Cap() != 256 {
		t.Error("non-positive capacity should default to 256")
	}
}

func TestRecordBuffer_WriteAdvancesCursor(t *testing.T) {
	rb := New(3)

	for i := 0; i < 3; i++ {
		idx := rb.Write(types.Record{TimestampMs: int64(1000 * (i + 1)), ID: int64(i + 1)})
		if idx != i {
			t.Errorf("write %d: expected index %d, got %d", i, i, idx)
		}
	}

	if rb.Cursor() != 0 {
		t.Errorf("cursor should wrap to 0, got %d", rb.Cursor())
	}
	if !rb.IsFull() {
		t.Error("buffer should be full")
	}

	rec, ok := rb.SlotAt(1)
	if !ok || rec.ID != 2 {
		t.Errorf("slot 1: expected id 2, got %+v (occupied=%v)", rec, ok)
	}
}

func TestRecordBuffer_Overwrite(t *testing.T) {
	rb := New(2)

	rb.Write(types.Record{TimestampMs: 1000, ID: 1})
	rb.Write(types.Record{TimestampMs: 2000, ID: 2})
	idx := rb.Write(types.Record{TimestampMs: 3000, ID: 3})

	if idx != 0 {
		t.Errorf("third write should reuse slot 0, got %d", idx)
	}
	if rb.Len() != 2 {
		t.Errorf("expected len=2, got %d", rb.Len())
	}

	rec, _ := rb.SlotAt(0)
	if rec.ID != 3 {
		t.Errorf("slot 0 should hold id 3, got %d", rec.ID)
	}

	stats := rb.Stats()
	if stats.Writes != 3 || stats.Overwrites != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestRecordBuffer_Clear(t *testing.T) {
	rb := New(4)
	rb.Write(types.Record{TimestampMs: 1000, ID: 1})
	rb.Write(types.Record{TimestampMs: 2000, ID: 2})

	rb.Clear(0)
	rb.Clear(0) // no-op on an empty slot
	rb.Clear(99)

	if rb.Len() != 1 {
		t.Errorf("expected len=1, got %d", rb.Len())
	}
	if _, ok := rb.SlotAt(0); ok {
		t.Error("slot 0 should be empty after Clear")
	}
}

func TestRecordBuffer_ZeroTimestampIsOccupied(t *testing.T) {
	rb := New(2)
	idx := rb.Write(types.Record{TimestampMs: 0, ID: 7})

	if _, ok := rb.SlotAt(idx); !ok {
		t.Error("a record with a zero timestamp must still occupy its slot")
	}
}

func TestRecordBuffer_MutateInPlace(t *testing.T) {
	rb := New(2)
	idx := rb.Write(types.Record{TimestampMs: 1000, ID: 1, Unsaved: true})

	rec, _ := rb.SlotAt(idx)
	rec.Unsaved = false

	again, _ := rb.SlotAt(idx)
	if again.Unsaved {
		t.Error("mutation through SlotAt pointer should persist")
	}
}
