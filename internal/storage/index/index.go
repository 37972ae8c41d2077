// Package index provides the chronological index of a consolidation engine:
// an ordered multimap from a millisecond timestamp to a buffer slot.
//
// Entries with equal timestamps are kept in insertion order. Each entry is
// stored in a skiplist under a composite (timestamp, sequence) key, so the
// sequence number breaks ties and makes every key unique.
package index

import (
	"github.com/ryszard/goskiplist/skiplist"
)

// Visitor is called for each visited entry. Returning false stops the
// traversal without visiting the remaining entries.
type Visitor func(key int64, ref int) bool

type entryKey struct {
	ms  int64
	seq uint64
}

func lessThan(l, r interface{}) bool {
	a, b := l.(entryKey), r.(entryKey)
	if a.ms != b.ms {
		return a.ms < b.ms
	}
	return a.seq < b.seq
}

// Chronology is an ordered multimap from timestamp key to slot reference.
// It is not safe for concurrent use.
type Chronology struct {
	list *skiplist.SkipList
	seq  uint64
}

// New creates an empty Chronology.
func New() *Chronology {
	return &Chronology{
		list: skiplist.NewCustomMap(lessThan),
	}
}

// Len returns the number of entries.
func (c *Chronology) Len() int {
	return c.list.Len()
}

// Insert adds the (key, ref) pair. Duplicate keys are allowed.
func (c *Chronology) Insert(key int64, ref int) {
	c.seq++
	c.list.Set(entryKey{ms: key, seq: c.seq}, ref)
}

// Remove deletes the (key, ref) pair and reports whether it was present.
func (c *Chronology) Remove(key int64, ref int) bool {
	it := c.list.Seek(entryKey{ms: key})
	if it == nil {
		return false
	}

	var found *entryKey
	for {
		k := it.Key().(entryKey)
		if k.ms != key {
			break
		}
		if it.Value().(int) == ref {
			found = &k
			break
		}
		if !it.Next() {
			break
		}
	}
	it.Close()

	if found == nil {
		return false
	}
	c.list.Delete(*found)
	return true
}

// AscendFrom visits entries with key >= from in increasing key order.
func (c *Chronology) AscendFrom(from int64, visit Visitor) {
	c.ascend(c.list.Seek(entryKey{ms: from}), visit)
}

// AscendAll visits every entry in increasing key order.
func (c *Chronology) AscendAll(visit Visitor) {
	c.ascend(c.list.SeekToFirst(), visit)
}

func (c *Chronology) ascend(it skiplist.Iterator, visit Visitor) {
	if it == nil {
		return
	}
	defer it.Close()

	for {
		if !visit(it.Key().(entryKey).ms, it.Value().(int)) {
			return
		}
		if !it.Next() {
			return
		}
	}
}

// DescendAll visits every entry in decreasing key order. Entries sharing
// a key are visited newest insertion first.
func (c *Chronology) DescendAll(visit Visitor) {
	it := c.list.SeekToLast()
	if it == nil {
		return
	}
	defer it.Close()

	for {
		if !visit(it.Key().(entryKey).ms, it.Value().(int)) {
			return
		}
		if !it.Previous() {
			return
		}
	}
}
