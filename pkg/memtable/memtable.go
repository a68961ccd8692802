// Package memtable is the in-memory write buffer: a bounded red-black tree
// that accepts puts until it reaches capacity and drains as a sorted run.
package memtable

import "github.com/dd0wney/cluso-kv/pkg/kv"

// Memtable buffers recent writes in key order. A Put of an existing key
// overwrites in place; once the table holds maxEntries keys every Put, of a
// new or an existing key, is rejected, which signals the owner to flush.
type Memtable struct {
	tree       *rbTree
	maxEntries int
}

// New creates a memtable bounded at maxEntries distinct keys.
func New(maxEntries int) *Memtable {
	return &Memtable{
		tree:       newRBTree(),
		maxEntries: maxEntries,
	}
}

// Put inserts or overwrites key. It returns false, leaving the table
// unchanged, when the table is already full.
func (mt *Memtable) Put(key, value uint64) bool {
	if mt.tree.Size() >= mt.maxEntries {
		return false
	}
	mt.tree.Insert(key, value)
	return true
}

// Get returns the buffered value for key, or kv.Invalid.
func (mt *Memtable) Get(key uint64) uint64 {
	return mt.tree.Search(key)
}

// Scan appends every buffered entry with key1 <= key <= key2 to out in
// ascending key order.
func (mt *Memtable) Scan(key1, key2 uint64, out []kv.Entry) []kv.Entry {
	return mt.tree.Range(key1, key2, out)
}

// DrainSorted returns every buffered entry in strictly ascending key
// order. It is the canonical flush source.
func (mt *Memtable) DrainSorted() []kv.Entry {
	if mt.tree.Size() == 0 {
		return nil
	}
	out := make([]kv.Entry, 0, mt.tree.Size())
	return mt.tree.Range(mt.tree.MinKey(), mt.tree.MaxKey(), out)
}

// Reset discards all buffered entries.
func (mt *Memtable) Reset() {
	mt.tree.Clear()
}

// Len returns the number of distinct buffered keys.
func (mt *Memtable) Len() int { return mt.tree.Size() }

// Cap returns the configured capacity.
func (mt *Memtable) Cap() int { return mt.maxEntries }
