package sst

import (
	"os"

	"github.com/dd0wney/cluso-kv/pkg/kv"
)

// InputReader streams a table's leaf range for compaction, refilling a
// bounded page buffer as the merge consumes it. Exactly one reader drives
// each source table.
type InputReader struct {
	levelOffsets []uint64
	offsetToRead uint64
	maxOffset    uint64
	capacity     uint64 // pages per refill
	buffer       []uint64
}

// NewInputReader creates a reader over the leaf pages up to and including
// maxOffset, pulling capacityPages pages per refill.
func NewInputReader(maxOffset uint64, capacityPages int) *InputReader {
	if capacityPages < 1 {
		capacityPages = 1
	}
	return &InputReader{
		maxOffset: maxOffset,
		capacity:  uint64(capacityPages),
	}
}

// ObtainOffset reads the table's metadata and positions the reader at the
// first leaf page.
func (r *InputReader) ObtainOffset(f *os.File) {
	r.levelOffsets = ReadLevelOffsets(f)
	if len(r.levelOffsets) > 0 {
		r.offsetToRead = r.levelOffsets[len(r.levelOffsets)-1]
	}
}

// Refill replaces the buffer with the next run of leaf pages. The buffer
// is left empty once the leaf range is exhausted.
func (r *InputReader) Refill(f *os.File) {
	r.buffer = nil
	if r.offsetToRead > r.maxOffset {
		return
	}
	n := r.capacity
	if remain := r.maxOffset - r.offsetToRead + 1; remain < n {
		n = remain
	}
	r.buffer = readPages(f, r.offsetToRead, n)
	r.offsetToRead += n
}

// Entry decodes the pair at word index i of the buffer.
func (r *InputReader) Entry(i int) kv.Entry {
	return kv.Entry{Key: r.buffer[i], Value: r.buffer[i+1]}
}

// Len returns the buffered word count.
func (r *InputReader) Len() int { return len(r.buffer) }

// ScanInputReader is the per-table cursor of an LSM range scan. It is
// positioned once at the leaf page holding the scan's first key and then
// only moves forward as keys are consumed.
type ScanInputReader struct {
	capacity     uint64
	buffer       []uint64
	keys         []uint64
	offsetToRead uint64
	endOffset    uint64
	startIndex   int
	done         bool
}

// NewScanInputReader creates a cursor that pulls capacityPages pages per
// refill. The leaf range is set lazily by the first scan step.
func NewScanInputReader(capacityPages int) *ScanInputReader {
	if capacityPages < 1 {
		capacityPages = 1
	}
	return &ScanInputReader{
		capacity:  uint64(capacityPages),
		endOffset: kv.Invalid,
	}
}

// RangeSet reports whether the leaf range has been positioned.
func (r *ScanInputReader) RangeSet() bool { return r.endOffset != kv.Invalid }

// SetRange positions the cursor on [start, end] leaf pages and primes the
// buffer.
func (r *ScanInputReader) SetRange(start, end uint64, f *os.File) {
	r.offsetToRead = start
	r.endOffset = end
	r.refill(f)
}

func (r *ScanInputReader) refill(f *os.File) {
	r.buffer = nil
	r.keys = nil
	if r.offsetToRead > r.endOffset {
		r.done = true
		return
	}
	n := r.capacity
	if remain := r.endOffset - r.offsetToRead + 1; remain < n {
		n = remain
	}
	r.buffer = readPages(f, r.offsetToRead, n)
	r.offsetToRead += n
	r.keys = kv.Keys(r.buffer)
	r.startIndex = 0
	if len(r.keys) == 0 {
		r.done = true
	}
}

// FindKey advances the cursor to key and returns its pair, with value
// kv.Invalid when this table does not hold the key. The cursor never
// rewinds; keys must be probed in ascending order.
func (r *ScanInputReader) FindKey(key uint64, f *os.File) kv.Entry {
	entry := kv.Entry{Key: key, Value: kv.Invalid}
	i := kv.CeilSearch(r.keys, key, r.startIndex)
	for i >= len(r.keys) {
		r.refill(f)
		if len(r.keys) == 0 {
			return entry
		}
		i = kv.CeilSearch(r.keys, key, r.startIndex)
	}
	r.startIndex = i
	if r.keys[i] == key {
		entry.Value = r.buffer[2*i+1]
	}
	return entry
}

// Len returns the buffered word count.
func (r *ScanInputReader) Len() int { return len(r.buffer) }

// Done reports that the cursor has passed its last leaf page.
func (r *ScanInputReader) Done() bool { return r.done }
