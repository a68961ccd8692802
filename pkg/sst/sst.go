// Package sst implements the sorted-string-table codec: an immutable paged
// file holding one sorted run of u64 key-value pairs, indexed by a static
// B-tree with an optional Bloom filter appended after the leaves.
//
// File layout (4096-byte pages):
//
//	page 0        metadata: num_levels | level_start[0..L-1] | bloom_pages | bloom_start
//	pages 1..     internal B-tree levels, root first; 512 fence keys per page
//	pages L..M    leaf level: 256 KV pairs per page, sentinel-terminated
//	pages M+1..   bloom filter words, MSB-first bits, little-endian u64s
//
// The metadata page is written last, after every data page, so end-of-file
// always reflects the true layout. Unused page slack carries the Invalid
// sentinel and readers stop at the first one.
package sst

import (
	"fmt"
	"os"

	"github.com/dd0wney/cluso-kv/pkg/bloom"
	"github.com/dd0wney/cluso-kv/pkg/kv"
)

// Extension is the on-disk suffix for every table file.
const Extension = ".sst"

// SST is one table file. The struct carries write-side state (the B-tree
// level accumulators) while the file is being produced; afterwards it is a
// read-only handle. File descriptors are opened per operation and released
// on every exit path.
type SST struct {
	path         string
	dataByteSize uint64 // leaf payload bytes; an upper bound until finalized
	filter       *bloom.Filter

	levels      []*btreeLevel // root first; last entry is the leaf level
	maxLeafPage uint64        // page index of the final leaf page
}

// New creates a handle for a table that will hold dataByteSize bytes of
// leaf data. filter may be nil for tables without a Bloom filter.
func New(path string, dataByteSize uint64, filter *bloom.Filter) *SST {
	return &SST{
		path:         path,
		dataByteSize: dataByteSize,
		filter:       filter,
	}
}

// Path returns the table's file path.
func (s *SST) Path() string { return s.path }

// DataByteSize returns the leaf payload size in bytes.
func (s *SST) DataByteSize() uint64 { return s.dataByteSize }

// SetDataByteSize records the exact payload size once a streaming write
// knows its final page count.
func (s *SST) SetDataByteSize(n uint64) { s.dataByteSize = n }

// Filter returns the table's Bloom filter, or nil.
func (s *SST) Filter() *bloom.Filter { return s.filter }

// MaxLeafPage returns the page index of the last leaf page.
func (s *SST) MaxLeafPage() uint64 { return s.maxLeafPage }

// PageID forms the buffer-pool identity of one page of this table.
func (s *SST) PageID(pageIndex uint64) string {
	return fmt.Sprintf("%s-%d", s.path, pageIndex)
}

// SetupBTree sizes the B-tree for the declared payload: it computes the
// page count of every level bottom-up and records each level's starting
// page, with the root always at page 1.
func (s *SST) SetupBTree() {
	leafPages := (s.dataByteSize + kv.PageSize - 1) / kv.PageSize
	if leafPages == 0 {
		leafPages = 1
	}
	offsets := s.levelPageOffsets(leafPages)

	s.levels = make([]*btreeLevel, 0, len(offsets))
	for _, off := range offsets {
		s.levels = append(s.levels, newBTreeLevel(off*kv.PageSize))
	}
}

// levelPageOffsets returns the starting page index of every B-tree level,
// root first, and records the last leaf page index.
func (s *SST) levelPageOffsets(leafPages uint64) []uint64 {
	sizes := []uint64{leafPages}
	for n := leafPages; n > 1; {
		n = (n + kv.WordsPerPage - 1) / kv.WordsPerPage
		sizes = append(sizes, n)
	}

	offsets := make([]uint64, 0, len(sizes))
	var pagesSoFar uint64 = 1 // page 0 is metadata
	offsets = append(offsets, pagesSoFar)
	for i := len(sizes) - 1; i > 0; i-- {
		pagesSoFar += sizes[i]
		offsets = append(offsets, pagesSoFar)
	}
	s.maxLeafPage = pagesSoFar + sizes[0] - 1
	return offsets
}

// Open rebuilds a read handle for an existing B-tree table by decoding its
// metadata page. filter supplies the probe configuration for the stored
// Bloom snapshot; pass nil when the table has none.
func Open(path string, filter *bloom.Filter) (*SST, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	meta := readPages(f, 0, 1)
	if len(meta) < 2 {
		return nil, fmt.Errorf("sst %s: short metadata page", path)
	}
	numLevels := meta[0]
	if numLevels == 0 || uint64(len(meta)) < numLevels+1 {
		return nil, fmt.Errorf("sst %s: malformed metadata", path)
	}

	leafStart := meta[numLevels]
	var maxLeaf uint64
	if uint64(len(meta)) >= numLevels+3 && meta[numLevels+1] > 0 {
		// A filter follows the leaves; it starts right after them.
		maxLeaf = meta[numLevels+2] - 1
	} else {
		st, err := f.Stat()
		if err != nil {
			return nil, err
		}
		maxLeaf = uint64(st.Size()+kv.PageSize-1)/kv.PageSize - 1
	}

	s := New(path, (maxLeaf-leafStart+1)*kv.PageSize, filter)
	s.maxLeafPage = maxLeaf
	return s, nil
}
