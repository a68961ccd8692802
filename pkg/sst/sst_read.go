package sst

import (
	"os"

	"github.com/dd0wney/cluso-kv/pkg/kv"
)

// FindBTree looks key up through the static B-tree, returning kv.Invalid
// when the key is absent or the file is unreadable. With useBloom set the
// stored filter snapshot is consulted first and can reject the lookup
// without touching the tree.
func (s *SST) FindBTree(key uint64, cache PageCache, useBloom bool) uint64 {
	f, err := os.Open(s.path)
	if err != nil {
		return kv.Invalid
	}
	defer f.Close()

	meta := s.getPage(cache, f, 0)
	if len(meta) == 0 {
		return kv.Invalid
	}
	numLevels := meta[0]
	if numLevels == 0 || uint64(len(meta)) < numLevels+1 {
		return kv.Invalid
	}

	if useBloom && s.filter != nil && uint64(len(meta)) >= numLevels+3 {
		filterPages := meta[numLevels+1]
		filterStart := meta[numLevels+2]
		if filterPages > 0 {
			words := s.getFilterPages(cache, f, filterStart, filterPages)
			if !s.filter.Contains(key, words) {
				return kv.Invalid
			}
		}
	}

	return s.findInBTree(f, key, cache, meta[1:numLevels+1])
}

// findInBTree descends the fence-key levels. At each internal page the
// smallest fence >= key selects the child; the child's page index within
// the next level is pageInLevel*512 + i.
func (s *SST) findInBTree(f *os.File, key uint64, cache PageCache, levelOffsets []uint64) uint64 {
	offset := levelOffsets[0]
	var pageInLevel uint64
	for lvl := 0; lvl < len(levelOffsets); lvl++ {
		data := s.getPage(cache, f, offset)
		if len(data) == 0 {
			return kv.Invalid
		}

		if lvl == len(levelOffsets)-1 {
			keys := kv.Keys(data)
			i := kv.CeilSearch(keys, key, 0)
			if i < len(keys) && keys[i] == key {
				return data[i*2+1]
			}
			return kv.Invalid
		}

		i := kv.CeilSearch(data, key, 0)
		if i >= len(data) {
			// Every fence is smaller: the key is beyond this subtree.
			return kv.Invalid
		}
		pageInLevel = pageInLevel*kv.WordsPerPage + uint64(i)
		offset = levelOffsets[lvl+1] + pageInLevel
	}
	return kv.Invalid
}

// ScanLeavesStart descends the tree with key1 as target and returns the
// page index of the leaf page where a range scan should begin.
func (s *SST) ScanLeavesStart(f *os.File, key1 uint64) uint64 {
	levelOffsets := ReadLevelOffsets(f)
	if len(levelOffsets) == 0 {
		return s.maxLeafPage + 1 // nothing to scan
	}

	offset := levelOffsets[0]
	var pageInLevel uint64
	for lvl := 0; lvl < len(levelOffsets)-1; lvl++ {
		data := readPages(f, offset, 1)
		if len(data) == 0 {
			break
		}
		i := kv.CeilSearch(data, key1, 0)
		// An index one past the last fence still advances to the slot
		// after the subtree; the scan simply starts beyond its keys.
		offset = levelOffsets[lvl+1] + pageInLevel*kv.WordsPerPage + uint64(i)
		if i >= len(data) {
			i = len(data) - 1
		}
		pageInLevel = pageInLevel*kv.WordsPerPage + uint64(i)
	}
	return offset
}

// ScanBTree appends every pair with key1 <= key <= key2 to out, reading
// leaf pages sequentially from the descent point. Scans do not consult
// the Bloom filter.
func (s *SST) ScanBTree(key1, key2 uint64, out []kv.Entry) []kv.Entry {
	f, err := os.Open(s.path)
	if err != nil {
		return out
	}
	defer f.Close()

	maxLeaf := s.ensureMaxLeafPage(f)
	for offset := s.ScanLeavesStart(f, key1); offset <= maxLeaf; offset++ {
		data := readPages(f, offset, 1)
		for i := 0; i+1 < len(data); i += 2 {
			if data[i] > key2 {
				return out
			}
			if data[i] >= key1 {
				out = append(out, kv.Entry{Key: data[i], Value: data[i+1]})
			}
		}
	}
	return out
}

// ensureMaxLeafPage derives the last leaf page for handles reopened
// without write-side state.
func (s *SST) ensureMaxLeafPage(f *os.File) uint64 {
	if s.maxLeafPage != 0 {
		return s.maxLeafPage
	}
	meta := readPages(f, 0, 1)
	if len(meta) < 2 {
		return 0
	}
	numLevels := meta[0]
	if uint64(len(meta)) >= numLevels+3 && meta[numLevels+1] > 0 {
		s.maxLeafPage = meta[numLevels+2] - 1
	} else if st, err := f.Stat(); err == nil {
		s.maxLeafPage = uint64(st.Size()+kv.PageSize-1)/kv.PageSize - 1
	}
	return s.maxLeafPage
}

// FindFlat performs the page-level binary search of the legacy format:
// probe the first and last pages to reject out-of-range keys early, then
// converge on the page that could hold the key.
func (s *SST) FindFlat(key uint64, cache PageCache) uint64 {
	f, err := os.Open(s.path)
	if err != nil {
		return kv.Invalid
	}
	defer f.Close()

	numPages := int((s.dataByteSize + kv.PageSize - 1) / kv.PageSize)
	if numPages == 0 {
		return kv.Invalid
	}

	start, end := 0, numPages-1
	offset := start
	for start <= end {
		if start > 0 && end < numPages-1 {
			offset = start + (end-start)/2
		} else if start > 0 && end == numPages-1 {
			offset = end
		}

		data := s.getPage(cache, f, uint64(offset))
		if len(data) == 0 {
			break
		}
		keys := kv.Keys(data)

		switch {
		case key < keys[0]:
			end = offset - 1
		case key > keys[len(keys)-1]:
			start = offset + 1
		default:
			i := kv.CeilSearch(keys, key, 0)
			if i < len(keys) && keys[i] == key {
				return data[i*2+1]
			}
			return kv.Invalid
		}
	}
	return kv.Invalid
}

// ScanFlat appends every pair in [key1, key2] from a legacy flat file,
// walking its pages in order and stopping once keys pass key2.
func (s *SST) ScanFlat(key1, key2 uint64, out []kv.Entry) []kv.Entry {
	f, err := os.Open(s.path)
	if err != nil {
		return out
	}
	defer f.Close()

	numPages := (s.dataByteSize + kv.PageSize - 1) / kv.PageSize
	for offset := uint64(0); offset < numPages; offset++ {
		data := readPages(f, offset, 1)
		if len(data) == 0 {
			return out
		}
		if len(data) >= 2 && data[len(data)-2] < key1 {
			continue // whole page precedes the range
		}
		for i := 0; i+1 < len(data); i += 2 {
			if data[i] > key2 {
				return out
			}
			if data[i] >= key1 {
				out = append(out, kv.Entry{Key: data[i], Value: data[i+1]})
			}
		}
	}
	return out
}
