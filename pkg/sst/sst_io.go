package sst

import (
	"io"
	"os"

	"github.com/dd0wney/cluso-kv/pkg/kv"
)

// PageCache is the read-through cache SST lookups go through. Get returns
// nil on a miss. Implementations own the cached bytes; callers must not
// retain the returned slice across cache mutations, so the buffer pool
// hands out copies.
type PageCache interface {
	Get(pageID string) []uint64
	Insert(pageID string, words []uint64)
}

// readPages reads numPages pages starting at page pageOffset and decodes
// them as u64 words, stopping at the first Invalid sentinel. A short read
// at end of file yields the words that were present; any failure yields
// nil.
func readPages(f *os.File, pageOffset, numPages uint64) []uint64 {
	words := readPagesRaw(f, pageOffset, numPages)
	for i, w := range words {
		if w == kv.Invalid {
			return words[:i]
		}
	}
	return words
}

// readPagesRaw is readPages without sentinel trimming; the Bloom filter
// region is raw bits and may legitimately contain the sentinel pattern.
func readPagesRaw(f *os.File, pageOffset, numPages uint64) []uint64 {
	buf := make([]byte, numPages*kv.PageSize)
	n, err := f.ReadAt(buf, int64(pageOffset*kv.PageSize))
	if err != nil && err != io.EOF {
		return nil
	}
	if n == 0 {
		return nil
	}
	return kv.BytesToWords(buf[:n])
}

// getPage fetches one page through the cache, reading and caching it on a
// miss.
func (s *SST) getPage(cache PageCache, f *os.File, pageOffset uint64) []uint64 {
	id := s.PageID(pageOffset)
	if cache != nil {
		if words := cache.Get(id); len(words) > 0 {
			return words
		}
	}
	words := readPages(f, pageOffset, 1)
	if cache != nil && len(words) > 0 {
		cache.Insert(id, words)
	}
	return words
}

// getFilterPages fetches the whole Bloom filter region through the cache
// under a single page identity.
func (s *SST) getFilterPages(cache PageCache, f *os.File, pageOffset, numPages uint64) []uint64 {
	id := s.PageID(pageOffset)
	if cache != nil {
		if words := cache.Get(id); len(words) > 0 {
			return words
		}
	}
	words := readPagesRaw(f, pageOffset, numPages)
	if cache != nil && len(words) > 0 {
		cache.Insert(id, words)
	}
	return words
}

func writeWordsAt(f *os.File, byteOffset uint64, words []uint64) error {
	_, err := f.WriteAt(kv.WordsToBytes(words), int64(byteOffset))
	return err
}

func writeEntriesAt(f *os.File, byteOffset uint64, entries []kv.Entry) error {
	words := make([]uint64, 0, len(entries)*2)
	for _, e := range entries {
		words = append(words, e.Key, e.Value)
	}
	return writeWordsAt(f, byteOffset, words)
}

// writeSentinelAt terminates a partial page with one Invalid word.
func writeSentinelAt(f *os.File, byteOffset uint64) error {
	return writeWordsAt(f, byteOffset, []uint64{kv.Invalid})
}

// ReadLevelOffsets decodes the starting page index of every B-tree level
// from the metadata page, root first. Nil means the page was unreadable.
func ReadLevelOffsets(f *os.File) []uint64 {
	meta := readPages(f, 0, 1)
	if len(meta) == 0 {
		return nil
	}
	numLevels := meta[0]
	if numLevels == 0 || uint64(len(meta)) < numLevels+1 {
		return nil
	}
	return meta[1 : numLevels+1]
}
