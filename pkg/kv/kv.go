// Package kv holds the primitive types shared by every layer of the store:
// 64-bit keys and values, the reserved sentinels, page geometry, and the
// word-level page codec used by the SST files and the buffer pool.
package kv

import (
	"encoding/binary"
	"sort"
)

const (
	// Invalid marks an absent value. It doubles as the page padding
	// sentinel on disk, so user values may never carry it.
	Invalid uint64 = 0xFFFFFFFFFFFFFFFF

	// Tombstone marks a deleted key; it shadows older versions of the
	// same key in deeper levels. Compaction carries it through like any
	// other value.
	Tombstone uint64 = 0xFFFFFFFFFFFFFFFE
)

const (
	// PageSize is the unit of all file I/O, in bytes.
	PageSize = 4096

	// KeyByteSize is the encoded size of one key or one value.
	KeyByteSize = 8

	// PairByteSize is the encoded size of one key-value pair.
	PairByteSize = 16

	// PairsPerPage is how many key-value pairs fit in one page.
	PairsPerPage = PageSize / PairByteSize // 256

	// WordsPerPage is how many u64 words fit in one page.
	WordsPerPage = PageSize / KeyByteSize // 512
)

// Entry is one key-value pair.
type Entry struct {
	Key   uint64
	Value uint64
}

// IsUserValue reports whether v is storable by a client. The two top
// values are reserved.
func IsUserValue(v uint64) bool {
	return v < Tombstone
}

// CeilSearch returns the smallest index i in keys[start:] with
// keys[i] >= key, relative to the whole slice. It returns len(keys) when
// every key is smaller. keys must be sorted ascending.
func CeilSearch(keys []uint64, key uint64, start int) int {
	if start >= len(keys) {
		return len(keys)
	}
	return start + sort.Search(len(keys)-start, func(i int) bool {
		return keys[start+i] >= key
	})
}

// Keys extracts the keys out of a leaf page's words, where keys sit at
// even indexes and values at odd ones.
func Keys(words []uint64) []uint64 {
	keys := make([]uint64, 0, len(words)/2)
	for i := 0; i+1 < len(words); i += 2 {
		keys = append(keys, words[i])
	}
	return keys
}

// WordsToBytes encodes words as little-endian u64s.
func WordsToBytes(words []uint64) []byte {
	buf := make([]byte, len(words)*KeyByteSize)
	for i, w := range words {
		binary.LittleEndian.PutUint64(buf[i*KeyByteSize:], w)
	}
	return buf
}

// BytesToWords decodes little-endian u64s. Trailing bytes short of a full
// word are dropped.
func BytesToWords(buf []byte) []uint64 {
	n := len(buf) / KeyByteSize
	words := make([]uint64, n)
	for i := 0; i < n; i++ {
		words[i] = binary.LittleEndian.Uint64(buf[i*KeyByteSize:])
	}
	return words
}
