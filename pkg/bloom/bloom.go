// Package bloom implements the per-SST membership filter. The bit array is
// kept as little-endian u64 words with MSB-first bit order inside each
// word, which is exactly how the SST file stores it, so the in-memory
// array and a loaded on-disk snapshot are interchangeable.
package bloom

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"

	"github.com/dd0wney/cluso-kv/pkg/kv"
)

// Filter is a Bloom filter sized for a known maximum key count.
// False positives possible, false negatives impossible.
type Filter struct {
	numBits   uint64
	hashCount int
	words     []uint64
}

// New creates a filter with bitsPerEntry bits for each of up to maxKeys
// keys. The bit count is rounded up to a whole number of u64 words and
// the probe count is the optimal k = ceil(ln2 * bitsPerEntry).
func New(bitsPerEntry, maxKeys int) *Filter {
	if bitsPerEntry < 1 {
		bitsPerEntry = 1
	}
	if maxKeys < 1 {
		maxKeys = 1
	}
	wordCount := (uint64(bitsPerEntry)*uint64(maxKeys) + 63) / 64
	// Round the array up to whole pages so the on-disk snapshot decodes
	// to exactly the word count the probes were computed against.
	wordCount = (wordCount + kv.WordsPerPage - 1) / kv.WordsPerPage * kv.WordsPerPage
	hashCount := int(math.Ceil(math.Ln2 * float64(bitsPerEntry)))
	if hashCount < 1 {
		hashCount = 1
	}
	return &Filter{
		numBits:   wordCount * 64,
		hashCount: hashCount,
		words:     make([]uint64, wordCount),
	}
}

// Insert adds a key to the filter.
func (f *Filter) Insert(key uint64) {
	h1, h2 := probeHashes(key)
	for i := 0; i < f.hashCount; i++ {
		pos := (h1 + uint64(i)*h2) % f.numBits
		f.words[pos/64] |= 1 << (63 - pos%64)
	}
}

// InsertAll adds the key of every entry.
func (f *Filter) InsertAll(entries []kv.Entry) {
	for _, e := range entries {
		f.Insert(e.Key)
	}
}

// Contains probes the given filter array for key. The array may be this
// filter's own in-memory words or a snapshot read back from an SST file.
// Returns true for every inserted key; may return true for others.
func (f *Filter) Contains(key uint64, words []uint64) bool {
	if len(words) == 0 {
		return false
	}
	numBits := uint64(len(words)) * 64
	h1, h2 := probeHashes(key)
	for i := 0; i < f.hashCount; i++ {
		pos := (h1 + uint64(i)*h2) % numBits
		if words[pos/64]&(1<<(63-pos%64)) == 0 {
			return false
		}
	}
	return true
}

// probeHashes derives the two base hashes for double hashing. Probe i is
// (h1 + i*h2) mod numBits; h2 is forced odd so consecutive probes do not
// cluster.
func probeHashes(key uint64) (uint64, uint64) {
	var buf [9]byte
	binary.LittleEndian.PutUint64(buf[:8], key)
	h1 := xxhash.Sum64(buf[:8])
	buf[8] = 0xFF
	h2 := xxhash.Sum64(buf[:])
	if h2%2 == 0 {
		h2++
	}
	return h1, h2
}

// Words exposes the in-memory bit array in on-disk word order.
func (f *Filter) Words() []uint64 { return f.words }

// WordCount returns the array length in u64 words.
func (f *Filter) WordCount() uint64 { return uint64(len(f.words)) }

// Pages returns how many 4 KiB pages the array occupies on disk.
func (f *Filter) Pages() uint64 {
	return (f.WordCount() + kv.WordsPerPage - 1) / kv.WordsPerPage
}

// HashCount returns the number of simulated hash functions.
func (f *Filter) HashCount() int { return f.hashCount }

// NumBits returns the array size in bits.
func (f *Filter) NumBits() uint64 { return f.numBits }

// ClearArray drops the in-memory bit array once the filter has been
// persisted; subsequent Contains calls must pass the on-disk snapshot.
func (f *Filter) ClearArray() {
	f.words = nil
}
