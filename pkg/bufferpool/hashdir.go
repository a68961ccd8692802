package bufferpool

import (
	"math/bits"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Directory is an extendible hash table from page ids to buckets. Entries
// are the low global-depth bits of the page id's hash rendered as an
// MSB-first binary string; two entries share a bucket iff their low
// local-depth bits match. The directory doubles up to max depth and
// halves down to min depth.
type Directory struct {
	globalDepth int
	minDepth    int
	maxDepth    int
	bucketMax   int
	size        int
	buckets     map[string]*bucket
}

// NewDirectory sizes the directory from page counts: depths are the floor
// log2 of the min and max pool sizes. Every initial entry maps to its own
// empty bucket.
func NewDirectory(minSize, maxSize, bucketMax int) *Directory {
	d := &Directory{
		minDepth:  floorLog2(minSize),
		maxDepth:  floorLog2(maxSize),
		bucketMax: bucketMax,
		buckets:   make(map[string]*bucket),
	}
	d.globalDepth = d.minDepth
	for i := 0; i < 1<<d.globalDepth; i++ {
		d.buckets[binaryString(uint64(i), d.minDepth)] = newBucket(d.globalDepth)
	}
	return d
}

func floorLog2(n int) int {
	if n < 1 {
		return 0
	}
	return bits.Len(uint(n)) - 1
}

// binaryString renders the low numBits bits of v, most significant first.
func binaryString(v uint64, numBits int) string {
	var sb strings.Builder
	sb.Grow(numBits)
	for i := numBits - 1; i >= 0; i-- {
		if v&(1<<uint(i)) != 0 {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

func (d *Directory) hash(pageID string) string {
	return binaryString(xxhash.Sum64String(pageID), d.globalDepth)
}

// Get returns the cached page for pageID, or nil.
func (d *Directory) Get(pageID string) *page {
	b, ok := d.buckets[d.hash(pageID)]
	if !ok {
		return nil
	}
	return b.get(pageID)
}

// Insert routes the page to its bucket, splitting the bucket when it
// overflows and its local depth still trails the global depth. When local
// and global depth are equal the caller must expand the directory or
// evict first.
func (d *Directory) Insert(p *page) {
	bucketID := d.hash(p.id)
	b := d.buckets[bucketID]
	b.insert(p)
	d.size++

	if b.size() > d.bucketMax && b.localDepth < d.globalDepth {
		d.split(bucketID)
	}
}

// Remove deletes pageID from its bucket, reporting whether it was held.
func (d *Directory) Remove(pageID string) bool {
	b, ok := d.buckets[d.hash(pageID)]
	if !ok || !b.remove(pageID) {
		return false
	}
	d.size--
	return true
}

// ExpandDirectory doubles the directory by duplicating every entry's
// pointer under its "0"- and "1"-prefixed successors. Returns false at
// max depth.
func (d *Directory) ExpandDirectory() bool {
	if d.globalDepth == d.maxDepth {
		return false
	}
	d.globalDepth++
	expanded := make(map[string]*bucket, 2*len(d.buckets))
	for oldID, b := range d.buckets {
		expanded["0"+oldID] = b
		expanded["1"+oldID] = b
	}
	d.buckets = expanded
	return true
}

// ShrinkDirectory merges every bucket with its pair and halves the
// directory by dropping the leading bit of every entry. No-op at min
// depth.
func (d *Directory) ShrinkDirectory() {
	if d.globalDepth == d.minDepth {
		return
	}

	ids := d.sortedIDs()
	for _, id := range ids {
		d.merge(id)
	}

	d.globalDepth--
	halved := make(map[string]*bucket, len(d.buckets)/2)
	for _, oldID := range ids {
		halved[oldID[1:]] = d.buckets[oldID]
	}
	d.buckets = halved
}

// split raises the overflowing bucket's local depth by one and points every
// entry of that bucket whose low local-depth suffix starts with "1" at a
// fresh bucket, then redistributes the pages, recursing through Insert if
// the redistribution overflows again.
func (d *Directory) split(bucketID string) {
	overflow := d.buckets[bucketID]
	overflow.localDepth++
	depth := overflow.localDepth

	fresh := newBucket(depth)
	for id, b := range d.buckets {
		if b == overflow && id[len(id)-depth] == '1' {
			d.buckets[id] = fresh
		}
	}

	pages := overflow.clear()
	d.size -= len(pages)
	for _, p := range pages {
		d.Insert(p)
	}
}

// merge moves this bucket's pages into its pair bucket and points the
// entry at the pair. Entries that already share a bucket merge trivially.
func (d *Directory) merge(bucketID string) {
	cur := d.buckets[bucketID]
	pair := d.buckets[pairID(bucketID)]
	if cur == pair {
		return
	}
	for _, p := range cur.clear() {
		pair.insert(p)
	}
	pair.localDepth--
	d.buckets[bucketID] = pair
}

// pairID flips the leading bit: the pair of bucket b is the bucket
// reached by flipping the first bit of the same suffix.
func pairID(bucketID string) string {
	if bucketID[0] == '0' {
		return "1" + bucketID[1:]
	}
	return "0" + bucketID[1:]
}

func (d *Directory) sortedIDs() []string {
	ids := make([]string, 0, len(d.buckets))
	for id := range d.buckets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SetMaxSize re-bounds the directory, shrinking as needed to respect the
// new max depth.
func (d *Directory) SetMaxSize(maxSize int) {
	d.maxDepth = floorLog2(maxSize)
	if d.minDepth > d.maxDepth {
		d.minDepth = d.maxDepth
	}
	for d.globalDepth > d.maxDepth {
		d.ShrinkDirectory()
	}
}

// SetMinSize raises or lowers the directory's floor.
func (d *Directory) SetMinSize(minSize int) {
	d.minDepth = floorLog2(minSize)
	if d.maxDepth < d.minDepth {
		d.maxDepth = d.minDepth
	}
}

// Size returns the number of cached pages.
func (d *Directory) Size() int { return d.size }

// NumEntries returns the number of directory entries.
func (d *Directory) NumEntries() int { return len(d.buckets) }

// GlobalDepth returns the current directory depth.
func (d *Directory) GlobalDepth() int { return d.globalDepth }

// NumBuckets counts distinct buckets across all entries.
func (d *Directory) NumBuckets() int {
	seen := make(map[*bucket]struct{})
	for _, b := range d.buckets {
		seen[b] = struct{}{}
	}
	return len(seen)
}

// BucketFor exposes the bucket identity behind a directory entry, used by
// invariant tests.
func (d *Directory) BucketFor(entry string) any {
	return d.buckets[entry]
}

// LocalDepth returns the local depth of the bucket behind a directory
// entry, or -1 when the entry does not exist.
func (d *Directory) LocalDepth(entry string) int {
	b, ok := d.buckets[entry]
	if !ok {
		return -1
	}
	return b.localDepth
}

// Entries lists the directory entry ids in sorted order.
func (d *Directory) Entries() []string {
	return d.sortedIDs()
}
