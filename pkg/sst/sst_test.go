package sst

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dd0wney/cluso-kv/pkg/bloom"
	"github.com/dd0wney/cluso-kv/pkg/kv"
)

// mapCache is an unbounded PageCache for tests.
type mapCache struct {
	m map[string][]uint64
}

func newMapCache() *mapCache {
	return &mapCache{m: make(map[string][]uint64)}
}

func (c *mapCache) Get(id string) []uint64           { return c.m[id] }
func (c *mapCache) Insert(id string, words []uint64) { c.m[id] = words }

func seqEntries(n int) []kv.Entry {
	entries := make([]kv.Entry, n)
	for i := range entries {
		entries[i] = kv.Entry{Key: uint64(i), Value: uint64(i) * 10}
	}
	return entries
}

func writeBTreeTable(t *testing.T, path string, entries []kv.Entry, filter *bloom.Filter) *SST {
	t.Helper()
	table := New(path, uint64(len(entries))*kv.PairByteSize, filter)
	table.SetupBTree()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	if err := table.WriteAll(f, entries); err != nil {
		t.Fatalf("WriteAll: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return table
}

func TestBTreeRoundtripSmall(t *testing.T) {
	path := filepath.Join(t.TempDir(), "0.sst")
	entries := seqEntries(1000)
	table := writeBTreeTable(t, path, entries, nil)

	cache := newMapCache()
	for _, e := range entries {
		if got := table.FindBTree(e.Key, cache, false); got != e.Value {
			t.Fatalf("FindBTree(%d) = %d, want %d", e.Key, got, e.Value)
		}
	}
	for _, k := range []uint64{1000, 5000, kv.Tombstone - 1} {
		if got := table.FindBTree(k, cache, false); got != kv.Invalid {
			t.Fatalf("FindBTree(%d) = %d, want Invalid", k, got)
		}
	}
}

func TestBTreeFanoutBoundary(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping 513-leaf-page table in short mode")
	}
	// 513 * 256 pairs: one leaf page beyond a single internal page, so
	// the tree needs leaves, two internal pages, and a root.
	const n = 513 * 256
	path := filepath.Join(t.TempDir(), "big.sst")
	entries := seqEntries(n)
	table := writeBTreeTable(t, path, entries, nil)

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	meta := readPages(f, 0, 1)
	f.Close()
	if meta[0] != 3 {
		t.Fatalf("num_levels = %d, want 3", meta[0])
	}

	cache := newMapCache()
	for k := uint64(0); k < n; k++ {
		if got := table.FindBTree(k, cache, false); got != k*10 {
			t.Fatalf("FindBTree(%d) = %d, want %d", k, got, k*10)
		}
	}
	if got := table.FindBTree(n, cache, false); got != kv.Invalid {
		t.Fatalf("FindBTree(%d) = %d, want Invalid", uint64(n), got)
	}
}

func TestBTreeScanRanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan.sst")
	entries := seqEntries(2000) // crosses several leaf pages
	table := writeBTreeTable(t, path, entries, nil)

	out := table.ScanBTree(100, 699, nil)
	if len(out) != 600 {
		t.Fatalf("scan returned %d pairs, want 600", len(out))
	}
	for i, e := range out {
		if e.Key != uint64(100+i) || e.Value != uint64(100+i)*10 {
			t.Fatalf("pair %d = (%d,%d), want (%d,%d)", i, e.Key, e.Value, 100+i, (100+i)*10)
		}
	}

	if out := table.ScanBTree(5000, 6000, nil); len(out) != 0 {
		t.Errorf("out-of-range scan returned %d pairs", len(out))
	}
	if out := table.ScanBTree(1990, 3000, nil); len(out) != 10 {
		t.Errorf("tail scan returned %d pairs, want 10", len(out))
	}
}

func TestMetadataInvariants(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meta.sst")
	entries := seqEntries(70000)
	filter := bloom.New(10, len(entries))
	filter.InsertAll(entries)
	table := writeBTreeTable(t, path, entries, filter)

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	meta := readPages(f, 0, 1)
	numLevels := meta[0]
	offsets := meta[1 : numLevels+1]
	if offsets[0] != 1 {
		t.Errorf("root offset = %d, want 1", offsets[0])
	}
	for i := 1; i < len(offsets); i++ {
		if offsets[i] <= offsets[i-1] {
			t.Fatalf("level_start not strictly increasing: %v", offsets)
		}
	}
	if offsets[len(offsets)-1] > table.MaxLeafPage() {
		t.Errorf("leaf level starts at %d beyond last leaf page %d",
			offsets[len(offsets)-1], table.MaxLeafPage())
	}

	filterPages := meta[numLevels+1]
	filterStart := meta[numLevels+2]
	if filterPages == 0 || filterStart != table.MaxLeafPage()+1 {
		t.Fatalf("bloom metadata (%d pages at %d), want >0 pages at %d",
			filterPages, filterStart, table.MaxLeafPage()+1)
	}
	words := readPagesRaw(f, filterStart, filterPages)
	for k := uint64(0); k < 70000; k += 997 {
		if !filter.Contains(k, words) {
			t.Fatalf("stored filter misses inserted key %d", k)
		}
	}
}

func TestBloomShortCircuitsLookups(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bloomed.sst")
	entries := seqEntries(1024)
	filter := bloom.New(10, len(entries))
	filter.InsertAll(entries)
	table := writeBTreeTable(t, path, entries, filter)

	cache := newMapCache()
	for k := uint64(0); k < 1024; k++ {
		if got := table.FindBTree(k, cache, true); got != k*10 {
			t.Fatalf("FindBTree(%d) = %d, want %d", k, got, k*10)
		}
	}
	for k := uint64(2000); k <= 3000; k++ {
		if got := table.FindBTree(k, cache, true); got != kv.Invalid {
			t.Fatalf("FindBTree(%d) = %d, want Invalid", k, got)
		}
	}
}

func TestOpenReconstructsHandle(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reopen.sst")
	entries := seqEntries(3000)
	filter := bloom.New(10, len(entries))
	filter.InsertAll(entries)
	original := writeBTreeTable(t, path, entries, filter)

	reopened, err := Open(path, bloom.New(10, 1))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if reopened.MaxLeafPage() != original.MaxLeafPage() {
		t.Errorf("MaxLeafPage = %d, want %d", reopened.MaxLeafPage(), original.MaxLeafPage())
	}

	cache := newMapCache()
	for k := uint64(0); k < 3000; k += 7 {
		if got := reopened.FindBTree(k, cache, true); got != k*10 {
			t.Fatalf("reopened FindBTree(%d) = %d, want %d", k, got, k*10)
		}
	}
	if got := reopened.FindBTree(90000, cache, true); got != kv.Invalid {
		t.Errorf("reopened FindBTree(90000) = %d, want Invalid", got)
	}
	if out := reopened.ScanBTree(10, 29, nil); len(out) != 20 {
		t.Errorf("reopened scan returned %d pairs, want 20", len(out))
	}
}

func TestFlatRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "0.sst")
	entries := seqEntries(600) // two full pages plus a partial
	table := New(path, uint64(len(entries))*kv.PairByteSize, nil)

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := table.WriteFlat(f, entries); err != nil {
		t.Fatalf("WriteFlat: %v", err)
	}
	f.Close()

	cache := newMapCache()
	for _, e := range entries {
		if got := table.FindFlat(e.Key, cache); got != e.Value {
			t.Fatalf("FindFlat(%d) = %d, want %d", e.Key, got, e.Value)
		}
	}
	if got := table.FindFlat(600, cache); got != kv.Invalid {
		t.Errorf("FindFlat(600) = %d, want Invalid", got)
	}
	if got := table.FindFlat(1 << 40, cache); got != kv.Invalid {
		t.Errorf("FindFlat(big) = %d, want Invalid", got)
	}

	out := table.ScanFlat(250, 299, nil)
	if len(out) != 50 {
		t.Fatalf("ScanFlat returned %d pairs, want 50", len(out))
	}
	if out[0].Key != 250 || out[49].Key != 299 {
		t.Errorf("ScanFlat bounds wrong: [%d, %d]", out[0].Key, out[49].Key)
	}
}

func TestFindBTreeMissingFile(t *testing.T) {
	table := New(filepath.Join(t.TempDir(), "gone.sst"), 4096, nil)
	table.SetupBTree()
	if got := table.FindBTree(1, nil, false); got != kv.Invalid {
		t.Errorf("FindBTree on missing file = %d, want Invalid", got)
	}
}
