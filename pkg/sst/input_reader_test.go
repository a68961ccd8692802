package sst

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dd0wney/cluso-kv/pkg/bloom"
	"github.com/dd0wney/cluso-kv/pkg/kv"
)

func TestInputReaderStreamsAllEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "src.sst")
	entries := seqEntries(1000) // four leaf pages, last one partial
	table := writeBTreeTable(t, path, entries, nil)

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	r := NewInputReader(table.MaxLeafPage(), 2)
	r.ObtainOffset(f)
	r.Refill(f)

	var got []kv.Entry
	i := 0
	for r.Len() > 0 {
		got = append(got, r.Entry(i))
		i += 2
		if i >= r.Len() {
			r.Refill(f)
			i = 0
		}
	}

	if len(got) != len(entries) {
		t.Fatalf("streamed %d entries, want %d", len(got), len(entries))
	}
	for i, e := range got {
		if e != entries[i] {
			t.Fatalf("entry %d = %+v, want %+v", i, e, entries[i])
		}
	}
}

func TestScanInputReaderMonotonicFinds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan-src.sst")
	// Even keys only, so odd probes miss without advancing past data.
	entries := make([]kv.Entry, 800)
	for i := range entries {
		entries[i] = kv.Entry{Key: uint64(i) * 2, Value: uint64(i) * 20}
	}
	table := writeBTreeTable(t, path, entries, nil)

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	r := NewScanInputReader(1)
	if r.RangeSet() {
		t.Fatal("RangeSet before SetRange")
	}
	start := table.ScanLeavesStart(f, 0)
	r.SetRange(start, table.MaxLeafPage(), f)
	if !r.RangeSet() {
		t.Fatal("RangeSet false after SetRange")
	}

	for k := uint64(0); k < 1600; k++ {
		e := r.FindKey(k, f)
		if k%2 == 0 {
			if e.Value != k*10 {
				t.Fatalf("FindKey(%d) = %d, want %d", k, e.Value, k*10)
			}
		} else if e.Value != kv.Invalid {
			t.Fatalf("FindKey(%d) = %d, want Invalid", k, e.Value)
		}
	}

	// Probing beyond the data exhausts the cursor.
	if e := r.FindKey(100000, f); e.Value != kv.Invalid {
		t.Fatalf("FindKey past end = %d, want Invalid", e.Value)
	}
	if !r.Done() {
		t.Error("cursor not Done after passing the last leaf page")
	}
}

func TestOutputWriterStreamedTableServesLookupsAndScans(t *testing.T) {
	dir := t.TempDir()
	entries := seqEntries(3000)

	streamed := New(filepath.Join(dir, "streamed.sst"),
		uint64(len(entries))*kv.PairByteSize, nil)
	streamed.SetupBTree()
	w, err := NewOutputWriter(streamed, 3)
	if err != nil {
		t.Fatalf("NewOutputWriter: %v", err)
	}
	for _, e := range entries {
		w.Add(e)
	}
	pages, err := w.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	wantPages := uint64((len(entries) + kv.PairsPerPage - 1) / kv.PairsPerPage)
	if pages != wantPages {
		t.Errorf("Finish reported %d pages, want %d", pages, wantPages)
	}

	cache := newMapCache()
	for _, e := range entries {
		if got := streamed.FindBTree(e.Key, cache, false); got != e.Value {
			t.Fatalf("streamed FindBTree(%d) = %d, want %d", e.Key, got, e.Value)
		}
	}
	if out := streamed.ScanBTree(0, uint64(len(entries))*10, nil); len(out) != len(entries) {
		t.Fatalf("streamed scan returned %d pairs, want %d", len(out), len(entries))
	}
}

func TestOutputWriterWithFilter(t *testing.T) {
	dir := t.TempDir()
	entries := seqEntries(700)
	filter := bloom.New(10, len(entries))

	table := New(filepath.Join(dir, "filtered.sst"),
		uint64(len(entries))*kv.PairByteSize, filter)
	table.SetupBTree()
	w, err := NewOutputWriter(table, 2)
	if err != nil {
		t.Fatalf("NewOutputWriter: %v", err)
	}
	for _, e := range entries {
		w.Add(e)
		filter.Insert(e.Key)
	}
	if _, err := w.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	cache := newMapCache()
	for k := uint64(0); k < 700; k += 13 {
		if got := table.FindBTree(k, cache, true); got != k*10 {
			t.Fatalf("FindBTree(%d) with filter = %d, want %d", k, got, k*10)
		}
	}
	if got := table.FindBTree(100000, cache, true); got != kv.Invalid {
		t.Errorf("FindBTree(100000) = %d, want Invalid", got)
	}
}
