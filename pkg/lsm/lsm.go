package lsm

import (
	"math"
	"os"
	"time"

	"github.com/dd0wney/cluso-kv/pkg/kv"
	"github.com/dd0wney/cluso-kv/pkg/logging"
	"github.com/dd0wney/cluso-kv/pkg/metrics"
	"github.com/dd0wney/cluso-kv/pkg/sst"
)

// Tree is the log-structured-merge hierarchy: an ordered list of levels,
// youngest first. After every public operation no level holds two tables;
// an overflowing level is merged into the next tier within the same call,
// cascading as far as needed.
type Tree struct {
	levels       []*Level
	bitsPerEntry int
	inputPages   int
	outputPages  int
	log          logging.Logger
	metrics      *metrics.Registry
}

// Option customizes a tree.
type Option func(*Tree)

// WithLogger attaches a structured logger.
func WithLogger(log logging.Logger) Option {
	return func(t *Tree) { t.log = log }
}

// WithMetrics attaches a metrics registry.
func WithMetrics(reg *metrics.Registry) Option {
	return func(t *Tree) { t.metrics = reg }
}

// NewTree creates an empty tree. bitsPerEntry sizes each table's Bloom
// filter; inputPages and outputPages bound the compaction streams.
func NewTree(bitsPerEntry, inputPages, outputPages int, opts ...Option) *Tree {
	t := &Tree{
		bitsPerEntry: bitsPerEntry,
		inputPages:   inputPages,
		outputPages:  outputPages,
		log:          logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Levels returns the tree's levels, youngest first.
func (t *Tree) Levels() []*Level { return t.levels }

func (t *Tree) ensureLevel(n int) *Level {
	for len(t.levels) <= n {
		t.levels = append(t.levels,
			NewLevel(len(t.levels), t.bitsPerEntry, t.inputPages, t.outputPages, t.log))
	}
	return t.levels[n]
}

// AddSST registers an existing table into a level, used when reopening a
// store directory.
func (t *Tree) AddSST(level int, table *sst.SST) {
	t.ensureLevel(level).addSST(table)
}

// FlushMemtable writes a drained memtable run into level 0 and restores
// the level capacity invariant.
func (t *Tree) FlushMemtable(dir string, entries []kv.Entry) error {
	lvl0 := t.ensureLevel(0)
	if err := lvl0.WriteData(dir, entries); err != nil {
		return err
	}
	t.metrics.RecordFlush()
	return t.maintain(lvl0, dir)
}

// maintain merges lvl into the next tier while it holds two tables,
// recursing upward until every level is within bound.
func (t *Tree) maintain(lvl *Level, dir string) error {
	t.metrics.SetLevelSSTables(lvl.Number(), len(lvl.SSTs()))
	if len(lvl.SSTs()) <= 1 {
		return nil
	}

	next := t.ensureLevel(lvl.Number() + 1)
	start := time.Now()
	if err := lvl.SortMergeInto(next, dir); err != nil {
		return err
	}
	t.metrics.RecordCompaction(time.Since(start))
	t.metrics.SetLevelSSTables(lvl.Number(), 0)
	t.metrics.SetLevelSSTables(next.Number(), len(next.SSTs()))
	return t.maintain(next, dir)
}

// Get walks the levels youngest first and returns the first value found,
// or kv.Invalid. A tombstone masks any deeper occurrence of the key.
func (t *Tree) Get(key uint64, cache sst.PageCache) uint64 {
	for _, lvl := range t.levels {
		// With a size ratio of 2 a settled level holds one table, so
		// list order within the level never matters here.
		for _, table := range lvl.SSTs() {
			value := table.FindBTree(key, cache, true)
			if value == kv.Tombstone {
				return kv.Invalid
			}
			if value != kv.Invalid {
				return value
			}
		}
	}
	return kv.Invalid
}

type levelCursor struct {
	table *sst.SST
	f     *os.File
	r     *sst.ScanInputReader
}

// Scan climbs the levels key by key over [key1, key2]: for each key the
// shallowest level that holds it wins, tombstones drop the key, and each
// table's cursor is positioned once and only moves forward. Descriptors
// stay open for the duration of this one call.
func (t *Tree) Scan(key1, key2 uint64, out []kv.Entry) []kv.Entry {
	cursors := make([]*levelCursor, 0, len(t.levels))
	for _, lvl := range t.levels {
		if len(lvl.SSTs()) == 0 {
			continue
		}
		table := lvl.SSTs()[0]
		f, err := os.Open(table.Path())
		if err != nil {
			continue
		}
		defer f.Close()
		cursors = append(cursors, &levelCursor{
			table: table,
			f:     f,
			r:     sst.NewScanInputReader(t.inputPages),
		})
	}

	for cur := key1; cur <= key2; cur++ {
		anyLive := false
		for _, c := range cursors {
			if !c.r.RangeSet() {
				start := c.table.ScanLeavesStart(c.f, cur)
				c.r.SetRange(start, c.table.MaxLeafPage(), c.f)
			}
			if c.r.Done() {
				continue
			}
			anyLive = true
			e := c.r.FindKey(cur, c.f)
			if e.Value != kv.Invalid {
				if e.Value != kv.Tombstone {
					out = append(out, e)
				}
				break
			}
		}
		if !anyLive || cur == math.MaxUint64 {
			break
		}
	}
	return out
}
