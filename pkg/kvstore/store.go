// Package kvstore is the public face of the store: open a directory, put
// and get u64 pairs, scan ranges, and close to persist. With the LSM tree
// enabled, updates and deletes route through tombstones and compaction is
// implicit; without it the store keeps a flat list of immutable tables.
package kvstore

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/dd0wney/cluso-kv/pkg/bloom"
	"github.com/dd0wney/cluso-kv/pkg/bufferpool"
	"github.com/dd0wney/cluso-kv/pkg/kv"
	"github.com/dd0wney/cluso-kv/pkg/logging"
	"github.com/dd0wney/cluso-kv/pkg/lsm"
	"github.com/dd0wney/cluso-kv/pkg/memtable"
	"github.com/dd0wney/cluso-kv/pkg/metrics"
	"github.com/dd0wney/cluso-kv/pkg/sst"
)

var (
	levelFilePattern = regexp.MustCompile(`^level(\d+)-(\d+)\.sst$`)
	flatFilePattern  = regexp.MustCompile(`^(\d+)\.sst$`)
)

// Store is a single-writer embedded key-value store rooted at a
// directory. All calls must come from one goroutine; durability is
// guaranteed only by an orderly Close.
type Store struct {
	dir  string
	opts Options
	id   string

	mt    *memtable.Memtable
	pool  *bufferpool.BufferPool
	tree  *lsm.Tree
	flats []*sst.SST // non-LSM tables, oldest first

	log     logging.Logger
	metrics *metrics.Registry
	closed  bool
}

// Open creates or reopens a store at dir. In LSM mode existing
// level-prefixed table files are parsed back into their levels; in flat
// mode numbered table files are registered oldest first.
func Open(dir string, opts Options) (*Store, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, pathError("open", dir, err)
	}

	log := opts.Logger
	if log == nil {
		log = logging.NewNopLogger()
	}
	s := &Store{
		dir:     dir,
		opts:    opts,
		id:      uuid.NewString(),
		mt:      memtable.New(opts.MemtableMaxEntries),
		metrics: opts.Metrics,
	}
	s.log = log.With(logging.Component("kvstore"), logging.StoreID(s.id))

	if opts.BufferPool.Enabled {
		s.pool = bufferpool.New(
			opts.BufferPool.MinSize,
			opts.BufferPool.MaxSize,
			bufferpool.PolicyType(opts.BufferPool.Eviction),
			bufferpool.WithLogger(s.log),
			bufferpool.WithMetrics(opts.Metrics),
		)
	}
	if opts.LSM.Enabled {
		s.tree = lsm.NewTree(
			opts.LSM.BloomBitsPerEntry,
			opts.LSM.InputBufferPages,
			opts.LSM.OutputBufferPages,
			lsm.WithLogger(s.log),
			lsm.WithMetrics(opts.Metrics),
		)
	}

	if err := s.discoverTables(); err != nil {
		return nil, err
	}

	s.log.Info("store opened",
		logging.String("dir", dir),
		logging.Bool("lsm", s.tree != nil),
		logging.String("search_mode", opts.SearchMode.String()))
	return s, nil
}

// discoverTables rebuilds table handles from the directory's file names.
func (s *Store) discoverTables() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return pathError("open", s.dir, err)
	}

	if s.tree != nil {
		type levelFile struct {
			level, seq int
			name       string
		}
		var files []levelFile
		for _, de := range entries {
			m := levelFilePattern.FindStringSubmatch(de.Name())
			if m == nil {
				continue
			}
			level, _ := strconv.Atoi(m[1])
			seq, _ := strconv.Atoi(m[2])
			files = append(files, levelFile{level: level, seq: seq, name: de.Name()})
		}
		sort.Slice(files, func(i, j int) bool {
			if files[i].level != files[j].level {
				return files[i].level < files[j].level
			}
			return files[i].seq < files[j].seq
		})
		for _, lf := range files {
			filter := bloom.New(s.opts.LSM.BloomBitsPerEntry, 1)
			table, err := sst.Open(filepath.Join(s.dir, lf.name), filter)
			if err != nil {
				return pathError("open", lf.name, err)
			}
			s.tree.AddSST(lf.level, table)
		}
		return nil
	}

	type flatFile struct {
		seq  int
		name string
		size uint64
	}
	var files []flatFile
	for _, de := range entries {
		m := flatFilePattern.FindStringSubmatch(de.Name())
		if m == nil {
			continue
		}
		info, err := de.Info()
		if err != nil {
			return pathError("open", de.Name(), err)
		}
		seq, _ := strconv.Atoi(m[1])
		files = append(files, flatFile{seq: seq, name: de.Name(), size: uint64(info.Size())})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].seq < files[j].seq })
	for _, ff := range files {
		s.flats = append(s.flats, sst.New(filepath.Join(s.dir, ff.name), ff.size, nil))
	}
	return nil
}

// Put stores value under key, flushing the memtable first when it is
// full. Values at or above the tombstone sentinel are rejected.
func (s *Store) Put(key, value uint64) error {
	if s.closed {
		return opError("put", ErrClosed)
	}
	if !kv.IsUserValue(value) {
		return keyError("put", key, ErrReservedValue)
	}
	start := time.Now()
	err := s.put(key, value)
	s.recordOp("put", start, err)
	return err
}

func (s *Store) put(key, value uint64) error {
	if s.mt.Put(key, value) {
		return nil
	}
	if err := s.flushMemtable(); err != nil {
		return err
	}
	s.mt.Put(key, value)
	return nil
}

// flushMemtable drains the memtable into storage and resets it.
func (s *Store) flushMemtable() error {
	data := s.mt.DrainSorted()
	if len(data) == 0 {
		return nil
	}
	var err error
	if s.tree != nil {
		err = s.tree.FlushMemtable(s.dir, data)
	} else {
		err = s.flushFlat(data)
	}
	if err != nil {
		return err
	}
	s.mt.Reset()
	return nil
}

// flushFlat writes the run as the next numbered table.
func (s *Store) flushFlat(data []kv.Entry) error {
	path := filepath.Join(s.dir, strconv.Itoa(len(s.flats))+sst.Extension)
	table := sst.New(path, uint64(len(data))*kv.PairByteSize, nil)

	f, err := os.Create(path)
	if err != nil {
		return pathError("flush", path, err)
	}
	if s.opts.SearchMode == BTreeSearch {
		table.SetupBTree()
		err = table.WriteAll(f, data)
	} else {
		err = table.WriteFlat(f, data)
	}
	if err != nil {
		f.Close()
		return pathError("flush", path, err)
	}
	if err := f.Close(); err != nil {
		return pathError("flush", path, err)
	}

	s.flats = append(s.flats, table)
	s.metrics.RecordFlush()
	s.log.Debug("flushed memtable", logging.SSTPath(path), logging.Entries(len(data)))
	return nil
}

// Get returns the value stored under key. found is false for keys never
// put, deleted keys, and unreadable tables.
func (s *Store) Get(key uint64) (value uint64, found bool, err error) {
	if s.closed {
		return 0, false, opError("get", ErrClosed)
	}
	start := time.Now()
	defer func() { s.recordOp("get", start, err) }()

	if v := s.mt.Get(key); v != kv.Invalid {
		if v == kv.Tombstone {
			return 0, false, nil
		}
		return v, true, nil
	}

	var v uint64
	if s.tree != nil {
		v = s.tree.Get(key, s.cache())
	} else {
		v = s.findFlat(key)
	}
	if v == kv.Invalid || v == kv.Tombstone {
		return 0, false, nil
	}
	return v, true, nil
}

// findFlat probes the flat tables newest first.
func (s *Store) findFlat(key uint64) uint64 {
	for i := len(s.flats) - 1; i >= 0; i-- {
		var v uint64
		if s.opts.SearchMode == BinarySearch {
			v = s.flats[i].FindFlat(key, s.cache())
		} else {
			v = s.flats[i].FindBTree(key, s.cache(), false)
		}
		if v != kv.Invalid {
			return v
		}
	}
	return kv.Invalid
}

// Update overwrites an existing key. It is Put under another name and is
// legal only in LSM mode.
func (s *Store) Update(key, value uint64) error {
	if s.closed {
		return opError("update", ErrClosed)
	}
	if s.tree == nil {
		return opError("update", ErrNotLSM)
	}
	return s.Put(key, value)
}

// Delete removes key by writing a tombstone over it. LSM mode only.
func (s *Store) Delete(key uint64) error {
	if s.closed {
		return opError("delete", ErrClosed)
	}
	if s.tree == nil {
		return opError("delete", ErrNotLSM)
	}
	start := time.Now()
	err := s.put(key, kv.Tombstone)
	s.recordOp("delete", start, err)
	return err
}

// Scan returns every live pair with key1 <= key <= key2 in ascending key
// order, with the memtable shadowing every on-disk tier.
func (s *Store) Scan(key1, key2 uint64) ([]kv.Entry, error) {
	if s.closed {
		return nil, opError("scan", ErrClosed)
	}
	start := time.Now()
	var out []kv.Entry
	if s.tree != nil {
		out = s.scanLSM(key1, key2)
	} else {
		out = s.scanFlat(key1, key2)
	}
	s.recordOp("scan", start, nil)
	return out, nil
}

// scanLSM merges the memtable scan with the tree scan. Both inputs are
// sorted; on a shared key the memtable wins, and tombstones drop out.
func (s *Store) scanLSM(key1, key2 uint64) []kv.Entry {
	fromMemtable := s.mt.Scan(key1, key2, nil)
	fromTree := s.tree.Scan(key1, key2, nil)

	out := make([]kv.Entry, 0, len(fromMemtable)+len(fromTree))
	i, j := 0, 0
	for i < len(fromMemtable) || j < len(fromTree) {
		switch {
		case j >= len(fromTree) || (i < len(fromMemtable) && fromMemtable[i].Key <= fromTree[j].Key):
			e := fromMemtable[i]
			if j < len(fromTree) && fromTree[j].Key == e.Key {
				j++
			}
			i++
			if e.Value != kv.Tombstone {
				out = append(out, e)
			}
		default:
			out = append(out, fromTree[j])
			j++
		}
	}
	return out
}

// scanFlat overlays the flat tables oldest to newest, with the memtable
// applied last, then emits the surviving pairs in key order.
func (s *Store) scanFlat(key1, key2 uint64) []kv.Entry {
	merged := make(map[uint64]uint64)
	for _, table := range s.flats {
		var pairs []kv.Entry
		if s.opts.SearchMode == BinarySearch {
			pairs = table.ScanFlat(key1, key2, nil)
		} else {
			pairs = table.ScanBTree(key1, key2, nil)
		}
		for _, e := range pairs {
			merged[e.Key] = e.Value
		}
	}
	for _, e := range s.mt.Scan(key1, key2, nil) {
		merged[e.Key] = e.Value
	}

	keys := make([]uint64, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	out := make([]kv.Entry, 0, len(keys))
	for _, k := range keys {
		out = append(out, kv.Entry{Key: k, Value: merged[k]})
	}
	return out
}

// Close flushes the memtable and releases every table handle. Only a
// store that was closed in an orderly way is guaranteed to persist.
func (s *Store) Close() error {
	if s.closed {
		return nil
	}
	if err := s.flushMemtable(); err != nil {
		return err
	}
	s.flats = nil
	s.tree = nil
	s.pool = nil
	s.closed = true
	s.log.Info("store closed", logging.String("dir", s.dir))
	return nil
}

// cache returns the shared page cache, or nil when disabled. The typed
// nil matters: a nil *BufferPool must not escape into the PageCache
// interface.
func (s *Store) cache() sst.PageCache {
	if s.pool == nil {
		return nil
	}
	return s.pool
}

func (s *Store) recordOp(op string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	s.metrics.RecordOperation(op, status, time.Since(start))
	s.metrics.SetMemtableEntries(s.mt.Len())
}

// Dir returns the store's root directory.
func (s *Store) Dir() string { return s.dir }

// ID returns the store instance id carried in its log fields.
func (s *Store) ID() string { return s.id }

// Stats is a point-in-time snapshot of the store's shape.
type Stats struct {
	MemtableEntries int
	SSTablesByLevel []int // LSM mode
	FlatSSTables    int   // non-LSM mode
	CachedPages     int
}

// StatsSnapshot reports the current store shape.
func (s *Store) StatsSnapshot() Stats {
	st := Stats{
		MemtableEntries: s.mt.Len(),
		FlatSSTables:    len(s.flats),
	}
	if s.tree != nil {
		for _, lvl := range s.tree.Levels() {
			st.SSTablesByLevel = append(st.SSTablesByLevel, len(lvl.SSTs()))
		}
	}
	if s.pool != nil {
		st.CachedPages = s.pool.Size()
	}
	return st
}
