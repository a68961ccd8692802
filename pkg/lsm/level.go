// Package lsm stacks SST files into levels and keeps each level within
// its size bound by sort-merging overflowing levels into the next tier.
package lsm

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dd0wney/cluso-kv/pkg/bloom"
	"github.com/dd0wney/cluso-kv/pkg/kv"
	"github.com/dd0wney/cluso-kv/pkg/logging"
	"github.com/dd0wney/cluso-kv/pkg/sst"
)

// Level is one LSM tier. It holds at most two tables at any instant; the
// second arrival makes it due for compaction into the next tier. Newer
// tables sit later in the list, which is the merge tie-break.
type Level struct {
	number       int
	ssts         []*sst.SST
	bitsPerEntry int
	inputPages   int
	outputPages  int
	log          logging.Logger
}

// NewLevel creates an empty level numbered number (0 = youngest).
func NewLevel(number, bitsPerEntry, inputPages, outputPages int, log logging.Logger) *Level {
	return &Level{
		number:       number,
		bitsPerEntry: bitsPerEntry,
		inputPages:   inputPages,
		outputPages:  outputPages,
		log:          log,
	}
}

// Number returns the level's position in the tree, 0 being youngest.
func (l *Level) Number() int { return l.number }

// SSTs returns the level's tables, oldest first.
func (l *Level) SSTs() []*sst.SST { return l.ssts }

func (l *Level) addSST(table *sst.SST) {
	l.ssts = append(l.ssts, table)
}

// fileName encodes the level and the table's insertion order.
func (l *Level) fileName(seq int) string {
	return fmt.Sprintf("level%d-%d%s", l.number, seq, sst.Extension)
}

// WriteData materializes a sorted run as a new table in this level, with
// a Bloom filter sized for the run.
func (l *Level) WriteData(dir string, entries []kv.Entry) error {
	path := filepath.Join(dir, l.fileName(len(l.ssts)))
	filter := bloom.New(l.bitsPerEntry, len(entries))
	filter.InsertAll(entries)

	table := sst.New(path, uint64(len(entries))*kv.PairByteSize, filter)
	table.SetupBTree()

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := table.WriteAll(f, entries); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	l.addSST(table)
	l.log.Debug("wrote sorted run",
		logging.LevelNum(l.number),
		logging.SSTPath(path),
		logging.Entries(len(entries)))
	return nil
}

// SortMergeInto streams this level's two tables through a two-way merge
// into one table appended to next. Key ties keep the newer (second)
// table's value. The source files are deleted once the merged table is
// fully persisted.
func (l *Level) SortMergeInto(next *Level, dir string) error {
	src1, src2 := l.ssts[0], l.ssts[1]
	totalBytes := src1.DataByteSize() + src2.DataByteSize()
	maxKeys := int((totalBytes + kv.PairByteSize - 1) / kv.PairByteSize)
	filter := bloom.New(l.bitsPerEntry, maxKeys)

	path := filepath.Join(dir, next.fileName(len(next.ssts)))
	merged := sst.New(path, totalBytes, filter)
	merged.SetupBTree()

	f1, err := os.Open(src1.Path())
	if err != nil {
		return err
	}
	defer f1.Close()
	f2, err := os.Open(src2.Path())
	if err != nil {
		return err
	}
	defer f2.Close()

	r1 := sst.NewInputReader(src1.MaxLeafPage(), l.inputPages)
	r1.ObtainOffset(f1)
	r2 := sst.NewInputReader(src2.MaxLeafPage(), l.inputPages)
	r2.ObtainOffset(f2)

	writer, err := sst.NewOutputWriter(merged, l.outputPages)
	if err != nil {
		return err
	}

	r1.Refill(f1)
	r2.Refill(f2)
	i1, i2 := 0, 0
	for r1.Len() > 0 && r2.Len() > 0 {
		e1 := r1.Entry(i1)
		e2 := r2.Entry(i2)
		switch {
		case e1.Key < e2.Key:
			writer.Add(e1)
			filter.Insert(e1.Key)
			i1 += 2
		case e2.Key < e1.Key:
			writer.Add(e2)
			filter.Insert(e2.Key)
			i2 += 2
		default:
			// Same key in both: the newer table's value wins, whether
			// it is an update or a tombstone.
			writer.Add(e2)
			filter.Insert(e2.Key)
			i1 += 2
			i2 += 2
		}

		if i1 >= r1.Len() {
			r1.Refill(f1)
			i1 = 0
		}
		if i2 >= r2.Len() {
			r2.Refill(f2)
			i2 = 0
		}
	}

	if r1.Len() > 0 {
		drainRemaining(f1, i1, filter, r1, writer)
	} else if r2.Len() > 0 {
		drainRemaining(f2, i2, filter, r2, writer)
	}

	pages, err := writer.Finish()
	if err != nil {
		return err
	}
	merged.SetDataByteSize(pages * kv.PairsPerPage * kv.PairByteSize)
	next.addSST(merged)

	l.log.Debug("merged level",
		logging.LevelNum(l.number),
		logging.SSTPath(path),
		logging.Pages(pages))
	return l.removeSSTFiles()
}

func drainRemaining(f *os.File, i int, filter *bloom.Filter, r *sst.InputReader, w *sst.OutputWriter) {
	for i < r.Len() {
		e := r.Entry(i)
		w.Add(e)
		filter.Insert(e.Key)
		i += 2
		if i >= r.Len() {
			r.Refill(f)
			i = 0
		}
	}
}

// removeSSTFiles deletes this level's table files and empties the level.
func (l *Level) removeSSTFiles() error {
	var firstErr error
	for _, table := range l.ssts {
		if err := os.Remove(table.Path()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	l.ssts = nil
	return firstErr
}
