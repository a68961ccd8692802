package sst

import (
	"os"

	"github.com/dd0wney/cluso-kv/pkg/kv"
)

// OutputWriter buffers the merged KV stream of a compaction and feeds the
// table's leaf-and-fence cascade one whole-page batch at a time. Exactly
// one writer produces each target table.
type OutputWriter struct {
	sst           *SST
	f             *os.File
	capacityPairs int
	buffer        []kv.Entry
	pagesWritten  uint64
	err           error
}

// NewOutputWriter creates the target file and a writer buffering
// capacityPages pages of pending pairs.
func NewOutputWriter(s *SST, capacityPages int) (*OutputWriter, error) {
	if capacityPages < 1 {
		capacityPages = 1
	}
	f, err := os.Create(s.path)
	if err != nil {
		return nil, err
	}
	return &OutputWriter{
		sst:           s,
		f:             f,
		capacityPairs: capacityPages * kv.PairsPerPage,
	}, nil
}

// Add appends one pair to the pending buffer, flushing it through the
// codec when full. Write failures stick and surface from Finish.
func (w *OutputWriter) Add(e kv.Entry) {
	w.buffer = append(w.buffer, e)
	if len(w.buffer) >= w.capacityPairs {
		w.flush(false)
	}
}

func (w *OutputWriter) flush(endOfRun bool) {
	if w.err == nil {
		w.err = w.sst.WriteBatch(w.f, w.buffer, endOfRun)
	}
	w.pagesWritten += uint64(len(w.buffer)+kv.PairsPerPage-1) / kv.PairsPerPage
	w.buffer = w.buffer[:0]
}

// Finish emits the remaining pairs, finalizes metadata and filter, and
// closes the file. It returns the number of leaf pages written.
func (w *OutputWriter) Finish() (uint64, error) {
	w.flush(true)
	if w.err == nil {
		w.err = w.sst.FinishFile(w.f)
	}
	if cerr := w.f.Close(); w.err == nil {
		w.err = cerr
	}
	return w.pagesWritten, w.err
}
