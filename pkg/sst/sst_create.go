package sst

import (
	"os"

	"github.com/dd0wney/cluso-kv/pkg/kv"
)

// WriteAll writes one complete sorted run through the B-tree cascade and
// finalizes the file. SetupBTree must have been called.
func (s *SST) WriteAll(f *os.File, entries []kv.Entry) error {
	if err := s.WriteBatch(f, entries, true); err != nil {
		return err
	}
	return s.FinishFile(f)
}

// WriteFlat writes a sorted run as a plain page sequence starting at page
// 0, with no index and no filter. A partial final page is terminated with
// the sentinel. This is the binary-search legacy format.
func (s *SST) WriteFlat(f *os.File, entries []kv.Entry) error {
	if err := writeEntriesAt(f, 0, entries); err != nil {
		return err
	}
	if len(entries)%kv.PairsPerPage != 0 {
		return writeSentinelAt(f, uint64(len(entries))*kv.PairByteSize)
	}
	return nil
}

// WriteBatch appends sorted entries to the leaf level and feeds each leaf
// page's last key upward as a fence. Streaming callers pass batches that
// are whole pages; endOfRun marks the final, possibly partial batch and
// pins the last leaf page.
func (s *SST) WriteBatch(f *os.File, entries []kv.Entry, endOfRun bool) error {
	numLevels := len(s.levels)
	leaf := s.levels[numLevels-1]

	if numLevels > 1 && len(entries) > 0 {
		numLeaves := (len(entries) + kv.PairsPerPage - 1) / kv.PairsPerPage
		for i := 1; i <= numLeaves; i++ {
			last := i*kv.PairsPerPage - 1
			if last >= len(entries) {
				last = len(entries) - 1
			}
			s.levels[numLevels-2].add(entries[last].Key)
		}
	}

	if err := writeEntriesAt(f, leaf.nextByte, entries); err != nil {
		return err
	}
	leaf.advance(uint64(len(entries)) * kv.PairByteSize)

	if endOfRun {
		s.maxLeafPage = (leaf.nextByte+kv.PageSize-1)/kv.PageSize - 1
		if len(entries)%kv.PairsPerPage != 0 {
			if err := writeSentinelAt(f, leaf.nextByte); err != nil {
				return err
			}
		}
	}
	return s.writeInternalLevels(f, false)
}

// writeInternalLevels drains the fence-key accumulators bottom-up. Mid
// stream only whole pages are written, so later batches stay page aligned;
// at end of file everything is flushed and partial pages are sentinel
// terminated.
func (s *SST) writeInternalLevels(f *os.File, endOfFile bool) error {
	for i := len(s.levels) - 2; i >= 0; i-- {
		lvl := s.levels[i]
		writeCount := (len(lvl.keys) / kv.WordsPerPage) * kv.WordsPerPage
		if endOfFile {
			writeCount = len(lvl.keys)
		}
		if writeCount == 0 {
			continue
		}

		if i > 0 {
			numPages := (writeCount + kv.WordsPerPage - 1) / kv.WordsPerPage
			for p := 1; p <= numPages; p++ {
				last := p*kv.WordsPerPage - 1
				if last >= writeCount {
					last = writeCount - 1
				}
				s.levels[i-1].add(lvl.keys[last])
			}
		}

		if err := writeWordsAt(f, lvl.nextByte, lvl.keys[:writeCount]); err != nil {
			return err
		}
		lvl.advance(uint64(writeCount) * kv.KeyByteSize)
		if endOfFile && writeCount%kv.WordsPerPage != 0 {
			if err := writeSentinelAt(f, lvl.nextByte); err != nil {
				return err
			}
		}
		lvl.keys = lvl.keys[writeCount:]
	}
	return nil
}

// FinishFile flushes the remaining internal fences, appends the Bloom
// filter after the last leaf page, and writes the metadata page last so
// that a finished file is self-describing. The in-memory filter array is
// released afterwards; readers use the on-disk snapshot.
func (s *SST) FinishFile(f *os.File) error {
	if err := s.writeInternalLevels(f, true); err != nil {
		return err
	}

	if s.filter != nil && s.filter.WordCount() > 0 {
		off := (s.maxLeafPage + 1) * kv.PageSize
		if err := writeWordsAt(f, off, s.filter.Words()); err != nil {
			return err
		}
	}

	if err := s.writeMetadata(f); err != nil {
		return err
	}
	if s.filter != nil {
		s.filter.ClearArray()
	}
	return nil
}

func (s *SST) writeMetadata(f *os.File) error {
	words := make([]uint64, 0, len(s.levels)+4)
	words = append(words, uint64(len(s.levels)))
	for _, lvl := range s.levels {
		words = append(words, lvl.startByte/kv.PageSize)
	}
	if s.filter != nil && s.filter.WordCount() > 0 {
		words = append(words, s.filter.Pages(), s.maxLeafPage+1)
	} else {
		words = append(words, 0, 0)
	}
	words = append(words, kv.Invalid)
	return writeWordsAt(f, 0, words)
}
