package kvstore

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dd0wney/cluso-kv/pkg/logging"
	"github.com/dd0wney/cluso-kv/pkg/metrics"
)

// SearchMode selects how flat (non-LSM) tables are searched and written.
type SearchMode int

const (
	// BinarySearch stores tables as plain page runs probed by page-level
	// binary search.
	BinarySearch SearchMode = iota
	// BTreeSearch stores tables with a static B-tree index.
	BTreeSearch
)

// String returns the configuration spelling of the mode.
func (m SearchMode) String() string {
	if m == BinarySearch {
		return "binary"
	}
	return "btree"
}

// UnmarshalYAML decodes "binary" or "btree".
func (m *SearchMode) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	switch s {
	case "binary":
		*m = BinarySearch
	case "btree", "b_tree":
		*m = BTreeSearch
	default:
		return fmt.Errorf("%w: unknown search_mode %q", ErrBadOptions, s)
	}
	return nil
}

// MarshalYAML encodes the configuration spelling.
func (m SearchMode) MarshalYAML() (any, error) {
	return m.String(), nil
}

// BufferPoolOptions configures the shared page cache.
type BufferPoolOptions struct {
	Enabled  bool   `yaml:"enabled"`
	MinSize  int    `yaml:"min_size"` // pages, rounded down to a power of two
	MaxSize  int    `yaml:"max_size"` // pages, rounded down to a power of two
	Eviction string `yaml:"eviction"` // "lru" or "clock"
}

// LSMOptions configures the level hierarchy.
type LSMOptions struct {
	Enabled           bool `yaml:"enabled"`
	BloomBitsPerEntry int  `yaml:"bloom_bits_per_entry"`
	InputBufferPages  int  `yaml:"input_buffer_pages"`
	OutputBufferPages int  `yaml:"output_buffer_pages"`
}

// Options configures a store. The zero value is not usable; start from
// DefaultOptions.
type Options struct {
	MemtableMaxEntries int               `yaml:"memtable_max_entries"`
	SearchMode         SearchMode        `yaml:"search_mode"`
	BufferPool         BufferPoolOptions `yaml:"buffer_pool"`
	LSM                LSMOptions        `yaml:"lsm"`

	// Logger defaults to a no-op logger; Metrics defaults to disabled.
	Logger  logging.Logger    `yaml:"-"`
	Metrics *metrics.Registry `yaml:"-"`
}

// DefaultOptions returns the configuration a fresh store starts from: a
// 1024-entry memtable, B-tree tables, an LRU buffer pool, and an LSM tree
// with 10 bits per bloom entry (about a 1% false-positive rate).
func DefaultOptions() Options {
	return Options{
		MemtableMaxEntries: 1024,
		SearchMode:         BTreeSearch,
		BufferPool: BufferPoolOptions{
			Enabled:  true,
			MinSize:  16,
			MaxSize:  256,
			Eviction: "lru",
		},
		LSM: LSMOptions{
			Enabled:           true,
			BloomBitsPerEntry: 10,
			InputBufferPages:  4,
			OutputBufferPages: 4,
		},
	}
}

// LoadOptions reads a YAML options file over the defaults.
func LoadOptions(path string) (Options, error) {
	opts := DefaultOptions()
	data, err := os.ReadFile(path)
	if err != nil {
		return opts, pathError("load options", path, err)
	}
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return opts, pathError("load options", path, err)
	}
	return opts, nil
}

func (o *Options) validate() error {
	if o.MemtableMaxEntries < 1 {
		return fmt.Errorf("%w: memtable_max_entries must be positive", ErrBadOptions)
	}
	if o.BufferPool.Enabled {
		if o.BufferPool.MinSize < 1 || o.BufferPool.MaxSize < o.BufferPool.MinSize {
			return fmt.Errorf("%w: buffer pool sizes must satisfy 1 <= min <= max", ErrBadOptions)
		}
		switch o.BufferPool.Eviction {
		case "lru", "clock":
		default:
			return fmt.Errorf("%w: unknown eviction policy %q", ErrBadOptions, o.BufferPool.Eviction)
		}
	}
	if o.LSM.Enabled {
		if o.LSM.BloomBitsPerEntry < 1 {
			return fmt.Errorf("%w: bloom_bits_per_entry must be >= 1", ErrBadOptions)
		}
		if o.LSM.InputBufferPages < 1 || o.LSM.OutputBufferPages < 1 {
			return fmt.Errorf("%w: compaction buffers must be >= 1 page", ErrBadOptions)
		}
	}
	return nil
}
