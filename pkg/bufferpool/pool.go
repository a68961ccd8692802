// Package bufferpool caches SST pages behind an extendible hash directory
// with a pluggable eviction policy. The pool owns every cached byte;
// readers get copies so later inserts can evict freely.
package bufferpool

import (
	"errors"
	"math"

	"github.com/dd0wney/cluso-kv/pkg/logging"
	"github.com/dd0wney/cluso-kv/pkg/metrics"
)

// ExpandThreshold is the load factor above which the pool grows the
// directory before inserting, and the headroom target Resize evicts down
// to.
const ExpandThreshold = 0.8

// ErrPoolFull is returned when the directory can neither expand nor
// evict; it indicates a misconfigured pool rather than a caller mistake.
var ErrPoolFull = errors.New("buffer pool: cannot expand or evict")

// BufferPool is the page cache facade over the hash directory and an
// eviction policy.
type BufferPool struct {
	dir     *Directory
	policy  Policy
	log     logging.Logger
	metrics *metrics.Registry
}

// Option customizes a pool.
type Option func(*BufferPool)

// WithLogger attaches a structured logger.
func WithLogger(log logging.Logger) Option {
	return func(p *BufferPool) { p.log = log }
}

// WithMetrics attaches a metrics registry.
func WithMetrics(reg *metrics.Registry) Option {
	return func(p *BufferPool) { p.metrics = reg }
}

// New creates a pool bounded between minPages and maxPages cached pages,
// both rounded down to powers of two for the directory depths.
func New(minPages, maxPages int, policyType PolicyType, opts ...Option) *BufferPool {
	p := &BufferPool{
		dir:    NewDirectory(minPages, maxPages, 1),
		policy: NewPolicy(policyType),
		log:    logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Get returns a copy of the cached page, or nil on a miss. Copying out is
// the ownership contract: the pool may evict the cached bytes on any
// later insert.
func (p *BufferPool) Get(pageID string) []uint64 {
	cached := p.dir.Get(pageID)
	if cached == nil {
		p.metrics.RecordCacheMiss()
		return nil
	}
	p.policy.OnAccess(pageID)
	p.metrics.RecordCacheHit()
	out := make([]uint64, len(cached.words))
	copy(out, cached.words)
	return out
}

// Insert caches words under pageID, growing the directory past the load
// threshold and evicting once growth is exhausted. Re-inserting an
// existing id replaces its bytes in place.
func (p *BufferPool) Insert(pageID string, words []uint64) {
	if existing := p.dir.Get(pageID); existing != nil {
		existing.words = words
		p.policy.OnAccess(pageID)
		return
	}

	if float64(p.dir.Size()) > float64(p.dir.NumEntries())*ExpandThreshold {
		if !p.dir.ExpandDirectory() {
			if err := p.evictOne(); err != nil {
				p.log.Error("buffer pool insert failed", logging.PageID(pageID), logging.Error(err))
				return
			}
		}
	}

	p.dir.Insert(&page{id: pageID, words: words})
	p.policy.OnInsert(pageID)
	p.metrics.SetCachePages(p.dir.Size())
}

// Remove drops a page from the directory and the eviction structure.
func (p *BufferPool) Remove(pageID string) {
	if p.dir.Remove(pageID) {
		p.policy.Remove(pageID)
		p.metrics.SetCachePages(p.dir.Size())
	}
}

// Resize re-bounds the pool at newMaxPages, evicting down to the load
// target before shrinking the directory.
func (p *BufferPool) Resize(newMaxPages int) {
	evictions := int(math.Ceil(float64(p.dir.Size()) - ExpandThreshold*float64(newMaxPages)))
	if evictions > 0 {
		for i := 0; i < evictions; i++ {
			if err := p.evictOne(); err != nil {
				break
			}
		}
		p.dir.ShrinkDirectory()
	}
	p.dir.SetMaxSize(newMaxPages)
	p.log.Debug("buffer pool resized",
		logging.Int("max_pages", newMaxPages),
		logging.Int("cached", p.dir.Size()))
}

func (p *BufferPool) evictOne() error {
	victim, ok := p.policy.Victim()
	if !ok {
		return ErrPoolFull
	}
	p.dir.Remove(victim)
	p.metrics.RecordCacheEviction()
	p.metrics.SetCachePages(p.dir.Size())
	return nil
}

// SetMinPages adjusts the pool's floor; the directory never shrinks
// below the corresponding depth.
func (p *BufferPool) SetMinPages(minPages int) {
	p.dir.SetMinSize(minPages)
}

// Size returns the number of cached pages.
func (p *BufferPool) Size() int { return p.dir.Size() }

// GlobalDepth exposes the directory depth for tests and stats.
func (p *BufferPool) GlobalDepth() int { return p.dir.GlobalDepth() }
