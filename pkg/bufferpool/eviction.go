package bufferpool

// Policy selects cached pages for eviction. Dispatch is by capability,
// not inheritance: any type with these four methods can drive the pool.
type Policy interface {
	// OnInsert registers a newly cached page.
	OnInsert(pageID string)
	// OnAccess records a hit on a cached page.
	OnAccess(pageID string)
	// Victim picks one page to evict and forgets it. ok is false when
	// nothing is tracked.
	Victim() (pageID string, ok bool)
	// Remove forgets a page that was dropped without eviction.
	Remove(pageID string)
}

// PolicyType names the built-in eviction policies.
type PolicyType string

const (
	PolicyLRU   PolicyType = "lru"
	PolicyClock PolicyType = "clock"
)

// NewPolicy constructs a built-in policy; unknown names fall back to LRU.
func NewPolicy(t PolicyType) Policy {
	if t == PolicyClock {
		return NewClock()
	}
	return NewLRU()
}
