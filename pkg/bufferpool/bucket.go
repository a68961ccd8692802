package bufferpool

// page is one cached page: its identity plus its decoded words.
type page struct {
	id    string
	words []uint64
}

// bucket holds the pages of one directory slot. With the default bucket
// capacity of one page, buckets are effectively the pool's frames.
type bucket struct {
	localDepth int
	pages      []*page
}

func newBucket(depth int) *bucket {
	return &bucket{localDepth: depth}
}

func (b *bucket) get(pageID string) *page {
	for _, p := range b.pages {
		if p.id == pageID {
			return p
		}
	}
	return nil
}

func (b *bucket) insert(p *page) {
	b.pages = append(b.pages, p)
}

func (b *bucket) remove(pageID string) bool {
	for i, p := range b.pages {
		if p.id == pageID {
			b.pages = append(b.pages[:i], b.pages[i+1:]...)
			return true
		}
	}
	return false
}

func (b *bucket) size() int { return len(b.pages) }

func (b *bucket) clear() []*page {
	pages := b.pages
	b.pages = nil
	return pages
}
