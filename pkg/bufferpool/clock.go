package bufferpool

import (
	"container/list"

	"github.com/bits-and-blooms/bitset"
)

type clockFrame struct {
	pageID string
	slot   uint
}

// Clock approximates LRU with a ring of frames, a sweeping hand, and one
// reference bit per frame. The reference bits live in a BitSet indexed by
// a stable per-frame slot so access and sweep stay constant time.
type Clock struct {
	ring  *list.List
	nodes map[string]*list.Element
	hand  *list.Element
	refs  *bitset.BitSet
	free  []uint
	next  uint
}

// NewClock creates an empty CLOCK policy.
func NewClock() *Clock {
	return &Clock{
		ring:  list.New(),
		nodes: make(map[string]*list.Element),
		refs:  bitset.New(64),
	}
}

func (p *Clock) allocSlot() uint {
	if n := len(p.free); n > 0 {
		slot := p.free[n-1]
		p.free = p.free[:n-1]
		return slot
	}
	slot := p.next
	p.next++
	return slot
}

// OnInsert places the page just behind the hand, so it is the last frame
// the current sweep reaches, with its reference bit clear.
func (p *Clock) OnInsert(pageID string) {
	frame := &clockFrame{pageID: pageID, slot: p.allocSlot()}
	var elem *list.Element
	switch {
	case p.ring.Len() == 0:
		elem = p.ring.PushBack(frame)
		p.hand = elem
	case p.hand == p.ring.Front():
		elem = p.ring.PushBack(frame)
	default:
		elem = p.ring.InsertBefore(frame, p.hand)
	}
	p.refs.Clear(frame.slot)
	p.nodes[pageID] = elem
}

// OnAccess sets the page's reference bit, sparing it one sweep.
func (p *Clock) OnAccess(pageID string) {
	if elem, ok := p.nodes[pageID]; ok {
		p.refs.Set(elem.Value.(*clockFrame).slot)
	}
}

// Victim advances the hand, clearing reference bits, until it lands on a
// frame whose bit is already clear. That frame is evicted and the hand is
// left on the following slot.
func (p *Clock) Victim() (string, bool) {
	if p.ring.Len() == 0 {
		return "", false
	}
	cur := p.hand
	if cur == nil {
		cur = p.ring.Front()
	}
	for {
		frame := cur.Value.(*clockFrame)
		if !p.refs.Test(frame.slot) {
			next := p.nextWrap(cur)
			p.ring.Remove(cur)
			if p.ring.Len() == 0 {
				p.hand = nil
			} else {
				p.hand = next
			}
			delete(p.nodes, frame.pageID)
			p.free = append(p.free, frame.slot)
			return frame.pageID, true
		}
		p.refs.Clear(frame.slot)
		cur = p.nextWrap(cur)
	}
}

// Remove forgets a page without an eviction sweep.
func (p *Clock) Remove(pageID string) {
	elem, ok := p.nodes[pageID]
	if !ok {
		return
	}
	frame := elem.Value.(*clockFrame)
	if p.hand == elem {
		p.hand = p.nextWrap(elem)
	}
	p.ring.Remove(elem)
	if p.ring.Len() == 0 {
		p.hand = nil
	}
	delete(p.nodes, pageID)
	p.free = append(p.free, frame.slot)
}

// Len returns the number of tracked pages.
func (p *Clock) Len() int { return p.ring.Len() }

func (p *Clock) nextWrap(e *list.Element) *list.Element {
	if n := e.Next(); n != nil {
		return n
	}
	return p.ring.Front()
}
