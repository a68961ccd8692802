package bufferpool

import "container/list"

// LRU tracks recency with a doubly linked list: accessed pages move to
// the front, the victim is taken from the back.
type LRU struct {
	order *list.List
	nodes map[string]*list.Element
}

// NewLRU creates an empty LRU policy.
func NewLRU() *LRU {
	return &LRU{
		order: list.New(),
		nodes: make(map[string]*list.Element),
	}
}

func (p *LRU) OnInsert(pageID string) {
	p.nodes[pageID] = p.order.PushFront(pageID)
}

func (p *LRU) OnAccess(pageID string) {
	if elem, ok := p.nodes[pageID]; ok {
		p.order.MoveToFront(elem)
	}
}

func (p *LRU) Victim() (string, bool) {
	elem := p.order.Back()
	if elem == nil {
		return "", false
	}
	p.order.Remove(elem)
	pageID := elem.Value.(string)
	delete(p.nodes, pageID)
	return pageID, true
}

func (p *LRU) Remove(pageID string) {
	if elem, ok := p.nodes[pageID]; ok {
		p.order.Remove(elem)
		delete(p.nodes, pageID)
	}
}

// Len returns the number of tracked pages.
func (p *LRU) Len() int { return p.order.Len() }
