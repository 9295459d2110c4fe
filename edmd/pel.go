package edmd

import "container/heap"

// pel is a per-particle event list: a bounded min-heap of EventRecords for
// which one particle is the primary owner, ordered by the total dispatch
// order defined in event.go. It must never inspect CounterStamp; staleness
// is resolved lazily by the scheduler at dispatch time.
type pel struct {
	items []EventRecord
}

func newPEL() *pel {
	return &pel{}
}

// push inserts ev, which must already carry the particle's own id as
// PrimaryID. O(log k).
func (p *pel) push(ev EventRecord) {
	heap.Push((*pelHeap)(p), ev)
}

// peek returns the head event without removing it. ok is false for an
// empty PEL.
func (p *pel) peek() (EventRecord, bool) {
	if len(p.items) == 0 {
		return EventRecord{}, false
	}
	return p.items[0], true
}

// pop removes and returns the head event. O(log k).
func (p *pel) pop() (EventRecord, bool) {
	if len(p.items) == 0 {
		return EventRecord{}, false
	}
	ev := heap.Pop((*pelHeap)(p)).(EventRecord)
	return ev, true
}

// clear empties the PEL. O(k).
func (p *pel) clear() {
	p.items = p.items[:0]
}

func (p *pel) len() int { return len(p.items) }

// pelHeap adapts pel to container/heap.Interface without exposing heap
// machinery on the pel type itself.
type pelHeap pel

func (h pelHeap) Len() int            { return len(h.items) }
func (h pelHeap) Less(i, j int) bool  { return less(h.items[i], h.items[j]) }
func (h pelHeap) Swap(i, j int)       { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *pelHeap) Push(x any)         { h.items = append(h.items, x.(EventRecord)) }
func (h *pelHeap) Pop() any {
	old := h.items
	n := len(old)
	item := old[n-1]
	h.items = old[:n-1]
	return item
}
