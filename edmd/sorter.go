package edmd

import "container/heap"

// sorter is the Global Sorter: an indirect min-heap over particle ids,
// ordered by the head of each particle's PEL. It is a CBT-style indexed
// heap built on container/heap in the manner of cluster/event_heap.go, not
// the pairing-heap alternative.
//
// Event times are stored absolute (the DtOrT field on each EventRecord is
// the simulation's sys_time at which the event is predicted to fire). This
// resolves spec §9's storage choice in favor of absolute time: stream(dt)
// then costs O(1) bookkeeping instead of an O(E) walk, at the price of
// making rescale_times(factor) the one necessarily O(E) operation (it must
// touch every stored value to keep them consistent with the rescaled units).
type sorter struct {
	pels  []*pel
	order []int // order[i] = particle id occupying heap slot i
	pos   []int // pos[id]  = heap slot currently holding id

	dirty     []bool
	dirtyList []int

	sysTime float64
}

func newSorter() *sorter {
	return &sorter{}
}

// resize allocates state for n particles and resets all of it to empty.
func (s *sorter) resize(n int) {
	s.pels = make([]*pel, n)
	s.order = make([]int, n)
	s.pos = make([]int, n)
	s.dirty = make([]bool, n)
	s.dirtyList = s.dirtyList[:0]
	for i := 0; i < n; i++ {
		s.pels[i] = newPEL()
		s.order[i] = i
		s.pos[i] = i
	}
	s.sysTime = 0
}

// init finalises the heap after initial seeding via push. O(N).
func (s *sorter) init() {
	heap.Init(s.asHeap())
}

// clear empties every PEL and resets dirty tracking, without changing N.
func (s *sorter) clear() {
	for i, p := range s.pels {
		p.clear()
		s.order[i] = i
		s.pos[i] = i
		s.dirty[i] = false
	}
	s.dirtyList = s.dirtyList[:0]
	s.sysTime = 0
}

// clearPEL empties one particle's PEL and marks it dirty.
func (s *sorter) clearPEL(primaryID int) {
	s.pels[primaryID].clear()
	s.markDirty(primaryID)
}

// push appends ev to the PEL of primaryID and marks that particle dirty.
// The global heap position is not touched until update/sort.
func (s *sorter) push(ev EventRecord, primaryID int) {
	s.pels[primaryID].push(ev)
	s.markDirty(primaryID)
}

func (s *sorter) markDirty(id int) {
	if !s.dirty[id] {
		s.dirty[id] = true
		s.dirtyList = append(s.dirtyList, id)
	}
}

// update immediately re-establishes primaryID's heap position based on its
// current PEL head (an empty PEL sorts as +Inf), independent of the dirty
// queue used by sort.
func (s *sorter) update(primaryID int) {
	heap.Fix(s.asHeap(), s.pos[primaryID])
	s.dirty[primaryID] = false
}

// sort applies every outstanding dirty update queued since the last sort.
// After sort returns, the heap root reflects the minimum PEL head overall.
func (s *sorter) sort() {
	for _, id := range s.dirtyList {
		if s.dirty[id] {
			heap.Fix(s.asHeap(), s.pos[id])
			s.dirty[id] = false
		}
	}
	s.dirtyList = s.dirtyList[:0]
}

// headOf returns the head event of id's PEL, or a NONE sentinel at +Inf if
// the PEL is empty.
func (s *sorter) headOf(id int) EventRecord {
	if ev, ok := s.pels[id].peek(); ok {
		return ev
	}
	return noneEvent(id)
}

// root is the particle id currently at the top of the heap.
func (s *sorter) root() int {
	return s.order[0]
}

// nextTime, nextKind, nextPrimaryID, nextSecondaryID, nextCounterStamp are
// the next_* accessors over the current root's head event.
func (s *sorter) nextTime() float64         { return s.headOf(s.root()).DtOrT }
func (s *sorter) nextKind() EventKind       { return s.headOf(s.root()).Kind }
func (s *sorter) nextPrimaryID() int        { return s.root() }
func (s *sorter) nextSecondaryID() int      { return s.headOf(s.root()).SecondaryID }
func (s *sorter) nextCounterStamp() uint64  { return s.headOf(s.root()).CounterStamp }

// popNextEvent removes the root's head event from its own PEL. The caller
// is responsible for calling update(root) (directly or via sort) afterward;
// the heap is deliberately left stale in between so a full_update on the
// same particle doesn't pay for two heap fixes.
func (s *sorter) popNextEvent() EventRecord {
	id := s.root()
	ev, _ := s.pels[id].pop()
	return ev
}

// rescaleTimes multiplies every stored event time, across every PEL, by
// factor, and rescales the sys_time bookkeeping to match. O(E); must never
// be called mid-dispatch.
func (s *sorter) rescaleTimes(factor float64) {
	for _, p := range s.pels {
		for i := range p.items {
			p.items[i].DtOrT *= factor
		}
	}
	s.sysTime *= factor
}

// stream advances the sys_time bookkeeping by dt. Because event times are
// stored absolute, no PEL entry needs to change: O(1).
func (s *sorter) stream(dt float64) {
	s.sysTime += dt
}

// asHeap exposes the container/heap.Interface view used internally by
// init/update/sort.
func (s *sorter) asHeap() heap.Interface { return (*indexHeap)(s) }

type indexHeap sorter

func (h *indexHeap) Len() int { return len(h.order) }

func (h *indexHeap) Less(i, j int) bool {
	s := (*sorter)(h)
	return less(s.headOf(h.order[i]), s.headOf(h.order[j]))
}

func (h *indexHeap) Swap(i, j int) {
	h.order[i], h.order[j] = h.order[j], h.order[i]
	h.pos[h.order[i]] = i
	h.pos[h.order[j]] = j
}

// Push/Pop are required by heap.Interface but unused: the sorter's particle
// set has fixed size N, established once by resize.
func (h *indexHeap) Push(x any) { panic("sorter: Push is unsupported; call resize instead") }
func (h *indexHeap) Pop() any   { panic("sorter: Pop is unsupported; call resize instead") }
