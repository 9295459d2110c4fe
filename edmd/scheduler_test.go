package edmd

import (
	"math"
	"testing"
)

// === fakes ===

type fakeStore struct{ n int }

func (f *fakeStore) N() int { return f.n }

// fakePairs is a scripted PairDynamics: PredictInteraction consults a
// per-pair queue of canned responses, repeating the last dequeued value
// once the queue runs dry (mirroring a real predictor, which keeps
// returning the same prediction until something invalidates the pair).
type fakePairs struct {
	predictions map[[2]int][]EventRecord
	last        map[[2]int]EventRecord
	syncedPairs [][2]int
	syncedOne   []int
	executed    []EventRecord
}

func newFakePairs() *fakePairs {
	return &fakePairs{
		predictions: make(map[[2]int][]EventRecord),
		last:        make(map[[2]int]EventRecord),
	}
}

func pairKey(p1, p2 int) [2]int {
	if p1 > p2 {
		p1, p2 = p2, p1
	}
	return [2]int{p1, p2}
}

func (f *fakePairs) queue(p1, p2 int, ev EventRecord) {
	k := pairKey(p1, p2)
	f.predictions[k] = append(f.predictions[k], ev)
}

func (f *fakePairs) PredictInteraction(p1, p2 int) EventRecord {
	k := pairKey(p1, p2)
	if q := f.predictions[k]; len(q) > 0 {
		ev := q[0]
		f.predictions[k] = q[1:]
		f.last[k] = ev
		return ev
	}
	if ev, ok := f.last[k]; ok {
		return ev
	}
	return EventRecord{Kind: NONE}
}

func (f *fakePairs) SyncParticle(p int)  { f.syncedOne = append(f.syncedOne, p) }
func (f *fakePairs) SyncPair(p1, p2 int) { f.syncedPairs = append(f.syncedPairs, pairKey(p1, p2)) }
func (f *fakePairs) ExecuteInteraction(p1, p2 int, ev EventRecord, sched *Scheduler) {
	f.executed = append(f.executed, ev)
}

// fakeNeighbours proposes a fixed adjacency list, ignoring n.
type fakeNeighbours struct{ adj map[int][]int }

func (f *fakeNeighbours) Partners(p int, n int) []int { return f.adj[p] }

// fakeLocal is a scripted LocalSource: claims a fixed set of particles and
// returns queued predictions in order, one per call.
type fakeLocal struct {
	id       int
	claims   map[int]bool
	queue    []EventRecord
	executed []EventRecord
}

func (f *fakeLocal) ID() int           { return f.id }
func (f *fakeLocal) Claims(p int) bool { return f.claims[p] }
func (f *fakeLocal) Predict(p int) EventRecord {
	if len(f.queue) == 0 {
		return EventRecord{Kind: NONE}
	}
	ev := f.queue[0]
	f.queue = f.queue[1:]
	return ev
}
func (f *fakeLocal) Execute(p int, ev EventRecord, sched *Scheduler) {
	f.executed = append(f.executed, ev)
}

type fakeSystem struct {
	id       int
	dt       float64
	executed int
}

func (f *fakeSystem) ID() int                  { return f.id }
func (f *fakeSystem) NextDt() float64          { return f.dt }
func (f *fakeSystem) Execute(sched *Scheduler) { f.executed++ }

// fakeGlobal is a scripted GlobalSource: claims a fixed set of particles and
// returns queued predictions in order. By default Execute never touches the
// clock, exercising the clock-transparent "doesn't need to advance it at
// all" case; setting advanceSelfTo exercises the "advances sys_time itself
// via Scheduler.Advance" case instead.
type fakeGlobal struct {
	id            int
	claims        map[int]bool
	queue         []EventRecord
	advanceSelfTo float64
	selfAdvance   bool
	executed      int
}

func (f *fakeGlobal) ID() int           { return f.id }
func (f *fakeGlobal) Claims(p int) bool { return f.claims[p] }
func (f *fakeGlobal) Predict(p int) EventRecord {
	if len(f.queue) == 0 {
		return EventRecord{Kind: NONE}
	}
	ev := f.queue[0]
	f.queue = f.queue[1:]
	return ev
}
func (f *fakeGlobal) Execute(p int, sched *Scheduler) {
	f.executed++
	if f.selfAdvance {
		sched.Advance(f.advanceSelfTo)
	}
}

func newTestScheduler(n int, pairs PairDynamics, neighbours NeighbourSource, locals []LocalSource, systems []SystemSource) *Scheduler {
	s := NewScheduler(&fakeStore{n: n}, pairs, neighbours, nil, locals, systems)
	s.Initialise()
	return s
}

// === S1: two-particle head-on ===

func TestScheduler_S1_TwoParticleHeadOn(t *testing.T) {
	pairs := newFakePairs()
	pairs.queue(0, 1, EventRecord{DtOrT: 0.5, Kind: INTERACTION})
	neighbours := &fakeNeighbours{adj: map[int][]int{0: {1}, 1: {0}}}

	s := newTestScheduler(2, pairs, neighbours, nil, nil)
	s.RunNextEvent()

	if s.SysTime() != 0.5 {
		t.Errorf("SysTime() = %v, want 0.5", s.SysTime())
	}
	if len(pairs.executed) != 1 {
		t.Fatalf("expected exactly one executed interaction, got %d", len(pairs.executed))
	}
	if pairs.executed[0].DtOrT != 0.5 {
		t.Errorf("executed event time = %v, want 0.5", pairs.executed[0].DtOrT)
	}
}

// === S2: stale-skip ===
//
// Events are pushed directly into the Global Sorter rather than via
// add_events, so the scenario's exact shape (particle 0 predicted to hit 1
// at t=0.3 and 2 at t=0.5) is not disturbed by the odd/even parity rule
// add_events applies during symmetric initialisation (see §4.5).
func TestScheduler_S2_StaleInteractionIsSkipped(t *testing.T) {
	pairs := newFakePairs()
	pairs.queue(0, 2, EventRecord{DtOrT: 0.5, Kind: INTERACTION})
	neighbours := &fakeNeighbours{}

	s := newTestScheduler(3, pairs, neighbours, nil, nil)

	s.sorter.push(EventRecord{DtOrT: 0.3, Kind: INTERACTION, PrimaryID: 0, SecondaryID: 1, CounterStamp: s.counters.stampOf(1)}, 0)
	s.sorter.push(EventRecord{DtOrT: 0.5, Kind: INTERACTION, PrimaryID: 0, SecondaryID: 2, CounterStamp: s.counters.stampOf(2)}, 0)
	s.sorter.update(0)
	s.sorter.sort()

	// Particle 1 is invalidated by a wall hit at t=0.2, staling the t=0.3
	// event's captured counter stamp before it is ever dispatched.
	s.counters.invalidate(1)

	s.RunNextEvent()

	if s.SysTime() != 0.5 {
		t.Errorf("SysTime() = %v, want 0.5 (the t=0.3 interaction must be skipped as stale)", s.SysTime())
	}
	if s.Stats.StaleSkips == 0 {
		t.Error("expected at least one StaleSkips to be recorded")
	}
	if len(pairs.executed) != 1 || pairs.executed[0].DtOrT != 0.5 {
		t.Errorf("expected only the t=0.5 interaction to execute, got %v", pairs.executed)
	}
}

// === S3: rejection glance ===
//
// Drives the watchdog counter directly to its threshold boundary: at
// rejections == threshold-1, runInteraction must reset the counter and
// execute rather than reject once more, guaranteeing termination. A LOCAL
// event on particle 1 at t=1.2 sits between the original time and the
// recomputed t=1.5, so the recompute lands later than the next queued event.
func TestScheduler_S3_RejectionWatchdogForcesExecutionAtThreshold(t *testing.T) {
	pairs := newFakePairs()
	pairs.queue(0, 1, EventRecord{DtOrT: 1.5, Kind: INTERACTION})
	neighbours := &fakeNeighbours{}

	s := newTestScheduler(2, pairs, neighbours, nil, nil)
	s.SetRejectionThreshold(10)
	s.interactionRejections = 9

	head := EventRecord{DtOrT: 1.0, Kind: INTERACTION, PrimaryID: 0, SecondaryID: 1}
	s.sorter.push(head, 0)
	s.sorter.push(EventRecord{DtOrT: 1.2, Kind: LOCAL, PrimaryID: 1}, 1)
	s.sorter.update(0)
	s.sorter.update(1)
	s.sorter.sort()

	s.runInteraction(head)

	if s.Stats.Dispatched[INTERACTION] != 1 {
		t.Fatalf("Dispatched[INTERACTION] = %d, want 1: the 10th attempt must execute, not reject again", s.Stats.Dispatched[INTERACTION])
	}
	if s.interactionRejections != 0 {
		t.Errorf("interactionRejections = %d, want reset to 0 on execution", s.interactionRejections)
	}
}

func TestScheduler_RejectionBelowThreshold_TriggersFullUpdate(t *testing.T) {
	pairs := newFakePairs()
	// Stale the pair's prediction at dispatch time so the recompute
	// disagrees with the originally scheduled time.
	pairs.queue(0, 1, EventRecord{DtOrT: 5.0, Kind: INTERACTION})
	// A third particle's event sits ahead of the stale recompute.
	third := &fakeLocal{id: 99, claims: map[int]bool{2: true}, queue: []EventRecord{{DtOrT: 1.0, Kind: LOCAL}}}
	neighbours := &fakeNeighbours{}

	s := newTestScheduler(3, pairs, neighbours, []LocalSource{third}, nil)
	s.SetRejectionThreshold(10)

	head := EventRecord{DtOrT: 0.5, Kind: INTERACTION, PrimaryID: 0, SecondaryID: 1}
	s.sorter.push(head, 0)
	s.sorter.update(0)
	s.sorter.sort()

	s.runInteraction(head)

	if s.Stats.Dispatched[INTERACTION] != 0 {
		t.Error("a recompute landing after the next queued event must not execute immediately")
	}
	if s.Stats.Rejections == 0 {
		t.Error("expected a Rejections count from the glancing recompute")
	}
	if s.interactionRejections != 1 {
		t.Errorf("interactionRejections = %d, want 1", s.interactionRejections)
	}
}

// === S4: SYSTEM tick ===

func TestScheduler_S4_SystemTickFiresOnSchedule(t *testing.T) {
	sys := &fakeSystem{id: 1, dt: 1.0}
	pairs := newFakePairs()
	neighbours := &fakeNeighbours{}

	s := newTestScheduler(1, pairs, neighbours, nil, []SystemSource{sys})

	s.RunNextEvent()

	if sys.executed != 1 {
		t.Errorf("system source executed %d times, want 1", sys.executed)
	}
	if s.SysTime() != 1.0 {
		t.Errorf("SysTime() = %v, want 1.0", s.SysTime())
	}
	if s.Stats.Dispatched[SYSTEM] != 1 {
		t.Errorf("Dispatched[SYSTEM] = %d, want 1", s.Stats.Dispatched[SYSTEM])
	}
}

// === S5: NONE recovery ===

func TestScheduler_S5_NoneRecoveryCallsFullUpdate(t *testing.T) {
	local := &fakeLocal{
		id:     1,
		claims: map[int]bool{0: true},
		queue: []EventRecord{
			{DtOrT: 1.0, Kind: LOCAL},
			{Kind: NONE}, // recompute on pop finds nothing
		},
	}
	pairs := newFakePairs()
	neighbours := &fakeNeighbours{}

	s := newTestScheduler(1, pairs, neighbours, []LocalSource{local}, nil)
	before := s.SysTime()

	s.RunNextEvent()

	if s.SysTime() != before {
		t.Errorf("SysTime() advanced on a NONE recompute: got %v, want unchanged %v", s.SysTime(), before)
	}
	if s.Stats.FullUpdates == 0 {
		t.Error("a NONE recompute must trigger FullUpdate")
	}
	if len(local.executed) != 0 {
		t.Error("a NONE recompute must never execute")
	}
}

// === S6: rescale ===

func TestScheduler_S6_RescaleTimesDoublesNextEventTime(t *testing.T) {
	pairs := newFakePairs()
	neighbours := &fakeNeighbours{}
	s := newTestScheduler(2, pairs, neighbours, nil, nil)

	s.sorter.push(EventRecord{DtOrT: 10.0, Kind: INTERACTION, PrimaryID: 0, SecondaryID: 1}, 0)
	s.sorter.update(0)
	s.sorter.sort()

	before := s.sorter.nextTime()
	s.sorter.rescaleTimes(2.0)

	if got := s.sorter.nextTime(); got != before*2 {
		t.Errorf("nextTime() after rescale = %v, want %v", got, before*2)
	}
}

// === quantified invariants ===

func TestScheduler_Invariant_ClockNeverGoesBackwards(t *testing.T) {
	pairs := newFakePairs()
	neighbours := &fakeNeighbours{}
	s := newTestScheduler(2, pairs, neighbours, nil, nil)

	defer func() {
		if r := recover(); r != nil {
			t.Errorf("advanceTo should not panic on a forward-moving clock, got %v", r)
		}
	}()
	s.advanceTo(s.SysTime()+1.0, EventRecord{})
}

func TestScheduler_Invariant_ClockBackwardsPanics(t *testing.T) {
	pairs := newFakePairs()
	neighbours := &fakeNeighbours{}
	s := newTestScheduler(1, pairs, neighbours, nil, nil)
	s.advanceTo(5.0, EventRecord{})

	defer func() {
		if r := recover(); r == nil {
			t.Error("advanceTo with t < sysTime must panic with a FatalError")
		} else if _, ok := r.(*FatalError); !ok {
			t.Errorf("panic value = %T, want *FatalError", r)
		}
	}()
	s.advanceTo(4.0, EventRecord{})
}

func TestScheduler_Invariant_CounterMonotonicity(t *testing.T) {
	c := newCounterTable()
	c.resize(1)
	prev := c.stampOf(0)
	for i := 0; i < 5; i++ {
		c.invalidate(0)
		if c.stampOf(0) <= prev {
			t.Fatalf("counter did not increase: %d <= %d", c.stampOf(0), prev)
		}
		prev = c.stampOf(0)
	}
}

func TestScheduler_FullUpdatePair_InvalidatesBothParticles(t *testing.T) {
	pairs := newFakePairs()
	neighbours := &fakeNeighbours{}
	s := newTestScheduler(2, pairs, neighbours, nil, nil)

	stamp0Before := s.counters.stampOf(0)
	stamp1Before := s.counters.stampOf(1)

	s.FullUpdatePair(0, 1)

	if s.counters.stampOf(0) == stamp0Before {
		t.Error("FullUpdatePair must invalidate particle 0")
	}
	if s.counters.stampOf(1) == stamp1Before {
		t.Error("FullUpdatePair must invalidate particle 1")
	}
	if s.Stats.FullUpdates == 0 {
		t.Error("FullUpdatePair must record a FullUpdates stat")
	}
}

func TestScheduler_Initialise_EmptySorterHasNoRootEvent(t *testing.T) {
	pairs := newFakePairs()
	neighbours := &fakeNeighbours{}
	s := newTestScheduler(2, pairs, neighbours, nil, nil)

	if !s.sorter.headOf(s.sorter.root()).IsNone() {
		t.Error("a freshly initialised scheduler with no collaborators should have no pending event")
	}
}

// TestScheduler_RejectionReset_FiresOnSameEventFallthrough guards the "same
// pair, just re-queued" path of runInteraction: when the recompute lands
// later than the next queued event but that next event turns out to be the
// very same pair, the function falls through to execute rather than reject,
// and the watchdog counter must still reset to 0 on that fallthrough, not
// just on the branch that never enters the "later than next" check at all.
func TestScheduler_RejectionReset_FiresOnSameEventFallthrough(t *testing.T) {
	pairs := newFakePairs()
	pairs.queue(0, 1, EventRecord{DtOrT: 3.0, Kind: INTERACTION})
	neighbours := &fakeNeighbours{}

	s := newTestScheduler(2, pairs, neighbours, nil, nil)
	s.SetRejectionThreshold(10)
	s.interactionRejections = 5

	head := EventRecord{DtOrT: 1.0, Kind: INTERACTION, PrimaryID: 0, SecondaryID: 1}
	requeued := EventRecord{DtOrT: 2.0, Kind: INTERACTION, PrimaryID: 0, SecondaryID: 1}
	s.sorter.push(head, 0)
	s.sorter.push(requeued, 0)
	s.sorter.update(0)
	s.sorter.sort()

	s.runInteraction(head)

	if s.Stats.Dispatched[INTERACTION] != 1 {
		t.Fatalf("Dispatched[INTERACTION] = %d, want 1: a same-pair fallthrough must execute", s.Stats.Dispatched[INTERACTION])
	}
	if s.interactionRejections != 0 {
		t.Errorf("interactionRejections = %d, want reset to 0 on the same-pair fallthrough execution", s.interactionRejections)
	}
}

// TestScheduler_RunGlobal_DoesNotStreamClock dispatches a real GLOBAL event
// through RunNextEvent and confirms the clock is left untouched: GLOBAL
// sources are clock-transparent, so only their own Execute (or nothing at
// all) may advance sys_time, never the dispatch loop on their behalf.
func TestScheduler_RunGlobal_DoesNotStreamClock(t *testing.T) {
	global := &fakeGlobal{
		id:     1,
		claims: map[int]bool{0: true},
		queue:  []EventRecord{{DtOrT: 5.0, Kind: GLOBAL}},
	}
	store := &fakeStore{n: 1}
	s := NewScheduler(store, newFakePairs(), &fakeNeighbours{}, []GlobalSource{global}, nil, nil)
	s.Initialise()

	s.RunNextEvent()

	if global.executed != 1 {
		t.Errorf("global source executed %d times, want 1", global.executed)
	}
	if s.SysTime() != 0 {
		t.Errorf("SysTime() = %v after a GLOBAL dispatch, want unchanged 0 (GLOBAL is clock-transparent)", s.SysTime())
	}
	if s.Stats.Dispatched[GLOBAL] != 1 {
		t.Errorf("Dispatched[GLOBAL] = %d, want 1", s.Stats.Dispatched[GLOBAL])
	}
}

// TestScheduler_RunGlobal_SourceAdvancesClockViaHook exercises the other
// half of the clock-transparent contract: a GlobalSource whose Execute
// calls Scheduler.Advance itself, rather than relying on runGlobal to do it.
func TestScheduler_RunGlobal_SourceAdvancesClockViaHook(t *testing.T) {
	global := &fakeGlobal{
		id:            1,
		claims:        map[int]bool{0: true},
		queue:         []EventRecord{{DtOrT: 5.0, Kind: GLOBAL}},
		selfAdvance:   true,
		advanceSelfTo: 5.0,
	}
	store := &fakeStore{n: 1}
	s := NewScheduler(store, newFakePairs(), &fakeNeighbours{}, []GlobalSource{global}, nil, nil)
	s.Initialise()

	s.RunNextEvent()

	if s.SysTime() != 5.0 {
		t.Errorf("SysTime() = %v, want 5.0 (advanced by the source's own Advance call)", s.SysTime())
	}
}

// TestScheduler_RunNextEvent_FatalsOnNonFiniteEventTime guards against a
// broken predictor: a NaN or +Inf event time reaching the head of the queue
// must panic with a *FatalError rather than silently stream sys_time to a
// non-finite value.
func TestScheduler_RunNextEvent_FatalsOnNonFiniteEventTime(t *testing.T) {
	pairs := newFakePairs()
	neighbours := &fakeNeighbours{}
	s := newTestScheduler(2, pairs, neighbours, nil, nil)

	broken := EventRecord{DtOrT: math.NaN(), Kind: INTERACTION, PrimaryID: 0, SecondaryID: 1}
	s.sorter.push(broken, 0)
	s.sorter.update(0)
	s.sorter.sort()

	defer func() {
		if r := recover(); r == nil {
			t.Error("RunNextEvent on a NaN event time must panic with a FatalError")
		} else if _, ok := r.(*FatalError); !ok {
			t.Errorf("panic value = %T, want *FatalError", r)
		}
	}()
	s.RunNextEvent()
}

func TestScheduler_RunNextEvent_FatalsOnInfiniteEventTime(t *testing.T) {
	pairs := newFakePairs()
	neighbours := &fakeNeighbours{}
	s := newTestScheduler(2, pairs, neighbours, nil, nil)

	broken := EventRecord{DtOrT: math.Inf(1), Kind: INTERACTION, PrimaryID: 0, SecondaryID: 1}
	s.sorter.push(broken, 0)
	s.sorter.update(0)
	s.sorter.sort()

	defer func() {
		if r := recover(); r == nil {
			t.Error("RunNextEvent on an infinite event time must panic with a FatalError")
		} else if _, ok := r.(*FatalError); !ok {
			t.Errorf("panic value = %T, want *FatalError", r)
		}
	}()
	s.RunNextEvent()
}
