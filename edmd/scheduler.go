package edmd

import (
	"math"

	"github.com/sirupsen/logrus"
)

// rejectionThreshold is the default watchdog limit: at most this many minus
// one consecutive rejections of the same kind happen; the next attempt
// accepts the numerically-stale event rather than spin forever re-predicting
// it.
const rejectionThreshold = 10

// Scheduler builds event predictions, maintains the Global Sorter, and runs
// the dispatch loop. It owns no particle state itself; all physics is
// delegated to the injected collaborators.
type Scheduler struct {
	particles  ParticleStore
	pairs      PairDynamics
	neighbours NeighbourSource

	globals     []GlobalSource
	locals      []LocalSource
	systems     []SystemSource
	globalsByID map[int]GlobalSource
	localsByID  map[int]LocalSource
	systemsByID map[int]SystemSource

	sorter   *sorter
	counters *counterTable

	n       int
	sysSlot int // dedicated PEL slot (index n) holding SYSTEM events
	sysTime float64
	seq     uint64

	interactionRejections int
	localRejections       int
	threshold              int

	log   logrus.FieldLogger
	Stats *Stats
}

// NewScheduler constructs a Scheduler over the given collaborators. The
// returned value is not yet runnable; call Initialise before RunNextEvent.
func NewScheduler(particles ParticleStore, pairs PairDynamics, neighbours NeighbourSource, globals []GlobalSource, locals []LocalSource, systems []SystemSource) *Scheduler {
	s := &Scheduler{
		particles:   particles,
		pairs:       pairs,
		neighbours:  neighbours,
		globals:     globals,
		locals:      locals,
		systems:     systems,
		globalsByID: make(map[int]GlobalSource, len(globals)),
		localsByID:  make(map[int]LocalSource, len(locals)),
		systemsByID: make(map[int]SystemSource, len(systems)),
		sorter:      newSorter(),
		counters:    newCounterTable(),
		threshold:   rejectionThreshold,
		log:         logrus.StandardLogger(),
		Stats:       NewStats(),
	}
	for _, g := range globals {
		s.globalsByID[g.ID()] = g
	}
	for _, l := range locals {
		s.localsByID[l.ID()] = l
	}
	for _, sys := range systems {
		s.systemsByID[sys.ID()] = sys
	}
	return s
}

// SetLogger injects the sink that receives structured log lines for
// Recoverable conditions (spec §6.4's "logging is via an injected sink").
// Fatal conditions are not logged; they panic with a *FatalError instead.
// A nil logger is rejected in favor of keeping the prior one.
func (s *Scheduler) SetLogger(log logrus.FieldLogger) {
	if log != nil {
		s.log = log
	}
}

// SetRejectionThreshold overrides the default watchdog limit of 10.
func (s *Scheduler) SetRejectionThreshold(n int) {
	if n > 0 {
		s.threshold = n
	}
}

// SysTime returns the scheduler's current simulation clock.
func (s *Scheduler) SysTime() float64 { return s.sysTime }

// Run dispatches events until the simulation clock reaches horizon, in the
// shape of sim.Simulator.Run's top-level loop: advance the clock, log the
// dispatch, repeat.
func (s *Scheduler) Run(horizon float64) {
	for s.sysTime < horizon {
		s.RunNextEvent()
		s.log.WithFields(logrus.Fields{"tick": s.sysTime}).Trace("dispatched event")
	}
}

// Initialise seeds every particle's PEL, builds the heap, and schedules the
// initial system events. Must be called exactly once before RunNextEvent.
func (s *Scheduler) Initialise() {
	s.n = s.particles.N()
	s.sysSlot = s.n
	s.sorter.resize(s.n + 1)
	s.counters.resize(s.n)
	s.sorter.clear()
	s.counters.clear()
	s.sysTime = 0
	s.seq = 0

	for p := 0; p < s.n; p++ {
		s.addEvents(p, true)
	}
	s.sorter.init()
	s.rebuildSystemEvents()
}

func (s *Scheduler) nextSeq() uint64 {
	s.seq++
	return s.seq
}

// addEvents predicts and pushes every pending event for particle p: one
// candidate per claiming Global/Local source, plus one INTERACTION
// candidate per neighbour-enumerated partner. init selects the
// parity-filtered partner set used only during Initialise (see §4.5);
// steady-state full_update calls always pass init=false.
func (s *Scheduler) addEvents(p int, init bool) {
	for _, g := range s.globals {
		if !g.Claims(p) {
			continue
		}
		ev := g.Predict(p)
		if ev.IsNone() {
			continue
		}
		ev.PrimaryID = p
		ev.SecondaryID = g.ID()
		ev.Seq = s.nextSeq()
		s.sorter.push(ev, p)
	}

	for _, l := range s.locals {
		if !l.Claims(p) {
			continue
		}
		ev := l.Predict(p)
		if ev.IsNone() {
			continue
		}
		ev.PrimaryID = p
		ev.SecondaryID = l.ID()
		ev.Seq = s.nextSeq()
		s.sorter.push(ev, p)
	}

	for _, q := range s.partnersFor(p, init) {
		if q == p {
			continue
		}
		ev := s.pairs.PredictInteraction(p, q)
		if ev.IsNone() {
			continue
		}
		ev.PrimaryID = p
		ev.SecondaryID = q
		ev.CounterStamp = s.counters.stampOf(q)
		ev.Seq = s.nextSeq()
		s.sorter.push(ev, p)
	}
}

// partnersFor returns the interaction candidates for p. During Initialise
// the odd/even parity rule below halves the pair work and balances PEL
// sizes across a lattice-correlated initial configuration; during
// steady-state full_update every neighbour is considered.
func (s *Scheduler) partnersFor(p int, init bool) []int {
	candidates := s.neighbours.Partners(p, s.n)
	if !init {
		return candidates
	}
	out := make([]int, 0, len(candidates))
	for _, q := range candidates {
		if initParityAllowed(p, q) {
			out = append(out, q)
		}
	}
	return out
}

func initParityAllowed(p, q int) bool {
	if p%2 == 1 {
		if q%2 == 1 {
			return p <= q
		}
		return true
	}
	if q%2 == 1 {
		return false
	}
	return p >= q
}

func (s *Scheduler) rebuildSystemEvents() {
	s.sorter.clearPEL(s.sysSlot)
	for _, sys := range s.systems {
		ev := EventRecord{
			DtOrT:       s.sysTime + sys.NextDt(),
			Kind:        SYSTEM,
			PrimaryID:   s.sysSlot,
			SecondaryID: sys.ID(),
			Seq:         s.nextSeq(),
		}
		s.sorter.push(ev, s.sysSlot)
	}
	s.sorter.update(s.sysSlot)
}

// advanceTo advances the scheduler clock to t, rejecting any attempt to
// move it backwards (invariant: sys_time is non-decreasing).
func (s *Scheduler) advanceTo(t float64, ev EventRecord) {
	if t < s.sysTime {
		fatal("clock went backwards", ev)
	}
	s.sorter.stream(t - s.sysTime)
	s.sysTime = t
}

// Advance is the public hook a clock-transparent collaborator uses to
// stream sys_time forward itself. GLOBAL dispatch never calls advanceTo on
// a GlobalSource's behalf (see runGlobal); a source whose Execute actually
// needs to move the clock — as opposed to doing nothing to it at all —
// calls Advance from inside Execute. Panics with a *FatalError if t would
// move the clock backwards, the same invariant advanceTo enforces.
func (s *Scheduler) Advance(t float64) {
	s.advanceTo(t, EventRecord{DtOrT: t, Kind: GLOBAL})
}

// FullUpdate invalidates and re-predicts every pending event for a single
// particle: invalidate, add_events, re-sort. Called by executors after
// mutating one particle's state outside a pair interaction (e.g. a wall
// bounce or a thermostat resample).
func (s *Scheduler) FullUpdate(p int) {
	s.counters.invalidate(p)
	s.sorter.clearPEL(p)
	s.addEvents(p, false)
	s.sorter.update(p)
	s.Stats.FullUpdates++
}

// FullUpdatePair invalidates both particles before re-predicting either, as
// required by §4.7: invalidating p2 after re-predicting p1 would let p1's
// fresh INTERACTION events carry p2's stale counter stamp.
func (s *Scheduler) FullUpdatePair(p1, p2 int) {
	s.counters.invalidate(p1)
	s.counters.invalidate(p2)
	s.sorter.clearPEL(p1)
	s.sorter.clearPEL(p2)
	s.addEvents(p1, false)
	s.addEvents(p2, false)
	s.sorter.update(p1)
	s.sorter.update(p2)
	s.Stats.FullUpdates++
}

// RunNextEvent pops and dispatches exactly one event, advancing the
// simulation clock by however much that event's time exceeds the current
// clock. It panics with a *FatalError on an unrecoverable invariant
// violation (an unhandled event kind, a NONE event reaching the head of the
// queue, or the clock moving backwards).
func (s *Scheduler) RunNextEvent() {
	s.sorter.sort()
	s.skipStaleInteractions()

	head := s.sorter.headOf(s.sorter.root())

	if head.Kind != NONE && (math.IsNaN(head.DtOrT) || math.IsInf(head.DtOrT, 1)) {
		fatal("NaN or infinite event time at dispatch", head)
	}

	switch head.Kind {
	case INTERACTION:
		s.runInteraction(head)
	case GLOBAL:
		s.runGlobal(head)
	case LOCAL:
		s.runLocal(head)
	case SYSTEM:
		s.runSystem(head)
	case VIRTUAL:
		s.sorter.popNextEvent()
		s.sorter.update(head.PrimaryID)
		s.FullUpdate(head.PrimaryID)
	case NONE:
		fatal("ran out of events: a NONE event reached the head of the queue", head)
	default:
		fatal("unhandled event kind", head)
	}
}

// skipStaleInteractions drains the head of the queue of INTERACTION events
// whose counter stamp has been superseded, per the invalidation protocol:
// stale events are never executed, only lazily discarded at dispatch time.
func (s *Scheduler) skipStaleInteractions() {
	for {
		headID := s.sorter.root()
		head := s.sorter.headOf(headID)
		if head.Kind != INTERACTION || !s.counters.stale(head) {
			return
		}
		s.sorter.popNextEvent()
		s.sorter.update(headID)
		s.sorter.sort()
		s.Stats.StaleSkips++
	}
}

func (s *Scheduler) runInteraction(head EventRecord) {
	p1, p2 := head.PrimaryID, head.SecondaryID

	s.sorter.popNextEvent()
	s.sorter.update(p1)
	s.sorter.sort()

	s.pairs.SyncPair(p1, p2)
	fresh := s.pairs.PredictInteraction(p1, p2)

	nextT := s.sorter.nextTime()
	if fresh.DtOrT > nextT && s.interactionRejections+1 < s.threshold {
		s.interactionRejections++
		npKind, npP1, npP2 := s.sorter.nextKind(), s.sorter.nextPrimaryID(), s.sorter.nextSecondaryID()
		sameEvent := npKind == INTERACTION &&
			(p1 == npP1 || p1 == npP2) &&
			(p2 == npP1 || p2 == npP2)
		if !sameEvent {
			s.log.WithFields(logrus.Fields{"p1": p1, "p2": p2}).
				Warn("interaction event recalculated later than the next queued event; recalculating pair")
			s.Stats.Rejections++
			s.FullUpdatePair(p1, p2)
			return
		}
	}

	// Execution is about to proceed one way or another; the watchdog resets
	// whenever a return above wasn't taken, not only on the happy path.
	s.interactionRejections = 0

	if fresh.IsNone() {
		s.log.WithFields(logrus.Fields{"p1": p1, "p2": p2}).
			Warn("interaction event found not to occur; recalculating pair")
		s.Stats.Rejections++
		s.FullUpdatePair(p1, p2)
		return
	}

	s.advanceTo(fresh.DtOrT, fresh)
	s.pairs.ExecuteInteraction(p1, p2, fresh, s)
	s.Stats.Dispatched[INTERACTION]++
}

// runGlobal dispatches a GLOBAL event without streaming the clock itself.
// GLOBAL sources (neighbour-cell crossings, field ticks) are clock-
// transparent: Execute either calls Scheduler.Advance itself or doesn't
// need to move sys_time at all, so the dispatch loop never calls advanceTo
// on their behalf.
func (s *Scheduler) runGlobal(head EventRecord) {
	p := head.PrimaryID
	src, ok := s.globalsByID[head.SecondaryID]
	if !ok {
		fatal("unknown global source id", head)
	}

	s.sorter.popNextEvent()
	s.sorter.update(p)
	s.sorter.sort()

	src.Execute(p, s)
	s.Stats.Dispatched[GLOBAL]++
}

func (s *Scheduler) runLocal(head EventRecord) {
	p := head.PrimaryID
	src, ok := s.localsByID[head.SecondaryID]
	if !ok {
		fatal("unknown local source id", head)
	}

	s.sorter.popNextEvent()
	s.sorter.update(p)
	s.sorter.sort()

	s.pairs.SyncParticle(p)
	fresh := src.Predict(p)

	if fresh.IsNone() {
		s.log.WithField("p", p).Warn("local event found not to occur; recalculating particle")
		s.Stats.Rejections++
		s.FullUpdate(p)
		return
	}

	nextT := s.sorter.nextTime()
	if fresh.DtOrT > nextT && s.localRejections+1 < s.threshold {
		s.localRejections++
		s.log.WithField("p", p).Warn("recalculated local event time exceeds the next queued event; recalculating")
		s.Stats.Rejections++
		s.FullUpdate(p)
		return
	}
	s.localRejections = 0

	s.advanceTo(fresh.DtOrT, fresh)
	fresh.PrimaryID = p
	fresh.SecondaryID = head.SecondaryID
	src.Execute(p, fresh, s)
	s.Stats.Dispatched[LOCAL]++
}

func (s *Scheduler) runSystem(head EventRecord) {
	src, ok := s.systemsByID[head.SecondaryID]
	if !ok {
		fatal("unknown system source id", head)
	}

	s.advanceTo(head.DtOrT, head)
	src.Execute(s)
	s.rebuildSystemEvents()
	s.Stats.Dispatched[SYSTEM]++
}
