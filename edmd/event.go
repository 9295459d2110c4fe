package edmd

import "math"

// EventKind tags the closed union of event kinds the scheduler dispatches.
// Sub-tags (wall vs well, cell crossing vs thermostat tick, sentinel, ...)
// are opaque to the scheduler and carried by the collaborator, never here.
type EventKind int

const (
	// NONE marks a non-event: a Predict call found nothing to schedule.
	NONE EventKind = iota
	// INTERACTION is a pair event between two particles.
	INTERACTION
	// GLOBAL is a global-source event (neighbour-cell crossing, field tick).
	GLOBAL
	// LOCAL is a local-source event (wall collision, bounded-field crossing).
	LOCAL
	// SYSTEM is a system-timer event (thermostat tick, periodic rescale).
	SYSTEM
	// VIRTUAL is a housekeeping event carrying no physical collision; it
	// exists purely to force a re-prediction at a fixed horizon.
	VIRTUAL
)

func (k EventKind) String() string {
	switch k {
	case NONE:
		return "NONE"
	case INTERACTION:
		return "INTERACTION"
	case GLOBAL:
		return "GLOBAL"
	case LOCAL:
		return "LOCAL"
	case SYSTEM:
		return "SYSTEM"
	case VIRTUAL:
		return "VIRTUAL"
	default:
		return "UNKNOWN"
	}
}

// EventRecord is a predicted event owned by one particle's PEL.
//
// DtOrT is the absolute simulation time at which this event is predicted to
// occur. The field name preserves the relative/absolute ambiguity the PEL
// and sorter are free to resolve internally (see sorter.go); callers of the
// public collaborator interfaces always see absolute time.
//
// CounterStamp is meaningful only for INTERACTION: it is the value of
// counter[SecondaryID] captured at prediction time. The event is stale iff
// the live counter has since advanced past this stamp.
type EventRecord struct {
	DtOrT        float64
	Kind         EventKind
	PrimaryID    int
	SecondaryID  int
	CounterStamp uint64

	// Seq is a monotonic tie-breaker assigned when the record is pushed,
	// guaranteeing a total order on (DtOrT, PrimaryID, Kind, Seq) even when
	// floating-point times and ids collide exactly.
	Seq uint64
}

// IsNone reports whether ev represents "no event" (a Predict call that found
// nothing to schedule for this particle/source pair).
func (ev EventRecord) IsNone() bool {
	return ev.Kind == NONE
}

// noneEvent is the canonical sentinel: a NONE event always sorts last.
func noneEvent(primaryID int) EventRecord {
	return EventRecord{DtOrT: math.Inf(1), Kind: NONE, PrimaryID: primaryID}
}

// less defines the total dispatch order: earliest time first, then lower
// primary id, then lower kind, then lower sequence number. The (time,
// primary id, kind) chain is extended with Seq for full determinism, in the
// manner of cluster/events.go's globalEventID.
func less(a, b EventRecord) bool {
	if a.DtOrT != b.DtOrT {
		return a.DtOrT < b.DtOrT
	}
	if a.PrimaryID != b.PrimaryID {
		return a.PrimaryID < b.PrimaryID
	}
	if a.Kind != b.Kind {
		return a.Kind < b.Kind
	}
	return a.Seq < b.Seq
}
