package edmd

import "fmt"

// FatalError marks a dispatch-loop condition the scheduler cannot recover
// from: the simulation's invariants have been violated (clock went
// backwards, a NaN or infinite event time or a NONE event reached the head
// of the queue, an unhandled event kind, an unknown source id). The
// dispatch loop panics with a
// *FatalError rather than returning one, in the manner of the
// invariant-violation panics in cluster/simulator.go ("Clock went
// backwards", "Causality violated").
type FatalError struct {
	// Reason is a short machine-checkable tag for the violated invariant.
	Reason string
	// Event is the full description of the offending event, or the zero
	// value if the violation was not tied to a single event.
	Event EventRecord
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("edmd: fatal: %s (event=%+v)", e.Reason, e.Event)
}

func fatal(reason string, ev EventRecord) {
	panic(&FatalError{Reason: reason, Event: ev})
}
