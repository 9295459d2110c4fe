package edmd

import "fmt"

// Stats aggregates per-run scheduler counters, distinct from any physical
// simulation metrics a collaborator might keep: events dispatched by kind,
// stale INTERACTION skips, rejection-driven recalculations, and full
// invalidate/re-predict passes.
type Stats struct {
	Dispatched  map[EventKind]int64
	StaleSkips  int64
	Rejections  int64
	FullUpdates int64
}

// NewStats returns a zeroed Stats with its Dispatched map initialised.
func NewStats() *Stats {
	return &Stats{Dispatched: make(map[EventKind]int64)}
}

// Total returns the sum of events dispatched across every kind.
func (m *Stats) Total() int64 {
	var total int64
	for _, c := range m.Dispatched {
		total += c
	}
	return total
}

// Print displays aggregated scheduler statistics at the end of a run.
func (m *Stats) Print() {
	fmt.Println("=== Scheduler Statistics ===")
	fmt.Printf("Events Dispatched   : %d\n", m.Total())
	for _, k := range []EventKind{INTERACTION, GLOBAL, LOCAL, SYSTEM, VIRTUAL} {
		if m.Dispatched[k] > 0 {
			fmt.Printf("  %-12s: %d\n", k, m.Dispatched[k])
		}
	}
	fmt.Printf("Stale Skips         : %d\n", m.StaleSkips)
	fmt.Printf("Rejections          : %d\n", m.Rejections)
	fmt.Printf("Full Updates        : %d\n", m.FullUpdates)
}
