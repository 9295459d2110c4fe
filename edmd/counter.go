package edmd

// counterTable is the Event-Counter Table: one monotonically increasing
// stamp per particle, bumped whenever that particle is invalidated. An
// INTERACTION event's CounterStamp fixes a point in its secondary
// particle's history; the event is stale iff the live counter has since
// advanced past that stamp.
type counterTable struct {
	counter []uint64
}

func newCounterTable() *counterTable {
	return &counterTable{}
}

func (c *counterTable) resize(n int) {
	c.counter = make([]uint64, n)
}

func (c *counterTable) clear() {
	for i := range c.counter {
		c.counter[i] = 0
	}
}

// stampOf returns the current counter value for particle i, used when
// stamping a freshly predicted INTERACTION event.
func (c *counterTable) stampOf(i int) uint64 {
	return c.counter[i]
}

// invalidate bumps particle i's counter, implicitly staling every pending
// INTERACTION event that names i as SecondaryID with the pre-bump stamp.
// Overflow is not a concern: 64 bits exceeds any realistic run length.
func (c *counterTable) invalidate(i int) {
	c.counter[i]++
}

// stale reports whether an event's captured stamp has been superseded by
// the live counter of its secondary particle.
func (c *counterTable) stale(ev EventRecord) bool {
	return ev.Kind == INTERACTION && ev.CounterStamp != c.counter[ev.SecondaryID]
}
