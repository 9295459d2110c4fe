// Package edmd provides the event scheduler and dispatch loop at the core of
// an event-driven molecular dynamics (EDMD) simulation.
//
// # Reading Guide
//
// Start with these files to understand the scheduling kernel:
//   - event.go: EventRecord, EventKind, and the tagged dispatch union
//   - pel.go: the per-particle event list (a bounded min-heap)
//   - sorter.go: the indirect global heap ordering particles by PEL head
//   - counter.go: the event-counter table backing the invalidation protocol
//   - scheduler.go: initialise, add_events, the dispatch loop, full_update
//
// # Architecture
//
// edmd defines interfaces only for the collaborating subsystems; concrete
// physics (force laws, wall models, thermostats) live outside this package.
// A minimal reference implementation against these interfaces is provided by
// the sibling hardsphere package, used by that package's own tests and by
// the cmd/ demonstration driver. This package's tests use scripted fakes.
//
// # Key Interfaces
//
//   - ParticleStore: number of particles the scheduler must track
//   - PairDynamics: predict and execute INTERACTION events between two particles
//   - GlobalSource / LocalSource / SystemSource: predict and execute the
//     remaining event kinds
//   - NeighbourSource: enumerate interaction-candidate partners for a particle
package edmd
