// Package hardsphere is a reference collaborator set for edmd.Scheduler:
// elastic hard spheres colliding inside a periodic or walled box, an
// Andersen thermostat, and the glue that wires them into the scheduler's
// PairDynamics/LocalSource/SystemSource/PositionProvider contracts.
//
// The upstream interaction law (IRoughHardSphere) is declared but never
// defined in the retrieved source — roughhardsphere.hpp is a header with no
// matching .cpp — so the collision law below follows the standard
// elastic-hard-sphere event-driven MD derivation rather than a transliterated
// implementation.
package hardsphere

import "gonum.org/v1/gonum/spatial/r3"

// Particle is one hard sphere: position, velocity, radius and mass.
type Particle struct {
	Pos    r3.Vec
	Vel    r3.Vec
	Radius float64
	Mass   float64
}
