package hardsphere

import (
	"math"

	"github.com/macioosch/DynamO/edmd"
	"gonum.org/v1/gonum/spatial/r3"
)

// Store holds the particle population shared by every collaborator wired
// into a Scheduler. Dynamics, WallSource and Thermostat all read and mutate
// it directly rather than through accessor methods, the same ownership
// split drawn between cluster state and the components that predict and
// execute events over it.
type Store struct {
	Box [3]float64

	particles []Particle
	lastSync  []float64
}

// NewStore builds a Store over particles, each initially synced at t=0.
func NewStore(particles []Particle, box [3]float64) *Store {
	return &Store{
		Box:       box,
		particles: particles,
		lastSync:  make([]float64, len(particles)),
	}
}

// N implements edmd.ParticleStore.
func (s *Store) N() int { return len(s.particles) }

// Position implements edmd.PositionProvider. It returns the particle's
// last-synced position, not its free-streamed position at the current
// simulation time; neighbour-cell lookups tolerate the resulting lag, which
// is bounded by how often the caller invalidates and re-syncs particles.
func (s *Store) Position(p int) [3]float64 {
	pos := s.particles[p].Pos
	return [3]float64{pos.X, pos.Y, pos.Z}
}

// Particle returns a copy of particle p's current state.
func (s *Store) Particle(p int) Particle { return s.particles[p] }

// positionAt free-streams particle p's position to time t without mutating
// stored state: pos(t) = pos(lastSync) + vel * (t - lastSync).
func (s *Store) positionAt(p int, t float64) r3.Vec {
	dt := t - s.lastSync[p]
	return r3.Add(s.particles[p].Pos, r3.Scale(dt, s.particles[p].Vel))
}

// sync commits particle p's free-streamed position at time t and advances
// its sync timestamp. Velocity is unaffected; it only changes at a dispatch.
func (s *Store) sync(p int, t float64) {
	s.particles[p].Pos = s.positionAt(p, t)
	s.lastSync[p] = t
}

// minimumImage applies the periodic minimum-image convention componentwise.
// A non-positive box length on an axis is treated as non-periodic.
func (s *Store) minimumImage(d r3.Vec) r3.Vec {
	return r3.Vec{
		X: minimumImageComponent(d.X, s.Box[0]),
		Y: minimumImageComponent(d.Y, s.Box[1]),
		Z: minimumImageComponent(d.Z, s.Box[2]),
	}
}

func minimumImageComponent(d, length float64) float64 {
	if length <= 0 {
		return d
	}
	return d - length*math.Round(d/length)
}

var (
	_ edmd.ParticleStore    = (*Store)(nil)
	_ edmd.PositionProvider = (*Store)(nil)
)
