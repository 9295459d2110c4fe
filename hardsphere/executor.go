package hardsphere

import (
	"math"
	"math/rand"

	"github.com/macioosch/DynamO/edmd"
	"gonum.org/v1/gonum/spatial/r3"
)

// ExecuteInteraction applies the elastic hard-sphere collision law at the
// contact normal, then hands both particles back to the scheduler for
// re-prediction. It is called with sched already advanced to the event
// time, so syncing commits each particle's exact contact-point position.
func (d *Dynamics) ExecuteInteraction(p1, p2 int, ev edmd.EventRecord, sched *edmd.Scheduler) {
	d.SyncParticle(p1)
	d.SyncParticle(p2)

	n := d.store.minimumImage(r3.Sub(d.store.particles[p1].Pos, d.store.particles[p2].Pos))
	if norm := r3.Norm(n); norm > 0 {
		n = r3.Scale(1/norm, n)
	}

	m1 := d.store.particles[p1].Mass
	m2 := d.store.particles[p2].Mass
	vij := r3.Sub(d.store.particles[p1].Vel, d.store.particles[p2].Vel)
	vn := r3.Dot(vij, n)

	// Impulse along the contact normal for a collision with the given
	// coefficient of restitution; restitution=1 conserves kinetic energy.
	j := -(1 + d.restitution) * (m1 * m2 / (m1 + m2)) * vn
	d.store.particles[p1].Vel = r3.Add(d.store.particles[p1].Vel, r3.Scale(j/m1, n))
	d.store.particles[p2].Vel = r3.Sub(d.store.particles[p2].Vel, r3.Scale(j/m2, n))

	sched.FullUpdatePair(p1, p2)
}

// Execute reflects the velocity component along whichever axis p's
// surface is resting against, then hands the particle back for
// re-prediction. The axis is recovered from the committed position rather
// than carried on the event, since SecondaryID already names this source.
func (w *WallSource) Execute(p int, ev edmd.EventRecord, sched *edmd.Scheduler) {
	w.store.sync(p, sched.SysTime())

	pos := w.store.particles[p].Pos
	r := w.store.particles[p].Radius
	const epsilon = 1e-9

	for axis := 0; axis < 3; axis++ {
		length := w.store.Box[axis]
		if length <= 0 {
			continue
		}
		x := component(pos, axis)
		if math.Abs(x-r) < epsilon || math.Abs(x-(length-r)) < epsilon {
			reflect(&w.store.particles[p].Vel, axis)
			break
		}
	}

	sched.FullUpdate(p)
}

func reflect(v *r3.Vec, axis int) {
	switch axis {
	case 0:
		v.X = -v.X
	case 1:
		v.Y = -v.Y
	default:
		v.Z = -v.Z
	}
}

// Thermostat implements edmd.SystemSource: an Andersen thermostat that, on
// a fixed tick interval, resamples a fraction of the population's
// velocities from a Maxwell-Boltzmann distribution at the target
// temperature, coupling the system to an implicit heat bath.
type Thermostat struct {
	id          int
	dt          float64
	store       *Store
	rng         *rand.Rand
	temperature float64
	perTick     int
}

// NewThermostat builds an Andersen thermostat firing every dt simulation
// time units, resampling perTick randomly chosen particles each time. rng
// should be partitioned for the thermostat subsystem (edmd.SubsystemThermostat)
// so its draws stay reproducible and isolated from other subsystems.
func NewThermostat(id int, dt float64, store *Store, rng *rand.Rand, temperature float64, perTick int) *Thermostat {
	return &Thermostat{id: id, dt: dt, store: store, rng: rng, temperature: temperature, perTick: perTick}
}

func (th *Thermostat) ID() int         { return th.id }
func (th *Thermostat) NextDt() float64 { return th.dt }

func (th *Thermostat) Execute(sched *edmd.Scheduler) {
	for k := 0; k < th.perTick; k++ {
		p := th.rng.Intn(th.store.N())
		th.store.sync(p, sched.SysTime())

		sigma := math.Sqrt(th.temperature / th.store.particles[p].Mass)
		th.store.particles[p].Vel = r3.Vec{
			X: th.rng.NormFloat64() * sigma,
			Y: th.rng.NormFloat64() * sigma,
			Z: th.rng.NormFloat64() * sigma,
		}

		sched.FullUpdate(p)
	}
}
