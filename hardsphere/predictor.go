package hardsphere

import (
	"math"

	"github.com/macioosch/DynamO/edmd"
	"gonum.org/v1/gonum/spatial/r3"
)

// Dynamics implements edmd.PairDynamics over a Store of elastic hard
// spheres. It predicts collisions by solving the event-driven MD collision
// quadratic |rij + vij*dt| = sigma for the smallest positive root, the
// standard derivation for hard-sphere EDMD (see e.g. Allen & Tildesley).
type Dynamics struct {
	store       *Store
	sched       *edmd.Scheduler
	restitution float64 // 1.0 = perfectly elastic
}

// NewDynamics builds a Dynamics with the given coefficient of restitution.
func NewDynamics(store *Store, restitution float64) *Dynamics {
	return &Dynamics{store: store, restitution: restitution}
}

// SetScheduler late-binds the scheduler Dynamics must query for the current
// simulation clock. Store, Dynamics and Scheduler are mutually referential
// at construction time, so wiring happens in this second step rather than
// in NewDynamics.
func (d *Dynamics) SetScheduler(s *edmd.Scheduler) { d.sched = s }

func (d *Dynamics) now() float64 { return d.sched.SysTime() }

// SyncParticle commits p's free-streamed position at the current time.
func (d *Dynamics) SyncParticle(p int) { d.store.sync(p, d.now()) }

// SyncPair commits both particles' free-streamed positions.
func (d *Dynamics) SyncPair(p1, p2 int) {
	d.SyncParticle(p1)
	d.SyncParticle(p2)
}

// PredictInteraction solves for the next time p1 and p2's surfaces touch,
// evaluating their separation and relative velocity at the current
// simulation time without requiring either to have been synced first.
func (d *Dynamics) PredictInteraction(p1, p2 int) edmd.EventRecord {
	t := d.now()

	rij := d.store.minimumImage(r3.Sub(d.store.positionAt(p1, t), d.store.positionAt(p2, t)))
	vij := r3.Sub(d.store.particles[p1].Vel, d.store.particles[p2].Vel)

	b := r3.Dot(rij, vij)
	if b >= 0 {
		// Separating (or tangent): no future collision along this branch.
		return edmd.EventRecord{Kind: edmd.NONE}
	}

	vij2 := r3.Dot(vij, vij)
	if vij2 == 0 {
		return edmd.EventRecord{Kind: edmd.NONE}
	}

	sigma := d.store.particles[p1].Radius + d.store.particles[p2].Radius
	rij2 := r3.Dot(rij, rij)
	disc := b*b - vij2*(rij2-sigma*sigma)
	if disc < 0 {
		return edmd.EventRecord{Kind: edmd.NONE}
	}

	dt := -(b + math.Sqrt(disc)) / vij2
	if dt <= 0 {
		return edmd.EventRecord{Kind: edmd.NONE}
	}

	return edmd.EventRecord{DtOrT: t + dt, Kind: edmd.INTERACTION}
}

// WallSource implements edmd.LocalSource: axis-aligned elastic reflection
// off the faces of Store.Box on every axis whose length is positive. Those
// are the same axes Store.minimumImage treats as periodic; axes with a
// non-positive length have no walls.
type WallSource struct {
	id    int
	store *Store
	sched *edmd.Scheduler
}

// NewWallSource builds a WallSource identified by id within one Scheduler's
// set of LocalSources.
func NewWallSource(id int, store *Store) *WallSource {
	return &WallSource{id: id, store: store}
}

func (w *WallSource) SetScheduler(s *edmd.Scheduler) { w.sched = s }

func (w *WallSource) ID() int { return w.id }

// Claims reports true for every particle: every particle can hit a wall.
func (w *WallSource) Claims(p int) bool { return true }

// Predict returns the time p's surface next reaches a box boundary along
// any axis. The SecondaryID is set to this source's own ID, as required for
// the scheduler's dispatch-time LocalSource lookup.
func (w *WallSource) Predict(p int) edmd.EventRecord {
	t := w.sched.SysTime()
	pos := w.store.positionAt(p, t)
	vel := w.store.particles[p].Vel
	r := w.store.particles[p].Radius

	best := math.Inf(1)
	for axis := 0; axis < 3; axis++ {
		length := w.store.Box[axis]
		if length <= 0 {
			continue
		}
		v := component(vel, axis)
		if v == 0 {
			continue
		}
		x := component(pos, axis)
		var target float64
		if v > 0 {
			target = length - r
		} else {
			target = r
		}
		dt := (target - x) / v
		if dt > 0 && dt < best {
			best = dt
		}
	}
	if math.IsInf(best, 1) {
		return edmd.EventRecord{Kind: edmd.NONE}
	}
	return edmd.EventRecord{DtOrT: t + best, SecondaryID: w.id, Kind: edmd.LOCAL}
}

func component(v r3.Vec, axis int) float64 {
	switch axis {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}
