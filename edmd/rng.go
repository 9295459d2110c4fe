package edmd

import "math/rand"

// === SimulationKey ===

// SimulationKey uniquely identifies a reproducible simulation run. Two runs
// with the same SimulationKey and identical configuration MUST produce
// bit-for-bit identical event sequences.
type SimulationKey int64

// NewSimulationKey creates a SimulationKey from a seed value.
func NewSimulationKey(seed int64) SimulationKey {
	return SimulationKey(seed)
}

// === Named subsystems ===

const (
	// SubsystemInit is the RNG subsystem for initial-condition generation
	// (random positions/velocities).
	SubsystemInit = "init"

	// SubsystemThermostat is the RNG subsystem for the Andersen thermostat's
	// per-tick velocity resampling.
	SubsystemThermostat = "thermostat"
)

// stream tags which indexed pool a derived seed belongs to, so a wall and a
// particle that happen to share the same integer id never land on the same
// derived seed.
type stream uint64

const (
	streamNamed    stream = 0
	streamParticle stream = 1
	streamWall     stream = 2
)

// === PartitionedRNG ===

// PartitionedRNG provides deterministic, isolated RNG instances keyed
// either by a named subsystem (initial conditions, the thermostat's shared
// tick stream) or by simulation entity (a single particle's own draws, a
// single wall's own draws). Every derived seed is the master key mixed with
// a stream tag and an index through splitmix64, so one particle's stream
// never perturbs another's, the thermostat's, or the init stream, no matter
// what order the scheduler happens to dispatch events in.
//
// Thread-safety: NOT thread-safe. Must be called from a single goroutine.
type PartitionedRNG struct {
	key SimulationKey

	named     map[string]*rand.Rand
	particles map[int]*rand.Rand
	walls     map[int]*rand.Rand
}

// NewPartitionedRNG creates a PartitionedRNG from a SimulationKey.
func NewPartitionedRNG(key SimulationKey) *PartitionedRNG {
	return &PartitionedRNG{
		key:       key,
		named:     make(map[string]*rand.Rand),
		particles: make(map[int]*rand.Rand),
		walls:     make(map[int]*rand.Rand),
	}
}

// ForSubsystem returns a deterministically-seeded RNG for a named,
// non-indexed subsystem (SubsystemInit, SubsystemThermostat). The same name
// always returns the same *rand.Rand instance. Never returns nil.
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	if rng, ok := p.named[name]; ok {
		return rng
	}
	rng := rand.New(rand.NewSource(p.derive(streamNamed, hashName(name))))
	p.named[name] = rng
	return rng
}

// ForParticle returns a deterministically-seeded RNG for particle id's own
// draws, isolated from every other particle's and from every named
// subsystem's stream. The same id always returns the same instance.
func (p *PartitionedRNG) ForParticle(id int) *rand.Rand {
	if rng, ok := p.particles[id]; ok {
		return rng
	}
	rng := rand.New(rand.NewSource(p.derive(streamParticle, uint64(id))))
	p.particles[id] = rng
	return rng
}

// ForWall returns a deterministically-seeded RNG for wall id's own draws
// (e.g. a thermal wall's accommodation sampling), isolated from the
// particle streams even when the ids numerically coincide.
func (p *PartitionedRNG) ForWall(id int) *rand.Rand {
	if rng, ok := p.walls[id]; ok {
		return rng
	}
	rng := rand.New(rand.NewSource(p.derive(streamWall, uint64(id))))
	p.walls[id] = rng
	return rng
}

// Key returns the SimulationKey used to create this PartitionedRNG.
func (p *PartitionedRNG) Key() SimulationKey {
	return p.key
}

// derive folds the master key, a stream tag, and an index through two
// rounds of splitmix64. The stream tag enters the mix before the index so
// streamParticle(5) and streamWall(5) diverge from the first output bit.
func (p *PartitionedRNG) derive(s stream, index uint64) int64 {
	x := splitmix64(uint64(p.key) ^ (uint64(s) * 0x9E3779B97F4A7C15))
	x = splitmix64(x ^ index)
	return int64(x)
}

// hashName folds a subsystem name into a uint64 seed for derive, one byte
// at a time through splitmix64, so named and indexed streams share a single
// mixing primitive instead of two different hash families.
func hashName(name string) uint64 {
	h := uint64(0x9E3779B97F4A7C15)
	for i := 0; i < len(name); i++ {
		h = splitmix64(h ^ uint64(name[i]))
	}
	return h
}

// splitmix64 is Vigna's fixed-increment mixing function: deterministic,
// branchless, and good avalanche behaviour for seed derivation.
func splitmix64(x uint64) uint64 {
	x += 0x9E3779B97F4A7C15
	x = (x ^ (x >> 30)) * 0xBF58476D1CE4E5B9
	x = (x ^ (x >> 27)) * 0x94D049BB133111EB
	return x ^ (x >> 31)
}
