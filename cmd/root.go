package cmd

import (
	"math"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/macioosch/DynamO/edmd"
	"github.com/macioosch/DynamO/hardsphere"
)

var (
	// Simulation control
	configPath string
	seed       int64
	horizon    float64
	logLevel   string

	// Scheduler variant selection
	schedulerVariant   string
	rejectionThreshold int

	// Initial configuration
	numParticles int
	boxSize      []float64
	radius       float64
	mass         float64
	initSpeed    float64

	// Andersen thermostat
	thermostatInterval float64
	thermostatCount    int
	temperature        float64
)

// rootCmd is the base command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "dynamo",
	Short: "Event-driven molecular dynamics simulator",
}

// runCmd builds a hard-sphere gas on a simple cubic lattice and runs it
// through the event-driven scheduler until the configured horizon.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a hard-sphere event-driven MD simulation",
	Run: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		cfg := &edmd.Config{
			SchedulerVariant:   schedulerVariant,
			RejectionThreshold: rejectionThreshold,
			Seed:               seed,
		}
		if configPath != "" {
			loaded, err := edmd.LoadConfig(configPath)
			if err != nil {
				logrus.Fatalf("loading config: %v", err)
			}
			cfg = loaded
		}
		if err := cfg.Validate(); err != nil {
			logrus.Fatalf("invalid config: %v", err)
		}

		box := boxSizeFromFlag(boxSize)
		if configPath != "" && cfg.BoxSize != [3]float64{} {
			box = cfg.BoxSize
		}
		cellSize := 1.5 * radius
		if cfg.CellSize > 0 {
			cellSize = cfg.CellSize
		}

		startTime := time.Now()
		logrus.WithFields(logrus.Fields{
			"particles": numParticles,
			"box":       box,
			"horizon":   horizon,
			"scheduler": cfg.SchedulerVariant,
			"seed":      cfg.Seed,
		}).Info("starting EDMD simulation")

		store := buildLattice(numParticles, box, radius, mass, initSpeed, cfg.Seed)
		dyn := hardsphere.NewDynamics(store, 1.0)

		neighbours, err := edmd.NewNeighbourSource(cfg.SchedulerVariant, store, cellSize, box, logrus.StandardLogger())
		if err != nil {
			logrus.Fatalf("building neighbour source: %v", err)
		}

		wall := hardsphere.NewWallSource(0, store)

		rng := edmd.NewPartitionedRNG(edmd.NewSimulationKey(cfg.Seed))
		var systems []edmd.SystemSource
		if thermostatInterval > 0 {
			thermostat := hardsphere.NewThermostat(0, thermostatInterval, store, rng.ForSubsystem(edmd.SubsystemThermostat), temperature, thermostatCount)
			systems = append(systems, thermostat)
		}

		sched := edmd.NewScheduler(store, dyn, neighbours, nil, []edmd.LocalSource{wall}, systems)
		dyn.SetScheduler(sched)
		wall.SetScheduler(sched)
		if cfg.RejectionThreshold > 0 {
			sched.SetRejectionThreshold(cfg.RejectionThreshold)
		}
		sched.Initialise()

		sched.Run(horizon)

		sched.Stats.Print()
		logrus.WithField("elapsed", time.Since(startTime)).Info("simulation complete")
	},
}

// boxSizeFromFlag expands a 1- or 3-element --box flag into a [3]float64.
func boxSizeFromFlag(flag []float64) [3]float64 {
	switch len(flag) {
	case 1:
		return [3]float64{flag[0], flag[0], flag[0]}
	case 3:
		return [3]float64{flag[0], flag[1], flag[2]}
	default:
		logrus.Fatalf("--box must have 1 or 3 values, got %d", len(flag))
		return [3]float64{}
	}
}

// buildLattice seeds numParticles onto the smallest simple cubic lattice
// that fits inside box, each given a random velocity direction at the
// configured speed, deterministic in seed via the init-subsystem RNG.
func buildLattice(n int, box [3]float64, radius, mass, speed float64, seed int64) *hardsphere.Store {
	rng := edmd.NewPartitionedRNG(edmd.NewSimulationKey(seed)).ForSubsystem(edmd.SubsystemInit)

	perAxis := int(math.Ceil(math.Cbrt(float64(n))))
	spacing := [3]float64{box[0] / float64(perAxis), box[1] / float64(perAxis), box[2] / float64(perAxis)}

	particles := make([]hardsphere.Particle, 0, n)
	for i := 0; i < n; i++ {
		ix := i % perAxis
		iy := (i / perAxis) % perAxis
		iz := i / (perAxis * perAxis)

		pos := r3.Vec{
			X: (float64(ix) + 0.5) * spacing[0],
			Y: (float64(iy) + 0.5) * spacing[1],
			Z: (float64(iz) + 0.5) * spacing[2],
		}

		theta := rng.Float64() * 2 * math.Pi
		phi := math.Acos(2*rng.Float64() - 1)
		vel := r3.Scale(speed, r3.Vec{
			X: math.Sin(phi) * math.Cos(theta),
			Y: math.Sin(phi) * math.Sin(theta),
			Z: math.Cos(phi),
		})

		particles = append(particles, hardsphere.Particle{Pos: pos, Vel: vel, Radius: radius, Mass: mass})
	}

	return hardsphere.NewStore(particles, box)
}

// Execute runs the CLI root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	runCmd.Flags().StringVar(&configPath, "config", "", "path to a scheduler config YAML file (replaces --seed, --scheduler and --rejection-threshold, and --box when it sets box_size)")
	runCmd.Flags().Int64Var(&seed, "seed", 42, "seed for initial configuration and stochastic subsystems")
	runCmd.Flags().Float64Var(&horizon, "horizon", 100.0, "simulation horizon (absolute simulation time)")
	runCmd.Flags().StringVar(&logLevel, "log", "info", "log level (trace, debug, info, warn, error, fatal, panic)")

	runCmd.Flags().StringVar(&schedulerVariant, "scheduler", "NeighbourList", "neighbour source variant (Dumb, SystemOnly, NeighbourList, Complex, ThreadedNeighbourList)")
	runCmd.Flags().IntVar(&rejectionThreshold, "rejection-threshold", 10, "consecutive-rejection watchdog limit before forcing dispatch")

	runCmd.Flags().IntVar(&numParticles, "particles", 64, "number of hard spheres")
	runCmd.Flags().Float64SliceVar(&boxSize, "box", []float64{20.0}, "box side length(s): one value for a cube, or three for X,Y,Z")
	runCmd.Flags().Float64Var(&radius, "radius", 0.5, "hard-sphere radius")
	runCmd.Flags().Float64Var(&mass, "mass", 1.0, "particle mass")
	runCmd.Flags().Float64Var(&initSpeed, "speed", 1.0, "initial speed magnitude, randomly oriented per particle")

	runCmd.Flags().Float64Var(&thermostatInterval, "thermostat-interval", 0, "Andersen thermostat tick interval (0 disables the thermostat)")
	runCmd.Flags().IntVar(&thermostatCount, "thermostat-count", 1, "particles resampled per thermostat tick")
	runCmd.Flags().Float64Var(&temperature, "temperature", 1.0, "Andersen thermostat target temperature k_B T (velocity components are drawn with variance k_B T / mass)")

	rootCmd.AddCommand(runCmd)
}
