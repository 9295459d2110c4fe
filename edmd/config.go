package edmd

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds unified scheduler configuration, loadable from a YAML file.
// Zero-valued numeric fields mean "not set"; LoadConfig's caller is
// responsible for defaulting them before constructing a Scheduler.
type Config struct {
	// SchedulerVariant names the NeighbourSource factory key: "Dumb",
	// "SystemOnly", "NeighbourList", "Complex", or "ThreadedNeighbourList".
	SchedulerVariant string `yaml:"scheduler_variant"`

	// SorterVariant names the Global Sorter implementation. Only
	// "indexed-heap" (or the empty string) is implemented; Validate returns
	// an error for any other value. LoadConfig itself does not validate.
	SorterVariant string `yaml:"sorter_variant"`

	// CellSize is the uniform cell-list bucket width used by the grid
	// NeighbourSource variants. Ignored by "Dumb" and "SystemOnly".
	CellSize float64 `yaml:"cell_size"`

	// BoxSize is the periodic simulation box extent along each axis.
	BoxSize [3]float64 `yaml:"box_size"`

	// RejectionThreshold overrides the scheduler's default numerical-
	// robustness watchdog threshold (see SetRejectionThreshold). Zero means
	// "use the scheduler's built-in default".
	RejectionThreshold int `yaml:"rejection_threshold"`

	// Seed is the deterministic seed for the ambient PartitionedRNG.
	Seed int64 `yaml:"seed"`
}

// ValidSorterVariants is the set of recognized Global Sorter implementations.
var ValidSorterVariants = map[string]bool{"": true, "indexed-heap": true}

// ValidSchedulerVariants is the set of NeighbourSource factory keys that
// Validate accepts, plus the empty string for "not set". NewNeighbourSource
// does not consult this map; its own switch covers the same five keys and
// returns an error for the empty string.
var ValidSchedulerVariants = map[string]bool{
	"":                      true,
	"Dumb":                  true,
	"SystemOnly":            true,
	"NeighbourList":         true,
	"Complex":               true,
	"ThreadedNeighbourList": true,
}

// LoadConfig reads and parses a YAML scheduler configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scheduler config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing scheduler config: %w", err)
	}
	return &cfg, nil
}

// Validate checks that every named variant is recognized.
func (c *Config) Validate() error {
	if !ValidSchedulerVariants[c.SchedulerVariant] {
		return fmt.Errorf("unknown scheduler variant %q", c.SchedulerVariant)
	}
	if !ValidSorterVariants[c.SorterVariant] {
		return fmt.Errorf("unknown sorter variant %q", c.SorterVariant)
	}
	if c.RejectionThreshold < 0 {
		return fmt.Errorf("rejection_threshold must be non-negative, got %d", c.RejectionThreshold)
	}
	return nil
}
