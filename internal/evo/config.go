package evo

import (
	"fmt"
	"math"

	"neuroflap/internal/nn"
)

// Config carries everything a Population needs at construction.
type Config struct {
	PopulationSize int            `json:"population_size"`
	Genotype       GenotypeConfig `json:"genotype"`
	Mutation       MutationConfig `json:"mutation"`
	Breed          BreedConfig    `json:"breed"`
	Shapes         nn.Topology    `json:"shapes"`
}

type GenotypeConfig struct {
	Size int `json:"size"`
}

type MutationConfig struct {
	Magnitude float64 `json:"magnitude"`
	Odds      float64 `json:"odds"`
	// Decay is accepted for configuration compatibility and has no effect.
	Decay float64 `json:"decay"`
}

type BreedConfig struct {
	SelectionCutoff    float64 `json:"selection_cutoff"`
	ImmortalityCutoff  float64 `json:"immortality_cutoff"`
	ChildrenPercentage float64 `json:"children_percentage"`
}

// PoolSizes are the per-Step counts derived from the breeding fractions.
type PoolSizes struct {
	Elite     int
	Selection int
	Children  int
}

// DefaultConfig mirrors the reference flappy setup for the given topology:
// population 100, mutation 0.1/0.1, selection 0.2, immortality 0.05,
// children 0.5.
func DefaultConfig(shapes nn.Topology) Config {
	return Config{
		PopulationSize: 100,
		Genotype:       GenotypeConfig{Size: nn.ParameterCount(shapes)},
		Mutation:       MutationConfig{Magnitude: 0.1, Odds: 0.1},
		Breed: BreedConfig{
			SelectionCutoff:    0.2,
			ImmortalityCutoff:  0.05,
			ChildrenPercentage: 0.5,
		},
		Shapes: shapes.Clone(),
	}
}

// cutoffCount maps a fraction of n to an entity count, rounding up.
func cutoffCount(n int, fraction float64) int {
	return int(math.Ceil(float64(n) * fraction))
}

func (c Config) PoolSizes() PoolSizes {
	n := c.PopulationSize
	return PoolSizes{
		Elite:     cutoffCount(n, c.Breed.ImmortalityCutoff),
		Selection: cutoffCount(n, c.Breed.SelectionCutoff),
		Children:  cutoffCount(n, c.Breed.ChildrenPercentage),
	}
}

// Validate checks ranges, pool sizes and the genotype/topology pairing. Every
// failure wraps nn.ErrConfiguration.
func (c Config) Validate() error {
	if c.PopulationSize < 1 {
		return configErrorf("population_size must be >= 1, got %d", c.PopulationSize)
	}
	if err := c.Shapes.Validate(); err != nil {
		return fmt.Errorf("shapes: %w", err)
	}
	if want := nn.ParameterCount(c.Shapes); c.Genotype.Size != want {
		return configErrorf("genotype.size=%d does not match topology parameter count %d", c.Genotype.Size, want)
	}

	m := c.Mutation
	if !isFinite(m.Magnitude) || m.Magnitude < 0 {
		return configErrorf("mutation.magnitude must be >= 0, got %v", m.Magnitude)
	}
	if !inRange(m.Odds, 0, 1) {
		return configErrorf("mutation.odds must be within [0,1], got %v", m.Odds)
	}
	if !isFinite(m.Decay) {
		return configErrorf("mutation.decay must be finite, got %v", m.Decay)
	}

	b := c.Breed
	if !inRange(b.SelectionCutoff, 0, 1) || b.SelectionCutoff == 0 {
		return configErrorf("breed.selection_cutoff must be within (0,1], got %v", b.SelectionCutoff)
	}
	if !inRange(b.ImmortalityCutoff, 0, 1) {
		return configErrorf("breed.immortality_cutoff must be within [0,1], got %v", b.ImmortalityCutoff)
	}
	if !inRange(b.ChildrenPercentage, 0, 1) {
		return configErrorf("breed.children_percentage must be within [0,1], got %v", b.ChildrenPercentage)
	}

	pools := c.PoolSizes()
	if pools.Selection < 1 {
		return configErrorf("selection pool is empty for population_size=%d", c.PopulationSize)
	}
	if pools.Elite < 1 {
		return configErrorf("immortality pool is empty for population_size=%d cutoff=%v", c.PopulationSize, b.ImmortalityCutoff)
	}
	// Every elite is carried twice: once mutated, once pristine.
	if bred := pools.Children + 2*pools.Elite; bred > c.PopulationSize {
		return configErrorf("children (%d) plus twice the elite (%d) exceed population_size=%d",
			pools.Children, pools.Elite, c.PopulationSize)
	}
	return nil
}

func configErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", nn.ErrConfiguration, fmt.Sprintf(format, args...))
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func inRange(v, lo, hi float64) bool {
	return isFinite(v) && v >= lo && v <= hi
}
