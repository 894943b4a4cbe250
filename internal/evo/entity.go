package evo

import "math/rand"

// InitialFitness is the fitness every freshly created or bred entity starts
// with before its episode.
const InitialFitness = 1.0

// Genotype is the flat parameter vector shared with nn.Network: all biases,
// then all weights.
type Genotype []float64

func (g Genotype) Clone() Genotype {
	if g == nil {
		return nil
	}
	return append(Genotype(nil), g...)
}

// RandomGenotype draws size genes uniformly from [-1, 1).
func RandomGenotype(rng *rand.Rand, size int) Genotype {
	g := make(Genotype, size)
	for i := range g {
		g[i] = rng.Float64()*2 - 1
	}
	return g
}

// Entity pairs a genotype with the fitness it accumulated during an episode.
type Entity struct {
	Fitness  float64
	Genotype Genotype
}

func NewEntity(rng *rand.Rand, size int) *Entity {
	return &Entity{Fitness: InitialFitness, Genotype: RandomGenotype(rng, size)}
}

// Clone copies fitness and genotype; the result shares no memory with e.
func (e *Entity) Clone() *Entity {
	return &Entity{Fitness: e.Fitness, Genotype: e.Genotype.Clone()}
}

// Accrue adds elapsed survival time to the entity's fitness.
func (e *Entity) Accrue(dt float64) {
	e.Fitness += dt
}
