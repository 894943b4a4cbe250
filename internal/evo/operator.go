package evo

import "math/rand"

// Operator rewrites a genotype in place.
type Operator interface {
	Name() string
	Apply(rng *rand.Rand, genotype Genotype)
}
