package evo

import "math/rand"

// Normalish approximates a standard-normal draw by averaging four uniform
// samples and mapping the mean onto [-1, 1).
func Normalish(rng *rand.Rand) float64 {
	r := rng.Float64() + rng.Float64() + rng.Float64() + rng.Float64()
	return (r/4.0)*2.0 - 1
}

// PerturbMutator nudges each gene independently with probability Odds by
// Magnitude * Normalish().
type PerturbMutator struct {
	Magnitude float64
	Odds      float64
}

func (PerturbMutator) Name() string {
	return "perturb"
}

func (m PerturbMutator) Apply(rng *rand.Rand, genotype Genotype) {
	for i, gene := range genotype {
		if rng.Float64() < m.Odds {
			genotype[i] = gene + m.Magnitude*Normalish(rng)
		}
	}
}
