package evo

import "math/rand"

// SpliceAt returns primary[0:k] followed by secondary[k:]. The result is a
// fresh slice.
func SpliceAt(primary, secondary Genotype, k int) Genotype {
	child := make(Genotype, 0, len(secondary))
	child = append(child, primary[:k]...)
	child = append(child, secondary[k:]...)
	return child
}

// SinglePointCrossover picks k uniformly from [0, len(primary)] and splices
// the parents at k. k is returned alongside the child.
func SinglePointCrossover(rng *rand.Rand, primary, secondary Genotype) (Genotype, int) {
	k := rng.Intn(len(primary) + 1)
	return SpliceAt(primary, secondary, k), k
}
