package evo

import "math/rand"

// TotalFitness sums fitness over ranked.
func TotalFitness(ranked []*Entity) float64 {
	total := 0.0
	for _, e := range ranked {
		total += e.Fitness
	}
	return total
}

// RouletteSelect draws an entity with probability fitness/total. It samples
// r in [0, total) and returns the first entity whose running fitness sum
// exceeds r. When no entity qualifies, including when total is 0, the last
// entity is returned. ranked must not be empty.
func RouletteSelect(rng *rand.Rand, ranked []*Entity, total float64) *Entity {
	roll := rng.Float64() * total
	sum := 0.0
	for _, e := range ranked {
		sum += e.Fitness
		if roll < sum {
			return e
		}
	}
	return ranked[len(ranked)-1]
}

// CyclicSelect walks pool in rank order, wrapping around: child j gets
// pool[j mod len(pool)] as its primary parent.
func CyclicSelect(pool []*Entity, j int) *Entity {
	return pool[j%len(pool)]
}
