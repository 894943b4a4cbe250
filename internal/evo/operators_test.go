package evo

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpliceAt(t *testing.T) {
	p1 := Genotype{1, 2, 3, 4}
	p2 := Genotype{-1, -2, -3, -4}

	assert.Equal(t, Genotype{-1, -2, -3, -4}, SpliceAt(p1, p2, 0))
	assert.Equal(t, Genotype{1, 2, -3, -4}, SpliceAt(p1, p2, 2))
	assert.Equal(t, Genotype{1, 2, 3, 4}, SpliceAt(p1, p2, 4))

	child := SpliceAt(p1, p2, 2)
	child[0] = 99
	assert.Equal(t, 1.0, p1[0], "splice must not alias its parents")
}

func TestSinglePointCrossoverCoversInclusiveRange(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	p1 := Genotype{1, 2, 3}
	p2 := Genotype{4, 5, 6}

	seen := map[int]bool{}
	for i := 0; i < 500; i++ {
		child, k := SinglePointCrossover(rng, p1, p2)
		require.GreaterOrEqual(t, k, 0)
		require.LessOrEqual(t, k, len(p1))
		require.Len(t, child, len(p1))
		require.Equal(t, SpliceAt(p1, p2, k), child)
		seen[k] = true
	}
	assert.Len(t, seen, len(p1)+1, "every index in [0, len] should be drawn")
}

func TestRouletteSelectFavoursFitness(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	ranked := []*Entity{{Fitness: 9}, {Fitness: 1}}

	counts := map[*Entity]int{}
	for i := 0; i < 2000; i++ {
		counts[RouletteSelect(rng, ranked, TotalFitness(ranked))]++
	}
	assert.Greater(t, counts[ranked[0]], counts[ranked[1]]*4)
}

func TestRouletteSelectZeroTotalReturnsLast(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	ranked := []*Entity{{Fitness: 0}, {Fitness: 0}, {Fitness: 0}}
	for i := 0; i < 20; i++ {
		assert.Same(t, ranked[2], RouletteSelect(rng, ranked, 0))
	}
}

func TestRouletteSelectSkipsZeroFitnessPrefix(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	ranked := []*Entity{{Fitness: 0}, {Fitness: 2}, {Fitness: 0}}
	for i := 0; i < 50; i++ {
		assert.Same(t, ranked[1], RouletteSelect(rng, ranked, 2))
	}
}

func TestCyclicSelectWraps(t *testing.T) {
	pool := []*Entity{{Fitness: 3}, {Fitness: 2}}
	assert.Same(t, pool[0], CyclicSelect(pool, 0))
	assert.Same(t, pool[1], CyclicSelect(pool, 1))
	assert.Same(t, pool[0], CyclicSelect(pool, 2))
}

func TestNormalishRange(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	sum := 0.0
	for i := 0; i < 5000; i++ {
		v := Normalish(rng)
		require.GreaterOrEqual(t, v, -1.0)
		require.Less(t, v, 1.0)
		sum += v
	}
	assert.InDelta(t, 0, sum/5000, 0.05)
}

func TestPerturbMutator(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	original := Genotype{0.5, -0.5, 0.25, 0}

	untouched := original.Clone()
	PerturbMutator{Magnitude: 10, Odds: 0}.Apply(rng, untouched)
	assert.Equal(t, original, untouched)

	mutated := original.Clone()
	PerturbMutator{Magnitude: 0.1, Odds: 1}.Apply(rng, mutated)
	for i := range original {
		assert.NotEqual(t, original[i], mutated[i])
		assert.InDelta(t, original[i], mutated[i], 0.1)
	}
}

func TestEntityCloneIsDeep(t *testing.T) {
	e := &Entity{Fitness: 2, Genotype: Genotype{1, 2}}
	c := e.Clone()
	c.Genotype[0] = 5
	c.Accrue(1)
	assert.Equal(t, Genotype{1, 2}, e.Genotype)
	assert.Equal(t, 2.0, e.Fitness)
	assert.Equal(t, 3.0, c.Fitness)
}
