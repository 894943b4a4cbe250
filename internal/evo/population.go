package evo

import (
	"fmt"
	"math/rand"
	"sort"

	"neuroflap/internal/nn"
)

// Population owns an ordered set of entities and breeds a replacement set on
// every Step. It is not safe for concurrent use; fitness accrual on the
// current entities must finish before Step is called.
type Population struct {
	cfg     Config
	pools   PoolSizes
	mutator Operator
	rng     *rand.Rand

	entities       []*Entity
	lastGeneration []*Entity
	generation     int
}

// NewPopulation validates cfg and seeds population_size random entities from
// rng. The population keeps rng for every later draw.
func NewPopulation(cfg Config, rng *rand.Rand) (*Population, error) {
	p, err := newPopulation(cfg, rng)
	if err != nil {
		return nil, err
	}
	p.entities = p.randomEntities(cfg.PopulationSize)
	return p, nil
}

func newPopulation(cfg Config, rng *rand.Rand) (*Population, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		return nil, fmt.Errorf("%w: random source is required", nn.ErrConfiguration)
	}

	p := &Population{
		cfg:     cfg,
		pools:   cfg.PoolSizes(),
		mutator: PerturbMutator{Magnitude: cfg.Mutation.Magnitude, Odds: cfg.Mutation.Odds},
		rng:     rng,
	}
	p.cfg.Shapes = cfg.Shapes.Clone()
	return p, nil
}

// Resume rebuilds a population from persisted entities, e.g. a stored
// snapshot. Entities are copied.
func Resume(cfg Config, rng *rand.Rand, generation int, entities []Entity) (*Population, error) {
	p, err := newPopulation(cfg, rng)
	if err != nil {
		return nil, err
	}
	if generation < 0 {
		return nil, fmt.Errorf("%w: generation must be >= 0, got %d", nn.ErrConfiguration, generation)
	}
	if len(entities) != cfg.PopulationSize {
		return nil, fmt.Errorf("%w: snapshot has %d entities, population_size is %d",
			nn.ErrDimensionMismatch, len(entities), cfg.PopulationSize)
	}
	restored := make([]*Entity, len(entities))
	for i := range entities {
		if len(entities[i].Genotype) != cfg.Genotype.Size {
			return nil, fmt.Errorf("%w: entity %d genotype has %d genes, want %d",
				nn.ErrDimensionMismatch, i, len(entities[i].Genotype), cfg.Genotype.Size)
		}
		restored[i] = entities[i].Clone()
	}
	p.entities = restored
	p.generation = generation
	return p, nil
}

func (p *Population) Config() Config {
	cfg := p.cfg
	cfg.Shapes = p.cfg.Shapes.Clone()
	return cfg
}

func (p *Population) Generation() int {
	return p.generation
}

// Entities returns the live entities. Pilots accrue fitness on them directly.
func (p *Population) Entities() []*Entity {
	return p.entities
}

// LastGeneration returns the previous generation sorted by fitness, best
// first. It is nil before the first Step.
func (p *Population) LastGeneration() []*Entity {
	return p.lastGeneration
}

// Fittest returns the best entity of the last generation.
func (p *Population) Fittest() (*Entity, bool) {
	if len(p.lastGeneration) == 0 {
		return nil, false
	}
	return p.lastGeneration[0], true
}

// Step ranks the current entities, records them as the last generation and
// replaces them with a bred generation.
func (p *Population) Step() {
	ranked := append([]*Entity(nil), p.entities...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Fitness > ranked[j].Fitness
	})

	p.lastGeneration = ranked
	p.generation++
	p.entities = p.breed(ranked)
}

// breed builds the next generation in a fixed order: crossover children,
// elite copies, a mutation pass over both, pristine elite copies, then random
// fill up to population_size.
func (p *Population) breed(ranked []*Entity) []*Entity {
	total := TotalFitness(ranked)
	elite := ranked[:p.pools.Elite]
	selection := ranked[:p.pools.Selection]

	next := make([]*Entity, 0, p.cfg.PopulationSize)
	for j := 0; j < p.pools.Children; j++ {
		primary := CyclicSelect(selection, j)
		secondary := RouletteSelect(p.rng, ranked, total)
		child, _ := SinglePointCrossover(p.rng, primary.Genotype, secondary.Genotype)
		next = append(next, &Entity{Fitness: InitialFitness, Genotype: child})
	}
	for _, e := range elite {
		next = append(next, e.Clone())
	}

	for _, e := range next {
		p.mutator.Apply(p.rng, e.Genotype)
	}

	for _, e := range elite {
		next = append(next, e.Clone())
	}
	for len(next) < p.cfg.PopulationSize {
		next = append(next, NewEntity(p.rng, p.cfg.Genotype.Size))
	}
	return next
}

// Reset discards every entity and the last generation and starts over from
// random genotypes at generation 0. Nothing from the discarded run survives.
func (p *Population) Reset() {
	p.entities = p.randomEntities(p.cfg.PopulationSize)
	p.lastGeneration = nil
	p.generation = 0
}

func (p *Population) randomEntities(n int) []*Entity {
	entities := make([]*Entity, n)
	for i := range entities {
		entities[i] = NewEntity(p.rng, p.cfg.Genotype.Size)
	}
	return entities
}

// Summary reports fitness statistics over the current entities.
type Summary struct {
	Best  float64
	Mean  float64
	Worst float64
}

func Summarize(entities []*Entity) Summary {
	if len(entities) == 0 {
		return Summary{}
	}
	s := Summary{Best: entities[0].Fitness, Worst: entities[0].Fitness}
	total := 0.0
	for _, e := range entities {
		total += e.Fitness
		if e.Fitness > s.Best {
			s.Best = e.Fitness
		}
		if e.Fitness < s.Worst {
			s.Worst = e.Fitness
		}
	}
	s.Mean = total / float64(len(entities))
	return s
}

func (p *Population) Summary() Summary {
	return Summarize(p.entities)
}
