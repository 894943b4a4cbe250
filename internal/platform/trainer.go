package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"neuroflap/internal/agent"
	"neuroflap/internal/config"
	"neuroflap/internal/evo"
	protoio "neuroflap/internal/io"
	"neuroflap/internal/model"
	"neuroflap/internal/nn"
	"neuroflap/internal/scape"
	"neuroflap/internal/storage"
)

type TrainerConfig struct {
	RunID       string
	Seed        int64
	World       scape.WorldConfig
	Populations []config.Population
	// Store is optional; without one nothing is persisted.
	Store  storage.Store
	Logger *slog.Logger
	Now    func() time.Time
}

// GenerationReport is the outcome of one evaluated generation of one
// population.
type GenerationReport struct {
	Population string `json:"population"`
	model.GenerationSummary
	BestGenotype []float64 `json:"best_genotype,omitempty"`
}

type trainee struct {
	name       string
	cfg        evo.Config
	rng        *rand.Rand
	population *evo.Population
}

// Trainer evolves named populations side by side: every generation all of
// their entities fly in one shared Flappy episode, then each population breeds
// its next generation from the fitness its entities accrued.
type Trainer struct {
	cfg      TrainerConfig
	logger   *slog.Logger
	worldRng *rand.Rand
	trainees []*trainee
	run      model.RunRecord
}

// streamSeed derives an independent seed for stream i of a run so that each
// population and the world draw from their own sequence.
func streamSeed(seed int64, stream int) int64 {
	return seed*1_000_003 + int64(stream)
}

func NewTrainer(cfg TrainerConfig) (*Trainer, error) {
	if cfg.RunID == "" {
		return nil, errors.New("run id is required")
	}
	if err := cfg.World.Validate(); err != nil {
		return nil, fmt.Errorf("%w: world: %v", nn.ErrConfiguration, err)
	}
	if len(cfg.Populations) == 0 {
		return nil, fmt.Errorf("%w: at least one population is required", nn.ErrConfiguration)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	t := &Trainer{
		cfg:      cfg,
		logger:   cfg.Logger.With("run_id", cfg.RunID),
		worldRng: rand.New(rand.NewSource(streamSeed(cfg.Seed, 0))),
	}
	seen := make(map[string]bool, len(cfg.Populations))
	names := make([]string, 0, len(cfg.Populations))
	for i, p := range cfg.Populations {
		if p.Name == "" || seen[p.Name] {
			return nil, fmt.Errorf("%w: population name %q is empty or duplicated", nn.ErrConfiguration, p.Name)
		}
		seen[p.Name] = true
		if got := p.Config.Shapes.InputWidth(); got != scape.ObservationWidth {
			return nil, fmt.Errorf("population %s: %w: input width %d, observation width %d",
				p.Name, nn.ErrDimensionMismatch, got, scape.ObservationWidth)
		}
		rng := rand.New(rand.NewSource(streamSeed(cfg.Seed, i+1)))
		population, err := evo.NewPopulation(p.Config, rng)
		if err != nil {
			return nil, fmt.Errorf("population %s: %w", p.Name, err)
		}
		t.trainees = append(t.trainees, &trainee{name: p.Name, cfg: p.Config, rng: rng, population: population})
		names = append(names, p.Name)
	}

	t.run = model.RunRecord{
		VersionedRecord: storage.Stamp(),
		ID:              cfg.RunID,
		CreatedAtUTC:    cfg.Now().UTC(),
		Seed:            cfg.Seed,
		Populations:     names,
	}
	return t, nil
}

func (t *Trainer) RunID() string {
	return t.cfg.RunID
}

// Generations is the number of generations evaluated so far.
func (t *Trainer) Generations() int {
	return t.run.Generations
}

func (t *Trainer) Population(name string) (*evo.Population, bool) {
	for _, tr := range t.trainees {
		if tr.name == name {
			return tr.population, true
		}
	}
	return nil, false
}

// Init records the run in the store. When the store already holds the run,
// every population is resumed from its latest snapshot instead.
func (t *Trainer) Init(ctx context.Context) error {
	if t.cfg.Store == nil {
		return nil
	}
	existing, ok, err := t.cfg.Store.GetRun(ctx, t.cfg.RunID)
	if err != nil {
		return fmt.Errorf("load run %s: %w", t.cfg.RunID, err)
	}
	if !ok {
		return t.saveRun(ctx)
	}

	for _, tr := range t.trainees {
		snapshot, found, err := t.cfg.Store.GetPopulation(ctx, t.cfg.RunID, tr.name)
		if err != nil {
			return fmt.Errorf("load population %s: %w", tr.name, err)
		}
		if !found {
			continue
		}
		if err := tr.resume(snapshot); err != nil {
			return err
		}
	}
	t.run.CreatedAtUTC = existing.CreatedAtUTC
	t.run.Generations = existing.Generations
	t.logger.Info("resumed run", "generations", existing.Generations)
	return nil
}

func (tr *trainee) resume(snapshot model.PopulationSnapshot) error {
	if snapshot.Shapes != tr.cfg.Shapes.String() {
		return fmt.Errorf("population %s: %w: stored shapes %q, configured %q",
			tr.name, nn.ErrConfiguration, snapshot.Shapes, tr.cfg.Shapes.String())
	}
	entities := make([]evo.Entity, len(snapshot.Entities))
	for i, e := range snapshot.Entities {
		entities[i] = evo.Entity{Fitness: e.Fitness, Genotype: evo.Genotype(e.Genotype)}
	}
	population, err := evo.Resume(tr.cfg, tr.rng, snapshot.Generation, entities)
	if err != nil {
		return fmt.Errorf("resume population %s: %w", tr.name, err)
	}
	tr.population = population
	return nil
}

// RunGeneration flies every entity of every population through one episode,
// then breeds each population and persists the results.
func (t *Trainer) RunGeneration(ctx context.Context) ([]GenerationReport, error) {
	world, err := scape.NewFlappy(t.cfg.World, t.worldRng)
	if err != nil {
		return nil, err
	}
	for _, tr := range t.trainees {
		for i, entity := range tr.population.Entities() {
			id := fmt.Sprintf("%s/%d", tr.name, i)
			err := world.Spawn(id, func(sensor protoio.Sensor, actuator protoio.Actuator) (scape.Controller, error) {
				return agent.NewPilot(id, entity, tr.cfg.Shapes, sensor, actuator)
			})
			if err != nil {
				return nil, err
			}
		}
	}

	episode, err := world.RunEpisode(ctx)
	if err != nil {
		return nil, fmt.Errorf("episode: %w", err)
	}

	reports := make([]GenerationReport, 0, len(t.trainees))
	for _, tr := range t.trainees {
		report, err := tr.evolve(episode)
		if err != nil {
			return nil, err
		}
		if err := t.persist(ctx, tr, report); err != nil {
			return nil, err
		}
		t.logger.Info("generation complete",
			"population", tr.name,
			"generation", report.Generation,
			"best", report.Best,
			"mean", report.Mean,
			"score", episode.Score,
			"ticks", episode.Ticks,
		)
		reports = append(reports, report)
	}

	t.run.Generations++
	if err := t.saveRun(ctx); err != nil {
		return nil, err
	}
	return reports, nil
}

// evolve summarizes the evaluated entities and breeds the next generation.
func (tr *trainee) evolve(episode scape.EpisodeResult) (GenerationReport, error) {
	summary := tr.population.Summary()
	tr.population.Step()

	best, ok := tr.population.Fittest()
	if !ok {
		return GenerationReport{}, fmt.Errorf("population %s: no evaluated entities", tr.name)
	}

	return GenerationReport{
		Population: tr.name,
		GenerationSummary: model.GenerationSummary{
			Generation: tr.population.Generation(),
			Best:       summary.Best,
			Mean:       summary.Mean,
			Worst:      summary.Worst,
			Score:      episode.Score,
			Ticks:      episode.Ticks,
			Elapsed:    episode.Elapsed,
		},
		BestGenotype: best.Genotype.Clone(),
	}, nil
}

func (t *Trainer) persist(ctx context.Context, tr *trainee, report GenerationReport) error {
	if t.cfg.Store == nil {
		return nil
	}
	if err := t.cfg.Store.AppendGenerationSummary(ctx, t.cfg.RunID, tr.name, report.GenerationSummary); err != nil {
		return fmt.Errorf("save summary %s: %w", tr.name, err)
	}

	entities := tr.population.Entities()
	records := make([]model.EntityRecord, len(entities))
	for i, e := range entities {
		records[i] = model.EntityRecord{Fitness: e.Fitness, Genotype: e.Genotype.Clone()}
	}
	snapshot := model.PopulationSnapshot{
		VersionedRecord: storage.Stamp(),
		RunID:           t.cfg.RunID,
		Name:            tr.name,
		Generation:      tr.population.Generation(),
		Shapes:          tr.cfg.Shapes.String(),
		Entities:        records,
		Best:            model.EntityRecord{Fitness: report.Best, Genotype: report.BestGenotype},
	}
	if err := t.cfg.Store.SavePopulation(ctx, snapshot); err != nil {
		return fmt.Errorf("save population %s: %w", tr.name, err)
	}
	return nil
}

func (t *Trainer) saveRun(ctx context.Context) error {
	if t.cfg.Store == nil {
		return nil
	}
	if err := t.cfg.Store.SaveRun(ctx, t.run); err != nil {
		return fmt.Errorf("save run %s: %w", t.cfg.RunID, err)
	}
	return nil
}

// Run evaluates generations generations and returns every report in order.
func (t *Trainer) Run(ctx context.Context, generations int) ([]GenerationReport, error) {
	if generations < 0 {
		return nil, fmt.Errorf("%w: generations must be >= 0, got %d", nn.ErrConfiguration, generations)
	}
	var reports []GenerationReport
	for g := 0; g < generations; g++ {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		generation, err := t.RunGeneration(ctx)
		if err != nil {
			return reports, err
		}
		reports = append(reports, generation...)
	}
	return reports, nil
}

// Reset hard-resets every population to random generation-0 entities.
func (t *Trainer) Reset() {
	for _, tr := range t.trainees {
		tr.population.Reset()
	}
	t.run.Generations = 0
	t.logger.Info("populations reset")
}
