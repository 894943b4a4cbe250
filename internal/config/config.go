// Package config loads training runs from INI files.
package config

import (
	"fmt"
	"strings"

	"gopkg.in/ini.v1"

	"neuroflap/internal/evo"
	"neuroflap/internal/nn"
	"neuroflap/internal/scape"
	"neuroflap/internal/storage"
)

const populationSectionPrefix = "population."

// Run is a complete training configuration: the shared world and every
// population trained in it.
type Run struct {
	Generations int
	Seed        int64
	Store       string
	DBPath      string
	World       scape.WorldConfig
	Populations []Population
}

// Population names one evo.Config.
type Population struct {
	Name   string
	Config evo.Config
}

type runSection struct {
	Generations int     `ini:"generations"`
	Seed        int64   `ini:"seed"`
	Store       string  `ini:"store"`
	DBPath      string  `ini:"db_path"`
	MaxTick     float64 `ini:"max_tick"`
	// EpisodeLimit is in seconds; 0 disables the limit.
	EpisodeLimit float64 `ini:"episode_limit"`
}

type populationSection struct {
	Size               int     `ini:"size"`
	Shapes             string  `ini:"shapes"`
	GenotypeSize       int     `ini:"genotype_size"`
	MutationMagnitude  float64 `ini:"mutation_magnitude"`
	MutationOdds       float64 `ini:"mutation_odds"`
	MutationDecay      float64 `ini:"mutation_decay"`
	SelectionCutoff    float64 `ini:"selection_cutoff"`
	ImmortalityCutoff  float64 `ini:"immortality_cutoff"`
	ChildrenPercentage float64 `ini:"children_percentage"`
}

var defaultPopulations = []struct {
	name   string
	shapes string
}{
	{"relu5", "7, 5:relu, 1:sigmoid"},
	{"relu9", "7, 9:relu, 1:sigmoid"},
	{"relu9x2", "7, 9:relu, 9:relu, 1:sigmoid"},
}

// Default returns the three-population flappy setup.
func Default() Run {
	run := Run{
		Generations: 10,
		Seed:        1,
		Store:       storage.DefaultStoreKind,
		DBPath:      "neuroflap.db",
		World:       scape.DefaultWorldConfig(),
	}
	for _, p := range defaultPopulations {
		shapes, err := nn.ParseTopology(p.shapes)
		if err != nil {
			panic(fmt.Sprintf("default shapes %q: %v", p.shapes, err))
		}
		run.Populations = append(run.Populations, Population{Name: p.name, Config: evo.DefaultConfig(shapes)})
	}
	return run
}

// Load reads an INI file. Keys missing from the file keep their Default
// values; when the file declares any [population.<name>] section, only the
// declared populations are trained.
func Load(path string) (Run, error) {
	file, err := ini.Load(path)
	if err != nil {
		return Run{}, fmt.Errorf("load config file %q: %w", path, err)
	}
	return parse(file)
}

// Parse reads INI text.
func Parse(data []byte) (Run, error) {
	file, err := ini.Load(data)
	if err != nil {
		return Run{}, fmt.Errorf("parse config: %w", err)
	}
	return parse(file)
}

func parse(file *ini.File) (Run, error) {
	run := Default()

	if err := file.Section("world").StrictMapTo(&run.World); err != nil {
		return Run{}, fmt.Errorf("map [world] section: %w", err)
	}
	// max_tick and episode_limit may be set in either section; [run] wins.
	rs := runSection{
		Generations:  run.Generations,
		Seed:         run.Seed,
		Store:        run.Store,
		DBPath:       run.DBPath,
		MaxTick:      run.World.MaxTick,
		EpisodeLimit: run.World.EpisodeLimit,
	}
	if err := file.Section("run").StrictMapTo(&rs); err != nil {
		return Run{}, fmt.Errorf("map [run] section: %w", err)
	}
	run.Generations = rs.Generations
	run.Seed = rs.Seed
	run.Store = strings.TrimSpace(rs.Store)
	run.DBPath = strings.TrimSpace(rs.DBPath)
	run.World.MaxTick = rs.MaxTick
	run.World.EpisodeLimit = rs.EpisodeLimit

	var populations []Population
	for _, section := range file.Sections() {
		name, ok := strings.CutPrefix(section.Name(), populationSectionPrefix)
		if !ok {
			continue
		}
		p, err := parsePopulation(name, section)
		if err != nil {
			return Run{}, err
		}
		populations = append(populations, p)
	}
	if len(populations) > 0 {
		run.Populations = populations
	}

	if err := run.Validate(); err != nil {
		return Run{}, err
	}
	return run, nil
}

func parsePopulation(name string, section *ini.Section) (Population, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Population{}, fmt.Errorf("%w: population section needs a name", nn.ErrConfiguration)
	}

	defaults := evo.DefaultConfig(nil)
	ps := populationSection{
		Size:               defaults.PopulationSize,
		MutationMagnitude:  defaults.Mutation.Magnitude,
		MutationOdds:       defaults.Mutation.Odds,
		MutationDecay:      defaults.Mutation.Decay,
		SelectionCutoff:    defaults.Breed.SelectionCutoff,
		ImmortalityCutoff:  defaults.Breed.ImmortalityCutoff,
		ChildrenPercentage: defaults.Breed.ChildrenPercentage,
	}
	if err := section.StrictMapTo(&ps); err != nil {
		return Population{}, fmt.Errorf("map [%s] section: %w", section.Name(), err)
	}

	shapes, err := nn.ParseTopology(ps.Shapes)
	if err != nil {
		return Population{}, fmt.Errorf("population %s: shapes: %w", name, err)
	}
	cfg := evo.DefaultConfig(shapes)
	cfg.PopulationSize = ps.Size
	if ps.GenotypeSize != 0 {
		cfg.Genotype.Size = ps.GenotypeSize
	}
	cfg.Mutation = evo.MutationConfig{
		Magnitude: ps.MutationMagnitude,
		Odds:      ps.MutationOdds,
		Decay:     ps.MutationDecay,
	}
	cfg.Breed = evo.BreedConfig{
		SelectionCutoff:    ps.SelectionCutoff,
		ImmortalityCutoff:  ps.ImmortalityCutoff,
		ChildrenPercentage: ps.ChildrenPercentage,
	}
	return Population{Name: name, Config: cfg}, nil
}

// Validate checks the run settings, the world and every population config.
func (r Run) Validate() error {
	if r.Generations < 0 {
		return fmt.Errorf("%w: generations must be >= 0, got %d", nn.ErrConfiguration, r.Generations)
	}
	if err := r.World.Validate(); err != nil {
		return fmt.Errorf("%w: world: %v", nn.ErrConfiguration, err)
	}
	if len(r.Populations) == 0 {
		return fmt.Errorf("%w: at least one population is required", nn.ErrConfiguration)
	}
	seen := make(map[string]bool, len(r.Populations))
	for _, p := range r.Populations {
		if seen[p.Name] {
			return fmt.Errorf("%w: duplicate population %q", nn.ErrConfiguration, p.Name)
		}
		seen[p.Name] = true
		if err := p.Config.Validate(); err != nil {
			return fmt.Errorf("population %s: %w", p.Name, err)
		}
		if got := p.Config.Shapes.InputWidth(); got != scape.ObservationWidth {
			return fmt.Errorf("population %s: %w: input width %d, observation width %d",
				p.Name, nn.ErrDimensionMismatch, got, scape.ObservationWidth)
		}
	}
	return nil
}
