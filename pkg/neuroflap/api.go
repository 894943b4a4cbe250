// Package neuroflap trains populations of fixed-topology networks to fly
// through a side-scrolling obstacle course and queries persisted runs.
package neuroflap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"neuroflap/internal/config"
	"neuroflap/internal/model"
	"neuroflap/internal/nn"
	"neuroflap/internal/platform"
	"neuroflap/internal/stats"
	"neuroflap/internal/storage"
)

const (
	defaultDBPath     = "neuroflap.db"
	defaultExportsDir = "exports"
)

var ErrNotFound = errors.New("not found")

type Options struct {
	StoreKind string
	DBPath    string
	Logger    *slog.Logger
}

type Client struct {
	store  storage.Store
	logger *slog.Logger

	initMu      sync.Mutex
	initialized bool
}

type RunRequest struct {
	// RunID continues a stored run when it exists; empty starts a new run.
	RunID  string
	Config config.Run
}

type RunResult struct {
	RunID       string
	Generations int
	Summaries   []platform.GenerationReport
}

type RunsRequest struct {
	Limit int
}

// RunSelector names a stored run and one of its populations. Latest picks the
// most recently created run.
type RunSelector struct {
	RunID      string
	Latest     bool
	Population string
}

type HistoryRequest struct {
	RunSelector
	Limit int
}

type BestGenotype struct {
	RunID      string      `json:"run_id"`
	Population string      `json:"population"`
	Generation int         `json:"generation"`
	Shapes     nn.Topology `json:"shapes"`
	Fitness    float64     `json:"fitness"`
	Genotype   []float64   `json:"genotype"`
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

type PredictRequest struct {
	RunSelector
	Inputs []float64
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}
	return &Client{store: store, logger: logger}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	c.initMu.Lock()
	defer c.initMu.Unlock()

	if c.initialized {
		return nil
	}
	if err := c.store.Init(ctx); err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	c.initialized = true
	return nil
}

// Reset deletes every stored run.
func (c *Client) Reset(ctx context.Context) error {
	if err := c.Init(ctx); err != nil {
		return err
	}
	return c.store.Reset(ctx)
}

func (c *Client) Run(ctx context.Context, req RunRequest) (RunResult, error) {
	if err := req.Config.Validate(); err != nil {
		return RunResult{}, err
	}
	if err := c.Init(ctx); err != nil {
		return RunResult{}, err
	}

	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	trainer, err := platform.NewTrainer(platform.TrainerConfig{
		RunID:       runID,
		Seed:        req.Config.Seed,
		World:       req.Config.World,
		Populations: req.Config.Populations,
		Store:       c.store,
		Logger:      c.logger,
	})
	if err != nil {
		return RunResult{}, err
	}
	if err := trainer.Init(ctx); err != nil {
		return RunResult{}, err
	}

	reports, err := trainer.Run(ctx, req.Config.Generations)
	return RunResult{RunID: runID, Generations: trainer.Generations(), Summaries: reports}, err
}

// Runs lists stored runs, newest first.
func (c *Client) Runs(ctx context.Context, req RunsRequest) ([]model.RunRecord, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	if err := c.Init(ctx); err != nil {
		return nil, err
	}
	runs, err := c.store.ListRuns(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.RunRecord, 0, len(runs))
	for i := len(runs) - 1; i >= 0; i-- {
		out = append(out, runs[i])
		if req.Limit > 0 && len(out) == req.Limit {
			break
		}
	}
	return out, nil
}

// History returns the per-generation summaries of one population, oldest
// first. A positive Limit keeps the most recent generations.
func (c *Client) History(ctx context.Context, req HistoryRequest) ([]model.GenerationSummary, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	runID, err := c.resolve(ctx, req.RunSelector)
	if err != nil {
		return nil, err
	}
	history, ok, err := c.store.GetGenerationSummaries(ctx, runID, req.Population)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: history for run %s population %s", ErrNotFound, runID, req.Population)
	}
	if req.Limit > 0 && len(history) > req.Limit {
		history = history[len(history)-req.Limit:]
	}
	return history, nil
}

// Population returns the latest stored snapshot of a population.
func (c *Client) Population(ctx context.Context, req RunSelector) (model.PopulationSnapshot, error) {
	runID, err := c.resolve(ctx, req)
	if err != nil {
		return model.PopulationSnapshot{}, err
	}
	snapshot, ok, err := c.store.GetPopulation(ctx, runID, req.Population)
	if err != nil {
		return model.PopulationSnapshot{}, err
	}
	if !ok {
		return model.PopulationSnapshot{}, fmt.Errorf("%w: population %s in run %s", ErrNotFound, req.Population, runID)
	}
	return snapshot, nil
}

// Best returns the fittest entity of the most recently evaluated generation.
func (c *Client) Best(ctx context.Context, req RunSelector) (BestGenotype, error) {
	snapshot, err := c.Population(ctx, req)
	if err != nil {
		return BestGenotype{}, err
	}
	shapes, err := nn.ParseTopology(snapshot.Shapes)
	if err != nil {
		return BestGenotype{}, fmt.Errorf("stored shapes: %w", err)
	}
	return BestGenotype{
		RunID:      snapshot.RunID,
		Population: snapshot.Name,
		Generation: snapshot.Generation,
		Shapes:     shapes,
		Fitness:    snapshot.Best.Fitness,
		Genotype:   snapshot.Best.Genotype,
	}, nil
}

// Predict evaluates the best stored network of a population on Inputs.
func (c *Client) Predict(ctx context.Context, req PredictRequest) ([]float64, error) {
	best, err := c.Best(ctx, req.RunSelector)
	if err != nil {
		return nil, err
	}
	network, err := nn.Load(best.Shapes, best.Genotype)
	if err != nil {
		return nil, err
	}
	return network.Predict(req.Inputs)
}

// Export writes every population of a stored run to OutDir/<run id>.
func (c *Client) Export(ctx context.Context, req ExportRequest) (ExportSummary, error) {
	if req.OutDir == "" {
		req.OutDir = defaultExportsDir
	}
	runID, err := c.resolveRun(ctx, req.RunID, req.Latest)
	if err != nil {
		return ExportSummary{}, err
	}
	run, ok, err := c.store.GetRun(ctx, runID)
	if err != nil {
		return ExportSummary{}, err
	}
	if !ok {
		return ExportSummary{}, fmt.Errorf("%w: run %s", ErrNotFound, runID)
	}

	artifacts := stats.RunArtifacts{Run: run}
	for _, name := range run.Populations {
		history, _, err := c.store.GetGenerationSummaries(ctx, runID, name)
		if err != nil {
			return ExportSummary{}, err
		}
		p := stats.PopulationArtifacts{Name: name, History: history}
		snapshot, ok, err := c.store.GetPopulation(ctx, runID, name)
		if err != nil {
			return ExportSummary{}, err
		}
		if ok {
			p.Snapshot = &snapshot
		}
		artifacts.Populations = append(artifacts.Populations, p)
	}

	dir, err := stats.WriteRunArtifacts(req.OutDir, artifacts)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: dir}, nil
}

func (c *Client) resolve(ctx context.Context, sel RunSelector) (string, error) {
	if sel.Population == "" {
		return "", errors.New("population is required")
	}
	return c.resolveRun(ctx, sel.RunID, sel.Latest)
}

func (c *Client) resolveRun(ctx context.Context, runID string, latest bool) (string, error) {
	if runID != "" && latest {
		return "", errors.New("use either run id or latest")
	}
	if err := c.Init(ctx); err != nil {
		return "", err
	}
	if !latest {
		if runID == "" {
			return "", errors.New("run id or latest is required")
		}
		return runID, nil
	}

	runs, err := c.store.ListRuns(ctx)
	if err != nil {
		return "", err
	}
	if len(runs) == 0 {
		return "", fmt.Errorf("%w: no runs available", ErrNotFound)
	}
	return runs[len(runs)-1].ID, nil
}
