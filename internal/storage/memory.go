package storage

import (
	"context"
	"errors"
	"sort"
	"sync"

	"neuroflap/internal/model"
)

type summaryKey struct {
	runID      string
	population string
}

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	runs        map[string]model.RunRecord
	populations map[summaryKey]model.PopulationSnapshot
	summaries   map[summaryKey][]model.GenerationSummary
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.reset()
	return nil
}

func (s *MemoryStore) reset() {
	s.runs = make(map[string]model.RunRecord)
	s.populations = make(map[summaryKey]model.PopulationSnapshot)
	s.summaries = make(map[summaryKey][]model.GenerationSummary)
}

func (s *MemoryStore) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.reset()
	return nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run model.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	run.Populations = append([]string(nil), run.Populations...)
	s.runs[run.ID] = run
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (model.RunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return model.RunRecord{}, false, nil
	}
	run.Populations = append([]string(nil), run.Populations...)
	return run, true, nil
}

// ListRuns returns every run, oldest first.
func (s *MemoryStore) ListRuns(_ context.Context) ([]model.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]model.RunRecord, 0, len(s.runs))
	for _, run := range s.runs {
		run.Populations = append([]string(nil), run.Populations...)
		runs = append(runs, run)
	}
	sortRuns(runs)
	return runs, nil
}

func (s *MemoryStore) SavePopulation(_ context.Context, snapshot model.PopulationSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.populations[summaryKey{snapshot.RunID, snapshot.Name}] = cloneSnapshot(snapshot)
	return nil
}

func (s *MemoryStore) GetPopulation(_ context.Context, runID, name string) (model.PopulationSnapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot, ok := s.populations[summaryKey{runID, name}]
	if !ok {
		return model.PopulationSnapshot{}, false, nil
	}
	return cloneSnapshot(snapshot), true, nil
}

// AppendGenerationSummary records summary in generation order, replacing an
// earlier summary for the same generation.
func (s *MemoryStore) AppendGenerationSummary(_ context.Context, runID, population string, summary model.GenerationSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	key := summaryKey{runID, population}
	summaries := s.summaries[key]
	for i := range summaries {
		if summaries[i].Generation == summary.Generation {
			summaries[i] = summary
			return nil
		}
	}
	summaries = append(summaries, summary)
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].Generation < summaries[j].Generation
	})
	s.summaries[key] = summaries
	return nil
}

func (s *MemoryStore) GetGenerationSummaries(_ context.Context, runID, population string) ([]model.GenerationSummary, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summaries, ok := s.summaries[summaryKey{runID, population}]
	if !ok {
		return nil, false, nil
	}
	return append([]model.GenerationSummary(nil), summaries...), true, nil
}

var errNotInitialized = errors.New("store is not initialized")

func cloneSnapshot(snapshot model.PopulationSnapshot) model.PopulationSnapshot {
	entities := make([]model.EntityRecord, len(snapshot.Entities))
	for i, e := range snapshot.Entities {
		entities[i] = model.EntityRecord{Fitness: e.Fitness, Genotype: append([]float64(nil), e.Genotype...)}
	}
	snapshot.Entities = entities
	snapshot.Best.Genotype = append([]float64(nil), snapshot.Best.Genotype...)
	return snapshot
}

func sortRuns(runs []model.RunRecord) {
	sort.SliceStable(runs, func(i, j int) bool {
		if runs[i].CreatedAtUTC.Equal(runs[j].CreatedAtUTC) {
			return runs[i].ID < runs[j].ID
		}
		return runs[i].CreatedAtUTC.Before(runs[j].CreatedAtUTC)
	})
}
