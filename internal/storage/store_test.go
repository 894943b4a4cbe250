package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neuroflap/internal/model"
)

// exerciseStore runs the behavior every Store backend shares.
func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	older := model.RunRecord{
		VersionedRecord: Stamp(),
		ID:              "run-b",
		CreatedAtUTC:    time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Seed:            1,
		Populations:     []string{"relu5"},
		Generations:     2,
	}
	newer := older
	newer.ID = "run-a"
	newer.CreatedAtUTC = older.CreatedAtUTC.Add(time.Hour)
	for _, run := range []model.RunRecord{newer, older} {
		require.NoError(t, store.SaveRun(ctx, run), "save run %s", run.ID)
	}

	loaded, ok, err := store.GetRun(ctx, "run-b")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1), loaded.Seed)
	assert.True(t, loaded.CreatedAtUTC.Equal(older.CreatedAtUTC))
	assert.Equal(t, []string{"relu5"}, loaded.Populations)

	_, ok, err = store.GetRun(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	runs, err := store.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-b", runs[0].ID, "runs are listed oldest first")
	assert.Equal(t, "run-a", runs[1].ID)

	snapshot := model.PopulationSnapshot{
		VersionedRecord: Stamp(),
		RunID:           "run-a",
		Name:            "relu5",
		Generation:      1,
		Shapes:          "2, 1:sigmoid",
		Entities: []model.EntityRecord{
			{Fitness: 1, Genotype: []float64{0, 1, 1}},
		},
		Best: model.EntityRecord{Fitness: 3, Genotype: []float64{0, 1, 1}},
	}
	require.NoError(t, store.SavePopulation(ctx, snapshot))
	snapshot.Generation = 2
	require.NoError(t, store.SavePopulation(ctx, snapshot))

	gotSnapshot, ok, err := store.GetPopulation(ctx, "run-a", "relu5")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, gotSnapshot.Generation)
	require.Len(t, gotSnapshot.Entities, 1)
	assert.Equal(t, []float64{0, 1, 1}, gotSnapshot.Entities[0].Genotype)

	_, ok, err = store.GetPopulation(ctx, "run-b", "relu5")
	require.NoError(t, err)
	assert.False(t, ok, "snapshots are keyed by run")

	for _, summary := range []model.GenerationSummary{
		{Generation: 2, Best: 5, Mean: 2, Worst: 1},
		{Generation: 1, Best: 3, Mean: 1.5, Worst: 1},
		{Generation: 2, Best: 6, Mean: 2, Worst: 1},
	} {
		require.NoError(t, store.AppendGenerationSummary(ctx, "run-a", "relu5", summary))
	}
	summaries, ok, err := store.GetGenerationSummaries(ctx, "run-a", "relu5")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, summaries, 2)
	assert.Equal(t, 1, summaries[0].Generation)
	assert.Equal(t, 6.0, summaries[1].Best)

	_, ok, err = store.GetGenerationSummaries(ctx, "run-a", "other")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Reset(ctx))
	runs, err = store.ListRuns(ctx)
	require.NoError(t, err)
	assert.Empty(t, runs)
	_, ok, err = store.GetPopulation(ctx, "run-a", "relu5")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStoreContract(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Init(context.Background()))
	exerciseStore(t, store)
}

func TestMemoryStoreRequiresInit(t *testing.T) {
	store := NewMemoryStore()
	err := store.SaveRun(context.Background(), model.RunRecord{ID: "r"})
	require.Error(t, err)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Init(ctx))

	genotype := []float64{1, 2, 3}
	snapshot := model.PopulationSnapshot{RunID: "r", Name: "p", Entities: []model.EntityRecord{{Genotype: genotype}}}
	require.NoError(t, store.SavePopulation(ctx, snapshot))
	genotype[0] = 99

	loaded, ok, err := store.GetPopulation(ctx, "r", "p")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1.0, loaded.Entities[0].Genotype[0], "store aliased caller genotype")

	loaded.Entities[0].Genotype[1] = 99
	again, _, err := store.GetPopulation(ctx, "r", "p")
	require.NoError(t, err)
	assert.Equal(t, 2.0, again.Entities[0].Genotype[1], "store returned shared genotype")
}

func TestNewStoreMemory(t *testing.T) {
	store, err := NewStore("memory", "")
	require.NoError(t, err)
	require.NotNil(t, store)
	require.NoError(t, CloseIfSupported(store))
}

func TestNewStoreUnsupported(t *testing.T) {
	_, err := NewStore("unknown", "")
	require.ErrorIs(t, err, ErrUnsupportedStore)
}

func TestNewStoreNormalizesKind(t *testing.T) {
	store, err := NewStore(" Memory ", "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, store)
	require.NoError(t, CloseIfSupported(nil))
}
