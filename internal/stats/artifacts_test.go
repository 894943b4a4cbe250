package stats

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neuroflap/internal/model"
)

func TestWriteRunArtifacts(t *testing.T) {
	base := t.TempDir()
	history := []model.GenerationSummary{
		{Generation: 1, Best: 2.5, Mean: 1.25, Worst: 1, Score: 0, Ticks: 75, Elapsed: 2.5},
		{Generation: 2, Best: 4.75, Mean: 2, Worst: 1, Score: 1, Ticks: 113, Elapsed: 3.75},
	}
	snapshot := &model.PopulationSnapshot{
		RunID:      "run-1",
		Name:       "relu5",
		Generation: 2,
		Shapes:     "2, 1:sigmoid",
		Entities:   []model.EntityRecord{{Fitness: 1, Genotype: []float64{0, 1, 1}}},
		Best:       model.EntityRecord{Fitness: 4.75, Genotype: []float64{0.5, 1, -1}},
	}

	runDir, err := WriteRunArtifacts(base, RunArtifacts{
		Run: model.RunRecord{ID: "run-1", CreatedAtUTC: time.Unix(0, 0).UTC(), Populations: []string{"relu5", "empty"}},
		Populations: []PopulationArtifacts{
			{Name: "relu5", History: history, Snapshot: snapshot},
			{Name: "empty"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "run-1"), runDir)

	for _, file := range []string{"run.json", "relu5/history.csv", "relu5/population.json", "relu5/best.json", "empty/history.csv"} {
		assert.FileExists(t, filepath.Join(runDir, file))
	}
	assert.NoFileExists(t, filepath.Join(runDir, "empty", "best.json"), "population without snapshot has no best.json")

	loaded, ok, err := ReadHistory(filepath.Join(runDir, "relu5", "history.csv"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, history, loaded)

	data, err := os.ReadFile(filepath.Join(runDir, "relu5", "best.json"))
	require.NoError(t, err)
	var best struct {
		Fitness  float64   `json:"fitness"`
		Genotype []float64 `json:"genotype"`
	}
	require.NoError(t, json.Unmarshal(data, &best))
	assert.Equal(t, 4.75, best.Fitness)
	assert.Equal(t, []float64{0.5, 1, -1}, best.Genotype)
}

func TestWriteRunArtifactsRejectsBadNames(t *testing.T) {
	_, err := WriteRunArtifacts(t.TempDir(), RunArtifacts{})
	require.Error(t, err, "missing run id")

	_, err = WriteRunArtifacts(t.TempDir(), RunArtifacts{
		Run:         model.RunRecord{ID: "run-1"},
		Populations: []PopulationArtifacts{{Name: "../escape"}},
	})
	require.Error(t, err, "invalid population name")
}

func TestReadHistoryMissingAndMalformed(t *testing.T) {
	dir := t.TempDir()
	_, ok, err := ReadHistory(filepath.Join(dir, "missing.csv"))
	require.NoError(t, err)
	assert.False(t, ok)

	path := filepath.Join(dir, "bad.csv")
	data := "generation,best,mean,worst,score,ticks,elapsed\n1,x,1,1,0,10,0.3\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	_, _, err = ReadHistory(path)
	require.Error(t, err)
}
