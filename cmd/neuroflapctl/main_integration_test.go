//go:build sqlite

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neuroflap/internal/model"
	api "neuroflap/pkg/neuroflap"
)

func TestSQLiteRunThenQuery(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "neuroflap.db")
	cfgPath := writeConfig(t, testRunConfig)
	storeArgs := []string{"--store", "sqlite", "--db-path", dbPath, "--log-level", "error"}
	cmd := func(args ...string) []string {
		return append(args, storeArgs...)
	}

	var out bytes.Buffer
	require.NoError(t, run(ctx, cmd("run", "--config", cfgPath, "--run-id", "sqlite-run", "--json"), &out))
	var result api.RunResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &result))
	assert.Equal(t, "sqlite-run", result.RunID)

	out.Reset()
	require.NoError(t, run(ctx, cmd("runs", "--json"), &out))
	var runs []model.RunRecord
	require.NoError(t, json.Unmarshal(out.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, 2, runs[0].Generations)

	out.Reset()
	require.NoError(t, run(ctx, cmd("history", "--run-id", "sqlite-run", "--population", "tiny", "--json"), &out))
	var history []model.GenerationSummary
	require.NoError(t, json.Unmarshal(out.Bytes(), &history))
	require.Len(t, history, 2)

	out.Reset()
	require.NoError(t, run(ctx, cmd("best", "--latest", "--population", "tiny", "--json"), &out))
	var best api.BestGenotype
	require.NoError(t, json.Unmarshal(out.Bytes(), &best))
	assert.Equal(t, history[1].Best, best.Fitness)
	assert.Len(t, best.Genotype, 19)

	out.Reset()
	require.NoError(t, run(ctx, cmd("predict", "--latest", "--population", "tiny", "--inputs", "0.5,0.5,0.5,0.5,0.5,0.5,0.5"), &out))
	assert.True(t, strings.HasPrefix(out.String(), "output="), out.String())

	out.Reset()
	require.NoError(t, run(ctx, cmd("run", "--config", cfgPath, "--run-id", "sqlite-run", "--generations", "1"), &out))
	assert.Contains(t, out.String(), "run_id=sqlite-run generations=3")

	out.Reset()
	exportDir := t.TempDir()
	require.NoError(t, run(ctx, cmd("export", "--run-id", "sqlite-run", "--out", exportDir), &out))
	assert.Equal(t, "exported run_id=sqlite-run dir="+filepath.Join(exportDir, "sqlite-run")+"\n", out.String())

	out.Reset()
	require.NoError(t, run(ctx, cmd("reset"), &out))
	out.Reset()
	require.NoError(t, run(ctx, cmd("runs"), &out))
	assert.Equal(t, "no runs found\n", out.String())
}
