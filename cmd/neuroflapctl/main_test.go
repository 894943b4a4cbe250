package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	api "neuroflap/pkg/neuroflap"
)

const testRunConfig = `
[run]
generations = 2
seed = 5
store = memory
episode_limit = 1

[population.tiny]
size = 10
shapes = 7, 2:relu, 1:sigmoid
`

func writeConfig(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run.ini")
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	return path
}

func TestRunCommandJSON(t *testing.T) {
	var out bytes.Buffer
	err := run(context.Background(), []string{
		"run",
		"--config", writeConfig(t, testRunConfig),
		"--generations", "3",
		"--log-level", "error",
		"--json",
	}, &out)
	require.NoError(t, err)

	var result api.RunResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &result))
	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, 3, result.Generations)
	require.Len(t, result.Summaries, 3)
	assert.Equal(t, "tiny", result.Summaries[0].Population)
}

func TestRunCommandText(t *testing.T) {
	var out bytes.Buffer
	err := run(context.Background(), []string{
		"run",
		"--config", writeConfig(t, testRunConfig),
		"--run-id", "cli-run",
		"--seed", "9",
		"--log-level", "error",
	}, &out)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "population=tiny generation=1 "), lines[0])
	assert.True(t, strings.HasPrefix(lines[2], "run_id=cli-run generations=2 "), lines[2])
}

func TestRunCommandRejectsBadConfig(t *testing.T) {
	err := run(context.Background(), []string{
		"run",
		"--config", writeConfig(t, "[population.p]\nshapes = 3, 1:sigmoid\n"),
		"--store", "memory",
	}, &bytes.Buffer{})
	require.Error(t, err)
}

func TestQueryCommandsNeedStoredRun(t *testing.T) {
	for _, command := range []string{"history", "population", "best"} {
		t.Run(command, func(t *testing.T) {
			err := run(context.Background(), []string{
				command, "--store", "memory", "--latest", "--population", "tiny", "--log-level", "error",
			}, &bytes.Buffer{})
			require.ErrorIs(t, err, api.ErrNotFound)
		})
	}
}

func TestPredictRequiresInputs(t *testing.T) {
	err := run(context.Background(), []string{"predict", "--store", "memory", "--latest", "--population", "tiny"}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "inputs are required")
}

func TestInitAndResetMemoryStore(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"init", "--store", "memory"}, &out))
	require.NoError(t, run(context.Background(), []string{"reset", "--store", "memory"}, &out))
	assert.Equal(t, "initialized store=memory\nreset store=memory\n", out.String())
}

func TestRunsEmpty(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"runs", "--store", "memory"}, &out))
	assert.Equal(t, "no runs found\n", out.String())

	err := run(context.Background(), []string{"runs", "--store", "memory", "--limit", "0"}, &out)
	require.Error(t, err)
}

func TestUnknownCommand(t *testing.T) {
	err := run(context.Background(), []string{"fly"}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command: fly")

	err = run(context.Background(), nil, &bytes.Buffer{})
	require.Error(t, err)
}

func TestParseFloats(t *testing.T) {
	values, err := parseFloats(" 0.5, 1,-2e-1 ")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 1, -0.2}, values)

	_, err = parseFloats("1,,2")
	require.Error(t, err)
}

func TestNewLoggerUsesJSONOffTerminal(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger("warn", &buf)
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown", "population", "tiny")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "shown", record["msg"])
	assert.Equal(t, "tiny", record["population"])

	_, err = newLogger("loud", &buf)
	require.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	level, err := parseLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}
