// Package stats writes stored runs out as plain files for offline analysis.
package stats

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"neuroflap/internal/model"
)

const historyHeaderGeneration = "generation"

var historyHeader = []string{historyHeaderGeneration, "best", "mean", "worst", "score", "ticks", "elapsed"}

type PopulationArtifacts struct {
	Name     string
	History  []model.GenerationSummary
	Snapshot *model.PopulationSnapshot
}

type RunArtifacts struct {
	Run         model.RunRecord
	Populations []PopulationArtifacts
}

// WriteRunArtifacts lays a run out under baseDir/<run id>:
//
//	run.json
//	<population>/history.csv
//	<population>/population.json
//	<population>/best.json
//
// and returns the run directory.
func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Run.ID == "" {
		return "", errors.New("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Run.ID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "run.json"), artifacts.Run); err != nil {
		return "", err
	}

	for _, p := range artifacts.Populations {
		if p.Name == "" || p.Name == "." || p.Name == ".." || p.Name != filepath.Base(p.Name) {
			return "", fmt.Errorf("invalid population name %q", p.Name)
		}
		dir := filepath.Join(runDir, p.Name)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", err
		}
		if err := WriteHistory(filepath.Join(dir, "history.csv"), p.History); err != nil {
			return "", fmt.Errorf("population %s: %w", p.Name, err)
		}
		if p.Snapshot == nil {
			continue
		}
		if err := writeJSON(filepath.Join(dir, "population.json"), p.Snapshot); err != nil {
			return "", err
		}
		best := map[string]any{
			"generation": p.Snapshot.Generation,
			"shapes":     p.Snapshot.Shapes,
			"fitness":    p.Snapshot.Best.Fitness,
			"genotype":   p.Snapshot.Best.Genotype,
		}
		if err := writeJSON(filepath.Join(dir, "best.json"), best); err != nil {
			return "", err
		}
	}
	return runDir, nil
}

func WriteHistory(path string, history []model.GenerationSummary) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(historyHeader); err != nil {
		return err
	}
	for _, s := range history {
		if err := writer.Write([]string{
			strconv.Itoa(s.Generation),
			strconv.FormatFloat(s.Best, 'f', -1, 64),
			strconv.FormatFloat(s.Mean, 'f', -1, 64),
			strconv.FormatFloat(s.Worst, 'f', -1, 64),
			strconv.Itoa(s.Score),
			strconv.Itoa(s.Ticks),
			strconv.FormatFloat(s.Elapsed, 'f', -1, 64),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// ReadHistory reads a history written by WriteHistory. A missing file is
// reported as not found rather than an error.
func ReadHistory(path string) ([]model.GenerationSummary, bool, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = len(historyHeader)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return []model.GenerationSummary{}, true, nil
		}
		return nil, false, err
	}
	if header[0] != historyHeaderGeneration {
		return nil, false, fmt.Errorf("unexpected history header %v", header)
	}

	var history []model.GenerationSummary
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, err
		}
		s, err := parseHistoryRow(record)
		if err != nil {
			return nil, false, err
		}
		history = append(history, s)
	}
	return history, true, nil
}

func parseHistoryRow(record []string) (model.GenerationSummary, error) {
	var (
		s    model.GenerationSummary
		errs []error
	)
	atoi := func(text string) int {
		v, err := strconv.Atoi(text)
		errs = append(errs, err)
		return v
	}
	atof := func(text string) float64 {
		v, err := strconv.ParseFloat(text, 64)
		errs = append(errs, err)
		return v
	}
	s.Generation = atoi(record[0])
	s.Best = atof(record[1])
	s.Mean = atof(record[2])
	s.Worst = atof(record[3])
	s.Score = atoi(record[4])
	s.Ticks = atoi(record[5])
	s.Elapsed = atof(record[6])
	if err := errors.Join(errs...); err != nil {
		return model.GenerationSummary{}, fmt.Errorf("history row %v: %w", record, err)
	}
	return s, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}
