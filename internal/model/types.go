package model

import "time"

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// RunRecord describes one training run over a fixed set of populations.
type RunRecord struct {
	VersionedRecord
	ID           string    `json:"id"`
	CreatedAtUTC time.Time `json:"created_at_utc"`
	Seed         int64     `json:"seed"`
	Populations  []string  `json:"populations"`
	Generations  int       `json:"generations"`
}

type EntityRecord struct {
	Fitness  float64   `json:"fitness"`
	Genotype []float64 `json:"genotype"`
}

// PopulationSnapshot is the state of a named population after a generation
// was bred. Shapes is the topology in its text form.
type PopulationSnapshot struct {
	VersionedRecord
	RunID      string         `json:"run_id"`
	Name       string         `json:"name"`
	Generation int            `json:"generation"`
	Shapes     string         `json:"shapes"`
	Entities   []EntityRecord `json:"entities"`
	// Best is the fittest entity of the evaluated generation, before breeding.
	Best EntityRecord `json:"best"`
}

// GenerationSummary records fitness statistics for one evaluated generation
// of one population together with the episode it was evaluated in.
type GenerationSummary struct {
	Generation int     `json:"generation"`
	Best       float64 `json:"best"`
	Mean       float64 `json:"mean"`
	Worst      float64 `json:"worst"`
	Score      int     `json:"score"`
	Ticks      int     `json:"ticks"`
	Elapsed    float64 `json:"elapsed"`
}
