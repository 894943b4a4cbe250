package scape

import (
	"context"

	protoio "neuroflap/internal/io"
)

type Agent interface {
	ID() string
}

type TickAgent interface {
	Agent
	Tick(ctx context.Context) ([]float64, error)
}

// Controller drives one body in a multi-agent episode. The scape calls Tick
// once per live tick, Accrue with the tick's elapsed seconds after physics,
// and Kill when the body dies.
type Controller interface {
	TickAgent
	Accrue(dt float64)
	Kill()
}

// ControllerFactory builds a controller wired to the sensor and actuator the
// scape allocated for a new body.
type ControllerFactory func(sensor protoio.Sensor, actuator protoio.Actuator) (Controller, error)

// EpisodeResult summarizes one finished episode.
type EpisodeResult struct {
	Ticks   int     `json:"ticks"`
	Elapsed float64 `json:"elapsed"`
	Score   int     `json:"score"`
	Alive   int     `json:"alive"`
}
