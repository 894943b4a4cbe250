package io

import "context"

// Sensor produces the fixed-width observation an agent's network consumes.
type Sensor interface {
	Name() string
	Width() int
	Read(ctx context.Context) ([]float64, error)
}

// VectorSensorSetter is the environment-facing side of a sensor: the scape
// pushes the current observation through it once per tick.
type VectorSensorSetter interface {
	Set(values []float64)
}

type Actuator interface {
	Name() string
	Write(ctx context.Context, values []float64) error
}

// SnapshotActuator exposes the most recent actuator output to the scape.
type SnapshotActuator interface {
	Last() []float64
}
