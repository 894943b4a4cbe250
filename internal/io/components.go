package io

import (
	"context"
	"fmt"
	"sync"
)

const (
	ObservationSensorName = "obstacle_observation"
	FlapActuatorName      = "flap"
)

// ObservationSensor holds the latest observation pushed by the scape.
type ObservationSensor struct {
	mu     sync.RWMutex
	width  int
	values []float64
}

func NewObservationSensor(width int) *ObservationSensor {
	return &ObservationSensor{width: width, values: make([]float64, width)}
}

func (s *ObservationSensor) Name() string {
	return ObservationSensorName
}

func (s *ObservationSensor) Width() int {
	return s.width
}

func (s *ObservationSensor) Read(ctx context.Context) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.values) != s.width {
		return nil, fmt.Errorf("observation has %d values, sensor width is %d", len(s.values), s.width)
	}
	return append([]float64(nil), s.values...), nil
}

func (s *ObservationSensor) Set(values []float64) {
	s.mu.Lock()
	s.values = append(s.values[:0], values...)
	s.mu.Unlock()
}

// LatchActuator records the last values written to it.
type LatchActuator struct {
	mu   sync.RWMutex
	name string
	last []float64
}

func NewLatchActuator(name string) *LatchActuator {
	return &LatchActuator{name: name}
}

func (a *LatchActuator) Name() string {
	return a.name
}

func (a *LatchActuator) Write(_ context.Context, values []float64) error {
	a.mu.Lock()
	a.last = append(a.last[:0], values...)
	a.mu.Unlock()
	return nil
}

func (a *LatchActuator) Last() []float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]float64(nil), a.last...)
}

// Reset clears the latched output.
func (a *LatchActuator) Reset() {
	a.mu.Lock()
	a.last = a.last[:0]
	a.mu.Unlock()
}
