package agent

import (
	"context"
	"errors"
	"fmt"

	"neuroflap/internal/evo"
	protoio "neuroflap/internal/io"
	"neuroflap/internal/nn"
)

// DecisionThreshold is the network output above which the pilot ascends.
const DecisionThreshold = 0.5

var (
	ascendOutput = []float64{1}
	holdOutput   = []float64{0}
)

// Pilot binds one population entity to a network for the length of an
// episode. It reads observations from its sensor, writes the ascend decision
// to its actuator and accrues survival time on the entity while alive.
type Pilot struct {
	id       string
	entity   *evo.Entity
	network  *nn.Network
	sensor   protoio.Sensor
	actuator protoio.Actuator
	dead     bool
}

func NewPilot(
	id string,
	entity *evo.Entity,
	topology nn.Topology,
	sensor protoio.Sensor,
	actuator protoio.Actuator,
) (*Pilot, error) {
	if id == "" {
		return nil, errors.New("pilot id is required")
	}
	if entity == nil {
		return nil, fmt.Errorf("pilot %s: entity is required", id)
	}
	if sensor == nil || actuator == nil {
		return nil, fmt.Errorf("pilot %s: sensor and actuator are required", id)
	}

	network, err := nn.Load(topology, entity.Genotype)
	if err != nil {
		return nil, fmt.Errorf("pilot %s: %w", id, err)
	}
	if sensor.Width() != network.InputWidth() {
		return nil, fmt.Errorf("pilot %s: %w: sensor width %d, network input width %d",
			id, nn.ErrDimensionMismatch, sensor.Width(), network.InputWidth())
	}

	return &Pilot{
		id:       id,
		entity:   entity,
		network:  network,
		sensor:   sensor,
		actuator: actuator,
	}, nil
}

func (p *Pilot) ID() string {
	return p.id
}

func (p *Pilot) Entity() *evo.Entity {
	return p.entity
}

func (p *Pilot) Alive() bool {
	return !p.dead
}

// Kill stops fitness accrual for the rest of the episode.
func (p *Pilot) Kill() {
	p.dead = true
}

// Tick reads one observation, evaluates the network and writes [1] to the
// actuator when the first output exceeds DecisionThreshold, [0] otherwise.
// The raw network output is returned.
func (p *Pilot) Tick(ctx context.Context) ([]float64, error) {
	inputs, err := p.sensor.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("pilot %s: read %s: %w", p.id, p.sensor.Name(), err)
	}
	out, err := p.network.Predict(inputs)
	if err != nil {
		return nil, fmt.Errorf("pilot %s: %w", p.id, err)
	}

	decision := holdOutput
	if Decide(out) {
		decision = ascendOutput
	}
	if err := p.actuator.Write(ctx, decision); err != nil {
		return nil, fmt.Errorf("pilot %s: write %s: %w", p.id, p.actuator.Name(), err)
	}
	return out, nil
}

// Accrue adds dt seconds of survival to the entity's fitness unless the pilot
// has been killed.
func (p *Pilot) Accrue(dt float64) {
	if p.dead {
		return
	}
	p.entity.Accrue(dt)
}

// Decide applies the ascend rule to a network output.
func Decide(out []float64) bool {
	return len(out) > 0 && out[0] > DecisionThreshold
}
