package scape

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"

	protoio "neuroflap/internal/io"
)

// ObservationWidth is the number of inputs Flappy feeds each controller:
// three per nearest obstacle for two obstacles, plus vertical velocity.
const ObservationWidth = 7

// WorldConfig holds the physics and geometry of the Flappy scape. Distances
// are pixels, velocities pixels per second, and y grows downward.
type WorldConfig struct {
	Width              float64 `json:"width" ini:"width"`
	Height             float64 `json:"height" ini:"height"`
	Gravity            float64 `json:"gravity" ini:"gravity"`
	TerminalVelocity   float64 `json:"terminal_velocity" ini:"terminal_velocity"`
	MaxUpwardsVelocity float64 `json:"max_upwards_velocity" ini:"max_upwards_velocity"`
	Acceleration       float64 `json:"acceleration" ini:"acceleration"`
	TreadmillSpeed     float64 `json:"treadmill_speed" ini:"treadmill_speed"`
	ObstacleSpacingX   float64 `json:"obstacle_spacing_x" ini:"obstacle_spacing_x"`
	GapSize            float64 `json:"gap_size" ini:"gap_size"`
	ObstacleCount      int     `json:"obstacle_count" ini:"obstacle_count"`
	ObstacleWidth      float64 `json:"obstacle_width" ini:"obstacle_width"`
	ObstacleHeight     float64 `json:"obstacle_height" ini:"obstacle_height"`
	FirstObstacleX     float64 `json:"first_obstacle_x" ini:"first_obstacle_x"`
	AgentX             float64 `json:"agent_x" ini:"agent_x"`
	AgentY             float64 `json:"agent_y" ini:"agent_y"`
	AgentWidth         float64 `json:"agent_width" ini:"agent_width"`
	AgentHeight        float64 `json:"agent_height" ini:"agent_height"`
	CollisionInset     float64 `json:"collision_inset" ini:"collision_inset"`
	MaxTick            float64 `json:"max_tick" ini:"max_tick"`
	EpisodeLimit       float64 `json:"episode_limit" ini:"episode_limit"`
}

func DefaultWorldConfig() WorldConfig {
	return WorldConfig{
		Width:              960,
		Height:             540,
		Gravity:            900,
		TerminalVelocity:   400,
		MaxUpwardsVelocity: -300,
		Acceleration:       -450,
		TreadmillSpeed:     -125,
		ObstacleSpacingX:   250,
		GapSize:            100,
		ObstacleCount:      5,
		ObstacleWidth:      52,
		ObstacleHeight:     320,
		FirstObstacleX:     500,
		AgentX:             50,
		AgentY:             100,
		AgentWidth:         34,
		AgentHeight:        24,
		CollisionInset:     10,
		MaxTick:            1.0 / 30.0,
		EpisodeLimit:       120,
	}
}

func (c WorldConfig) Validate() error {
	switch {
	case c.Width <= 0 || c.Height <= 0:
		return fmt.Errorf("world size must be positive, got %vx%v", c.Width, c.Height)
	case c.Gravity <= 0:
		return fmt.Errorf("gravity must be positive, got %v", c.Gravity)
	case c.MaxUpwardsVelocity > c.TerminalVelocity:
		return fmt.Errorf("max_upwards_velocity %v exceeds terminal_velocity %v", c.MaxUpwardsVelocity, c.TerminalVelocity)
	case c.ObstacleCount < 3:
		// the observation skips a passed obstacle and still needs two ahead
		return fmt.Errorf("obstacle_count must be >= 3, got %d", c.ObstacleCount)
	case c.ObstacleSpacingX <= c.ObstacleWidth:
		return fmt.Errorf("obstacle_spacing_x %v must exceed obstacle_width %v", c.ObstacleSpacingX, c.ObstacleWidth)
	case c.ObstacleWidth <= 0 || c.ObstacleHeight <= 0 || c.GapSize <= 0:
		return errors.New("obstacle dimensions must be positive")
	case c.AgentWidth <= 0 || c.AgentHeight <= 0:
		return errors.New("agent dimensions must be positive")
	case c.MaxTick <= 0:
		return fmt.Errorf("max_tick must be positive, got %v", c.MaxTick)
	case c.EpisodeLimit < 0:
		return fmt.Errorf("episode_limit must be >= 0, got %v", c.EpisodeLimit)
	}
	return nil
}

// Obstacle is a pair of columns with a gap between GapTop and GapBottom.
type Obstacle struct {
	X         float64
	GapTop    float64
	GapBottom float64
}

// Rect is an axis-aligned box; Top < Bottom.
type Rect struct {
	Left, Top, Right, Bottom float64
}

func (r Rect) Intersects(o Rect) bool {
	return !(r.Right < o.Left || r.Bottom < o.Top || r.Left > o.Right || r.Top > o.Bottom)
}

func (r Rect) Inset(d float64) Rect {
	return Rect{Left: r.Left + d, Top: r.Top + d, Right: r.Right - d, Bottom: r.Bottom - d}
}

type body struct {
	id         string
	y          float64
	velocity   float64
	dead       bool
	sensor     protoio.VectorSensorSetter
	actuator   protoio.SnapshotActuator
	controller Controller
}

// Flappy is a headless side-scrolling world: agents fall under gravity,
// ascend on command and die on leaving the screen or touching an obstacle.
// Obstacles scroll toward the agents and are recycled once off screen.
type Flappy struct {
	cfg       WorldConfig
	rng       *rand.Rand
	obstacles []Obstacle
	bodies    []*body
	score     int
	ticks     int
	elapsed   float64
}

func NewFlappy(cfg WorldConfig, rng *rand.Rand) (*Flappy, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("flappy: %w", err)
	}
	if rng == nil {
		return nil, errors.New("flappy: random source is required")
	}
	w := &Flappy{cfg: cfg, rng: rng}
	w.obstacles = make([]Obstacle, 0, cfg.ObstacleCount)
	for i := 0; i < cfg.ObstacleCount; i++ {
		w.obstacles = append(w.obstacles, w.newObstacle(cfg.FirstObstacleX+float64(i)*cfg.ObstacleSpacingX))
	}
	return w, nil
}

func (w *Flappy) Name() string {
	return "flappy"
}

func (w *Flappy) newObstacle(x float64) Obstacle {
	center := w.cfg.Height * (0.25 + 0.5*w.rng.Float64())
	return Obstacle{
		X:         x,
		GapTop:    center - w.cfg.GapSize*0.5,
		GapBottom: center + w.cfg.GapSize*0.5,
	}
}

// Spawn adds a body at the start position and builds its controller from
// the body's sensor and actuator.
func (w *Flappy) Spawn(id string, factory ControllerFactory) error {
	sensor := protoio.NewObservationSensor(ObservationWidth)
	actuator := protoio.NewLatchActuator(protoio.FlapActuatorName)
	b := &body{id: id, y: w.cfg.AgentY, sensor: sensor, actuator: actuator}
	controller, err := factory(sensor, actuator)
	if err != nil {
		return fmt.Errorf("spawn %s: %w", id, err)
	}
	b.controller = controller
	w.bodies = append(w.bodies, b)
	return nil
}

func (w *Flappy) Obstacles() []Obstacle {
	return append([]Obstacle(nil), w.obstacles...)
}

func (w *Flappy) Score() int {
	return w.score
}

func (w *Flappy) Alive() int {
	alive := 0
	for _, b := range w.bodies {
		if !b.dead {
			alive++
		}
	}
	return alive
}

func (w *Flappy) Done() bool {
	if w.Alive() == 0 {
		return true
	}
	return w.cfg.EpisodeLimit > 0 && w.elapsed >= w.cfg.EpisodeLimit
}

func (w *Flappy) bounds(b *body) Rect {
	halfW, halfH := w.cfg.AgentWidth*0.5, w.cfg.AgentHeight*0.5
	return Rect{
		Left:   w.cfg.AgentX - halfW,
		Top:    b.y - halfH,
		Right:  w.cfg.AgentX + halfW,
		Bottom: b.y + halfH,
	}
}

// nearestObstacles returns the two obstacles ahead of the agent, skipping
// the first one once its trailing edge has passed the agent.
func (w *Flappy) nearestObstacles() []Obstacle {
	index := 0
	if w.obstacles[0].X+w.cfg.ObstacleWidth <= w.cfg.AgentX {
		index = 1
	}
	return w.obstacles[index : index+2]
}

// observe computes the controller input for b: for each of the two nearest
// obstacles the horizontal distance to its trailing edge over the world
// width and the vertical offsets from the agent to the lower and upper gap
// edges mapped around 0.5, then the velocity over gravity mapped around 0.5.
func (w *Flappy) observe(b *body) []float64 {
	box := w.bounds(b)
	out := make([]float64, 0, ObservationWidth)
	for _, o := range w.nearestObstacles() {
		out = append(out,
			(o.X+w.cfg.ObstacleWidth-box.Left)/w.cfg.Width,
			((o.GapBottom-box.Bottom)/w.cfg.Height)*0.5+0.5,
			((o.GapTop-box.Top)/w.cfg.Height)*0.5+0.5,
		)
	}
	out = append(out, (b.velocity/w.cfg.Gravity)*0.5+0.5)
	return out
}

// Step advances the world by dt seconds, clamped to MaxTick, and returns the
// simulated time actually applied. Every live controller ticks and accrues
// before any collision is resolved.
func (w *Flappy) Step(ctx context.Context, dt float64) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	dt = math.Min(math.Max(dt, 0), w.cfg.MaxTick)

	for _, b := range w.bodies {
		if b.dead {
			continue
		}
		if err := w.updateBody(ctx, b, dt); err != nil {
			return 0, err
		}
	}
	w.updateObstacles(dt)
	w.resolveCollisions()

	w.ticks++
	w.elapsed += dt
	return dt, nil
}

func (w *Flappy) updateBody(ctx context.Context, b *body, dt float64) error {
	b.sensor.Set(w.observe(b))
	if _, err := b.controller.Tick(ctx); err != nil {
		return fmt.Errorf("tick %s: %w", b.id, err)
	}
	if decision := b.actuator.Last(); len(decision) > 0 && decision[0] > 0 {
		b.velocity += w.cfg.Acceleration
	}

	b.velocity += w.cfg.Gravity * dt
	b.velocity = math.Min(math.Max(b.velocity, w.cfg.MaxUpwardsVelocity), w.cfg.TerminalVelocity)
	b.y += b.velocity * dt

	b.controller.Accrue(dt)
	return nil
}

func (w *Flappy) updateObstacles(dt float64) {
	trailing := func() float64 { return w.obstacles[0].X + w.cfg.ObstacleWidth }

	before := trailing()
	for i := range w.obstacles {
		w.obstacles[i].X += dt * w.cfg.TreadmillSpeed
	}
	after := trailing()
	if before > w.cfg.AgentX && after <= w.cfg.AgentX {
		w.score++
	}

	if after <= 0 {
		last := w.obstacles[len(w.obstacles)-1]
		copy(w.obstacles, w.obstacles[1:])
		w.obstacles[len(w.obstacles)-1] = w.newObstacle(last.X + w.cfg.ObstacleSpacingX)
	}
}

func (w *Flappy) resolveCollisions() {
	for _, b := range w.bodies {
		if b.dead {
			continue
		}
		if w.collides(b) {
			b.dead = true
			b.controller.Kill()
		}
	}
}

func (w *Flappy) collides(b *body) bool {
	box := w.bounds(b).Inset(w.cfg.CollisionInset)
	if box.Bottom >= w.cfg.Height || box.Top <= 0 {
		return true
	}
	for _, o := range w.obstacles {
		lower := Rect{Left: o.X, Top: o.GapBottom, Right: o.X + w.cfg.ObstacleWidth, Bottom: o.GapBottom + w.cfg.ObstacleHeight}
		upper := Rect{Left: o.X, Top: o.GapTop - w.cfg.ObstacleHeight, Right: o.X + w.cfg.ObstacleWidth, Bottom: o.GapTop}
		if box.Intersects(lower) || box.Intersects(upper) {
			return true
		}
	}
	return false
}

// RunEpisode steps the world at MaxTick until every body is dead or the
// episode limit is reached.
func (w *Flappy) RunEpisode(ctx context.Context) (EpisodeResult, error) {
	for !w.Done() {
		if _, err := w.Step(ctx, w.cfg.MaxTick); err != nil {
			return w.result(), err
		}
	}
	return w.result(), nil
}

func (w *Flappy) result() EpisodeResult {
	return EpisodeResult{
		Ticks:   w.ticks,
		Elapsed: w.elapsed,
		Score:   w.score,
		Alive:   w.Alive(),
	}
}
