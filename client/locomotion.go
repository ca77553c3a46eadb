package client

import (
	"math"

	"go.uber.org/zap"
)

// MoveMode is the derived movement mode of the local player.
type MoveMode int

const (
	ModeWalking MoveMode = iota
	ModeFlying
	ModeGhost
)

func (m MoveMode) String() string {
	switch m {
	case ModeFlying:
		return "flying"
	case ModeGhost:
		return "ghost"
	default:
		return "walking"
	}
}

// PlayerState is the local player's kinematic state. Position is at the feet.
type PlayerState struct {
	Position Vec3
	Velocity Vec3
	Yaw      float64
	Pitch    float64
	Ghost    bool
	Flying   bool
	OnGround bool
}

func (s PlayerState) Mode() MoveMode {
	switch {
	case s.Ghost:
		return ModeGhost
	case s.Flying:
		return ModeFlying
	default:
		return ModeWalking
	}
}

// ControlOptions tunes locomotion, in blocks and seconds.
type ControlOptions struct {
	WalkSpeed float64 `yaml:"walk_speed"`
	FlySpeed  float64 `yaml:"fly_speed"`
	JumpSpeed float64 `yaml:"jump_speed"`
	Gravity   float64 `yaml:"gravity"`
	MaxFall   float64 `yaml:"max_fall"`
	EyeHeight float64 `yaml:"eye_height"`
	Width     float64 `yaml:"width"`
	Height    float64 `yaml:"height"`
}

func DefaultControlOptions() ControlOptions {
	return ControlOptions{
		WalkSpeed: 5,
		FlySpeed:  10,
		JumpSpeed: 8,
		Gravity:   24,
		MaxFall:   40,
		EyeHeight: 1.6,
		Width:     0.6,
		Height:    1.8,
	}
}

const maxPitch = 89 * math.Pi / 180

// Controls integrates input into PlayerState once per tick.
type Controls struct {
	log      *zap.SugaredLogger
	inputs   *Inputs
	grid     VoxelGrid
	resolver Resolver
	opts     ControlOptions

	state PlayerState
}

func NewControls(log *zap.SugaredLogger, inputs *Inputs, grid VoxelGrid, resolver Resolver, opts ControlOptions) *Controls {
	if resolver == nil {
		resolver = &VoxelResolver{Grid: grid}
	}
	return &Controls{log: log, inputs: inputs, grid: grid, resolver: resolver, opts: opts}
}

func (c *Controls) State() PlayerState { return c.state }

// Teleport moves the player and clears velocity.
func (c *Controls) Teleport(p Vec3) {
	c.state.Position = p
	c.state.Velocity = Vec3{}
	c.state.OnGround = false
}

// ToggleGhost switches collision resolution off or back on.
func (c *Controls) ToggleGhost() {
	c.state.Ghost = !c.state.Ghost
	c.log.Infow("ghost mode", "on", c.state.Ghost)
}

// ToggleFly switches gravity off or back on.
func (c *Controls) ToggleFly() {
	c.state.Flying = !c.state.Flying
	c.state.Velocity.Y = 0
	c.log.Infow("fly mode", "on", c.state.Flying)
}

// Look rotates the view; pitch is clamped short of straight up/down.
func (c *Controls) Look(dYaw, dPitch float64) {
	c.state.Yaw = math.Mod(c.state.Yaw+dYaw, 2*math.Pi)
	c.state.Pitch = math.Max(-maxPitch, math.Min(maxPitch, c.state.Pitch+dPitch))
}

// Eye is the camera transform at eye height.
func (c *Controls) Eye() Transform {
	return Transform{
		Position:  c.state.Position.Add(Vec3{Y: c.opts.EyeHeight}),
		Direction: DirectionFromAngles(c.state.Yaw, c.state.Pitch),
	}
}

// Box is the player's collision volume.
func (c *Controls) Box() AABB {
	hw := c.opts.Width / 2
	p := c.state.Position
	return AABB{
		Min: Vec3{p.X - hw, p.Y, p.Z - hw},
		Max: Vec3{p.X + hw, p.Y + c.opts.Height, p.Z + hw},
	}
}

// Update advances the player by dt seconds.
func (c *Controls) Update(dt float64) {
	if c.inputs != nil {
		c.Look(c.inputs.TakeLook())
	}
	feet := CoordOf(c.state.Position)
	if !c.grid.Ready(feet.X, feet.Y, feet.Z) {
		// hold still until the chunk below us streams in
		c.state.Velocity = Vec3{}
		return
	}

	var axes Axes
	if c.inputs != nil {
		axes = c.inputs.Axes()
	}
	sin, cos := math.Sincos(c.state.Yaw)
	forward := Vec3{X: -sin, Z: -cos}
	right := Vec3{X: cos, Z: -sin}
	wish := forward.Scale(axes.Forward).Add(right.Scale(axes.Right)).Normalize()

	v := c.state.Velocity
	if c.state.Ghost || c.state.Flying {
		v = wish.Scale(c.opts.FlySpeed)
		v.Y = axes.Up * c.opts.FlySpeed
	} else {
		h := wish.Scale(c.opts.WalkSpeed)
		v.X, v.Z = h.X, h.Z
		v.Y -= c.opts.Gravity * dt
		if c.state.OnGround && c.inputs != nil && c.inputs.IsDown("space") {
			v.Y = c.opts.JumpSpeed
		}
		v.Y = math.Max(v.Y, -c.opts.MaxFall)
	}

	delta := v.Scale(dt)
	if c.state.Ghost {
		c.state.Position = c.state.Position.Add(delta)
		c.state.OnGround = false
		c.state.Velocity = v
		return
	}

	applied, blocked := c.resolver.Resolve(c.Box(), delta)
	c.state.Position = c.state.Position.Add(applied)
	if blocked[0] {
		v.X = 0
	}
	if blocked[2] {
		v.Z = 0
	}
	c.state.OnGround = blocked[1] && v.Y < 0
	if blocked[1] {
		v.Y = 0
	}
	c.state.Velocity = v
}
