package client

// PerspectiveMode selects where the camera sits relative to the player.
type PerspectiveMode int

const (
	FirstPerson PerspectiveMode = iota
	SecondPerson
	ThirdPerson
)

func (m PerspectiveMode) String() string {
	switch m {
	case SecondPerson:
		return "second"
	case ThirdPerson:
		return "third"
	default:
		return "first"
	}
}

// Perspective derives the render camera from the player's eye.
type Perspective struct {
	controls *Controls
	grid     VoxelGrid

	Mode PerspectiveMode
	// Distance is how far the camera sits from the eye outside first person.
	Distance float64

	camera Transform
}

func NewPerspective(controls *Controls, grid VoxelGrid) *Perspective {
	return &Perspective{controls: controls, grid: grid, Distance: 4}
}

// Toggle cycles first -> second -> third person.
func (p *Perspective) Toggle() {
	p.Mode = (p.Mode + 1) % 3
}

// Update recomputes the camera. Outside first person the camera is pulled in
// so it never ends up inside a block.
func (p *Perspective) Update() {
	eye := p.controls.Eye()
	switch p.Mode {
	case SecondPerson:
		d := p.clearance(eye.Position, eye.Direction)
		p.camera = Transform{Position: eye.Position.Add(eye.Direction.Scale(d)), Direction: eye.Direction.Scale(-1)}
	case ThirdPerson:
		back := eye.Direction.Scale(-1)
		d := p.clearance(eye.Position, back)
		p.camera = Transform{Position: eye.Position.Add(back.Scale(d)), Direction: eye.Direction}
	default:
		p.camera = eye
	}
}

func (p *Perspective) clearance(from, dir Vec3) float64 {
	if hit, ok := Raycast(p.grid, from, dir, p.Distance); ok {
		return max(0, hit.Distance-0.1)
	}
	return p.Distance
}

// Camera is the transform computed by the last Update.
func (p *Perspective) Camera() Transform { return p.camera }
