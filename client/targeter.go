package client

import (
	"math"

	"voxelview/protocol"
)

// InteractionTarget is the aimed-at voxel for the current tick. Nil means none.
type InteractionTarget struct {
	Target      *Coord
	Placement   *Coord
	Orientation Orientation
}

// Hit reports whether a non-empty voxel is aimed at.
func (t InteractionTarget) Hit() bool { return t.Target != nil }

// RayHit is the result of Raycast.
type RayHit struct {
	Cell     Coord
	Previous *Coord // empty cell visited just before Cell; nil when the origin was inside Cell
	Normal   Coord  // outward normal of the entered face
	Distance float64
}

// Raycast walks the voxel grid cell by cell from origin along dir (Amanatides-Woo)
// and returns the first non-empty cell within reach. ok is false on a miss, on a
// degenerate ray, or when the ray enters a cell the grid does not know yet.
func Raycast(grid VoxelGrid, origin, dir Vec3, reach float64) (hit RayHit, ok bool) {
	d := dir.Normalize()
	if reach <= 0 || d == (Vec3{}) || grid == nil || !grid.Initialized() {
		return RayHit{}, false
	}

	cell := CoordOf(origin)
	pos := [3]int{cell.X, cell.Y, cell.Z}
	var step [3]int
	var tMax, tDelta [3]float64
	for i := 0; i < 3; i++ {
		di := d.Axis(i)
		oi := origin.Axis(i)
		switch {
		case di > 0:
			step[i] = 1
			tMax[i] = (math.Floor(oi) + 1 - oi) / di
			tDelta[i] = 1 / di
		case di < 0:
			step[i] = -1
			tMax[i] = (oi - math.Floor(oi)) / -di
			tDelta[i] = 1 / -di
		default:
			tMax[i] = math.Inf(1)
			tDelta[i] = math.Inf(1)
		}
	}

	var lo, hi [3]int
	bounded := false
	if e, ok := grid.(extent); ok {
		l, h := e.Extent()
		lo, hi = [3]int{l.X, l.Y, l.Z}, [3]int{h.X, h.Y, h.Z}
		bounded = true
	}

	var prev *Coord
	var normal Coord
	t := 0.0
	for t <= reach {
		if bounded && leaving(pos, step, lo, hi) {
			return RayHit{}, false
		}
		c := Coord{pos[0], pos[1], pos[2]}
		if !grid.Ready(c.X, c.Y, c.Z) {
			return RayHit{}, false
		}
		if !grid.GetVoxel(c.X, c.Y, c.Z).Empty() {
			return RayHit{Cell: c, Previous: prev, Normal: normal, Distance: t}, true
		}
		p := c
		prev = &p

		axis := 0
		if tMax[1] < tMax[axis] {
			axis = 1
		}
		if tMax[2] < tMax[axis] {
			axis = 2
		}
		t = tMax[axis]
		pos[axis] += step[axis]
		tMax[axis] += tDelta[axis]
		normal = Coord{}
		switch axis {
		case 0:
			normal.X = -step[0]
		case 1:
			normal.Y = -step[1]
		case 2:
			normal.Z = -step[2]
		}
	}
	return RayHit{}, false
}

// extent is implemented by grids with a finite solid region.
type extent interface {
	Extent() (lo, hi Coord)
}

// leaving reports whether the ray is outside the box on some axis and not
// stepping back toward it; every later cell is then empty.
func leaving(pos, step, lo, hi [3]int) bool {
	for i := 0; i < 3; i++ {
		if pos[i] < lo[i] && step[i] <= 0 {
			return true
		}
		if pos[i] > hi[i] && step[i] >= 0 {
			return true
		}
	}
	return false
}

// Targeter recomputes the interaction target once per tick.
type Targeter struct {
	grid VoxelGrid

	// Reach is the maximum ray length in blocks.
	Reach float64
	// InverseDirection casts along -direction.
	InverseDirection bool

	eye    Transform
	target InteractionTarget
}

func NewTargeter(grid VoxelGrid, reach float64) *Targeter {
	return &Targeter{grid: grid, Reach: reach}
}

// Update casts from the eye and caches the result. It never mutates the grid.
func (t *Targeter) Update(eye Transform) InteractionTarget {
	t.eye = eye
	dir := eye.Direction
	if t.InverseDirection {
		dir = dir.Scale(-1)
	}
	t.target = InteractionTarget{}

	hit, ok := Raycast(t.grid, eye.Position, dir, t.Reach)
	if !ok {
		return t.target
	}
	cell := hit.Cell
	t.target.Target = &cell
	if hit.Previous != nil {
		p := *hit.Previous
		t.target.Placement = &p
		t.target.Orientation = Orientation{
			Rotation:  faceOf(hit.Normal),
			YRotation: yRotationOf(dir),
		}
	}
	return t.target
}

// Target returns the result of the last Update.
func (t *Targeter) Target() InteractionTarget { return t.target }

// Refresh recasts from the last eye after the grid changed.
func (t *Targeter) Refresh() InteractionTarget { return t.Update(t.eye) }

func faceOf(n Coord) protocol.Face {
	switch {
	case n.Y > 0:
		return protocol.FacePY
	case n.Y < 0:
		return protocol.FaceNY
	case n.X > 0:
		return protocol.FacePX
	case n.X < 0:
		return protocol.FaceNX
	case n.Z > 0:
		return protocol.FacePZ
	default:
		return protocol.FaceNZ
	}
}

// yRotationOf quantizes the horizontal view angle so a block placed on a
// floor or ceiling faces back toward the player.
func yRotationOf(dir Vec3) uint8 {
	if math.Abs(dir.X) < 1e-9 && math.Abs(dir.Z) < 1e-9 {
		return 0
	}
	angle := math.Atan2(-dir.X, -dir.Z)
	seg := 2 * math.Pi / protocol.YRotSegments
	s := int(math.Round(angle/seg)) % protocol.YRotSegments
	if s < 0 {
		s += protocol.YRotSegments
	}
	return uint8(s)
}
