package client

import "math"

// AABB is an axis-aligned box in world space.
type AABB struct {
	Min, Max Vec3
}

func (b AABB) Translate(d Vec3) AABB {
	return AABB{Min: b.Min.Add(d), Max: b.Max.Add(d)}
}

// Resolver moves a box through the world. It returns the delta actually
// applied and, per axis, whether movement was stopped by a solid voxel.
type Resolver interface {
	Resolve(box AABB, delta Vec3) (applied Vec3, blocked [3]bool)
}

// sweepStep bounds how far one sub-step moves so fast falls cannot tunnel through a block.
const sweepStep = 0.25

// contactEps absorbs float drift so a box resting on a face does not count as inside it.
const contactEps = 1e-6

// VoxelResolver collides against non-empty voxels, one axis at a time (Y first).
type VoxelResolver struct {
	Grid VoxelGrid
}

func (r *VoxelResolver) Resolve(box AABB, delta Vec3) (Vec3, [3]bool) {
	var applied Vec3
	var blocked [3]bool
	for _, axis := range [3]int{1, 0, 2} {
		d := delta.Axis(axis)
		if d == 0 {
			continue
		}
		n := int(math.Ceil(math.Abs(d) / sweepStep))
		step := d / float64(n)
		moved := 0.0
		for i := 0; i < n; i++ {
			next := box.Translate(axisVec(axis, step))
			if r.solid(next) {
				blocked[axis] = true
				// voxels are whole cells, so the contact is the next cell boundary
				var snap float64
				if step < 0 {
					snap = math.Floor(box.Min.Axis(axis)+contactEps) - box.Min.Axis(axis)
				} else {
					snap = math.Ceil(box.Max.Axis(axis)-contactEps) - box.Max.Axis(axis)
				}
				if math.Abs(snap) < math.Abs(step) {
					box = box.Translate(axisVec(axis, snap))
					moved += snap
				}
				break
			}
			box = next
			moved += step
		}
		applied = applied.Add(axisVec(axis, moved))
	}
	return applied, blocked
}

func (r *VoxelResolver) solid(b AABB) bool {
	e := Vec3{contactEps, contactEps, contactEps}
	lo := CoordOf(b.Min.Add(e))
	hi := CoordOf(b.Max.Sub(e))
	for x := lo.X; x <= hi.X; x++ {
		for y := lo.Y; y <= hi.Y; y++ {
			for z := lo.Z; z <= hi.Z; z++ {
				if !r.Grid.GetVoxel(x, y, z).Empty() {
					return true
				}
			}
		}
	}
	return false
}

func axisVec(axis int, v float64) Vec3 {
	switch axis {
	case 0:
		return Vec3{X: v}
	case 1:
		return Vec3{Y: v}
	default:
		return Vec3{Z: v}
	}
}
