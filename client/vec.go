package client

import "math"

// Vec3 is a float position or direction.
type Vec3 struct {
	X, Y, Z float64
}

func (v Vec3) Add(o Vec3) Vec3      { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vec3) Sub(o Vec3) Vec3      { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }
func (v Vec3) Scale(s float64) Vec3 { return Vec3{v.X * s, v.Y * s, v.Z * s} }
func (v Vec3) Dot(o Vec3) float64   { return v.X*o.X + v.Y*o.Y + v.Z*o.Z }
func (v Vec3) Len() float64         { return math.Sqrt(v.Dot(v)) }
func (v Vec3) Array() [3]float64    { return [3]float64{v.X, v.Y, v.Z} }
func (v Vec3) Lerp(o Vec3, t float64) Vec3 {
	return v.Add(o.Sub(v).Scale(t))
}

// Normalize returns the unit vector, or the zero vector for a degenerate input.
func (v Vec3) Normalize() Vec3 {
	l := v.Len()
	if l < 1e-9 {
		return Vec3{}
	}
	return v.Scale(1 / l)
}

// Axis returns the component for axis 0, 1 or 2.
func (v Vec3) Axis(i int) float64 {
	switch i {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}

func vecFrom(a [3]float64) Vec3 { return Vec3{a[0], a[1], a[2]} }

// Coord is an integer voxel coordinate.
type Coord struct {
	X, Y, Z int
}

func (c Coord) Add(o Coord) Coord { return Coord{c.X + o.X, c.Y + o.Y, c.Z + o.Z} }

// Center is the world-space center of the voxel cell.
func (c Coord) Center() Vec3 {
	return Vec3{float64(c.X) + 0.5, float64(c.Y) + 0.5, float64(c.Z) + 0.5}
}

// CoordOf returns the voxel cell containing p.
func CoordOf(p Vec3) Coord {
	return Coord{int(math.Floor(p.X)), int(math.Floor(p.Y)), int(math.Floor(p.Z))}
}

// Transform is an eye position plus a view direction.
type Transform struct {
	Position  Vec3
	Direction Vec3
}

// DirectionFromAngles converts yaw/pitch (radians) into a unit view vector.
// Yaw 0 looks down -Z.
func DirectionFromAngles(yaw, pitch float64) Vec3 {
	cp := math.Cos(pitch)
	return Vec3{
		X: -math.Sin(yaw) * cp,
		Y: math.Sin(pitch),
		Z: -math.Cos(yaw) * cp,
	}
}
