package client

// Effect is a purely visual system that follows the player.
type Effect interface {
	Update(center Vec3, dt float64)
}

// Sky is centered on the player every frame.
type Sky struct {
	Center Vec3
}

func (s *Sky) Update(center Vec3, _ float64) { s.Center = center }

// Clouds follow the player horizontally and drift along +X.
type Clouds struct {
	Height float64
	Speed  float64

	Center Vec3
	Drift  float64
}

func NewClouds() *Clouds { return &Clouds{Height: 90, Speed: 0.8} }

func (c *Clouds) Update(center Vec3, dt float64) {
	c.Center = Vec3{X: center.X, Y: c.Height, Z: center.Z}
	c.Drift += c.Speed * dt
}
