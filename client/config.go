package client

import (
	"fmt"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the viewer configuration, usually loaded from viewer.yaml.
type Config struct {
	Endpoint string `yaml:"endpoint"`
	Room     string `yaml:"room"`
	Name     string `yaml:"name"`
	PeerID   string `yaml:"peer_id"`

	FPS              int            `yaml:"fps"`
	Reach            float64        `yaml:"reach"`
	InverseDirection bool           `yaml:"inverse_direction"`
	RenderRadius     int            `yaml:"render_radius"`
	Controls         ControlOptions `yaml:"controls"`
	Keys             KeyBindings    `yaml:"keys"`

	LogFile     string `yaml:"log_file"`
	LogLevel    string `yaml:"log_level"`
	MetricsAddr string `yaml:"metrics_addr"`
}

// MaxReach caps the interaction ray length in blocks.
const MaxReach = 64

// KeyBindings maps discrete actions to keys.
type KeyBindings struct {
	Ghost       string `yaml:"ghost"`
	Fly         string `yaml:"fly"`
	Perspective string `yaml:"perspective"`
}

func DefaultConfig() Config {
	return Config{
		Endpoint:     "http://localhost:4000",
		Room:         "main",
		Name:         "viewer",
		FPS:          60,
		Reach:        32,
		RenderRadius: 5,
		Controls:     DefaultControlOptions(),
		Keys:         KeyBindings{Ghost: "g", Fly: "f", Perspective: "c"},
		LogFile:      "viewer.log",
		LogLevel:     "info",
	}
}

// LoadConfig reads path over the defaults. An empty path yields the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if strings.TrimSpace(path) == "" {
		cfg.Normalize()
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Normalize fills zero values with defaults.
func (c *Config) Normalize() {
	d := DefaultConfig()
	if c.FPS <= 0 {
		c.FPS = d.FPS
	}
	if c.RenderRadius <= 0 {
		c.RenderRadius = d.RenderRadius
	}
	if c.Room == "" {
		c.Room = d.Room
	}
	dc := d.Controls
	cc := &c.Controls
	for _, f := range []struct {
		v   *float64
		def float64
	}{
		{&cc.WalkSpeed, dc.WalkSpeed},
		{&cc.FlySpeed, dc.FlySpeed},
		{&cc.JumpSpeed, dc.JumpSpeed},
		{&cc.Gravity, dc.Gravity},
		{&cc.MaxFall, dc.MaxFall},
		{&cc.EyeHeight, dc.EyeHeight},
		{&cc.Width, dc.Width},
		{&cc.Height, dc.Height},
	} {
		if *f.v <= 0 {
			*f.v = f.def
		}
	}
	if c.Keys.Ghost == "" {
		c.Keys.Ghost = d.Keys.Ghost
	}
	if c.Keys.Fly == "" {
		c.Keys.Fly = d.Keys.Fly
	}
	if c.Keys.Perspective == "" {
		c.Keys.Perspective = d.Keys.Perspective
	}
}

// Validate rejects settings the loop cannot run with.
func (c Config) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint is required")
	}
	if math.IsNaN(c.Reach) || c.Reach < 0 || c.Reach > MaxReach {
		return fmt.Errorf("reach must be in [0, %v], got %v", MaxReach, c.Reach)
	}
	if c.FPS > 1000 {
		return fmt.Errorf("fps %d is out of range", c.FPS)
	}
	return nil
}
