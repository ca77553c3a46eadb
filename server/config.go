package server

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"voxelview/protocol"
)

// Config 世界服务器配置（configs/server.yaml）
type Config struct {
	Addr        string `yaml:"addr"`
	LogFile     string `yaml:"log_file"`
	LogLevel    string `yaml:"log_level"`
	DBPath      string `yaml:"db_path"`
	DefaultRoom string `yaml:"default_room"`

	World WorldConfig `yaml:"world"`
	Room  RoomTuning  `yaml:"room"`
}

// WorldConfig 描述每个房间的初始地形
type WorldConfig struct {
	protocol.WorldParams `yaml:",inline"`

	Generator string              `yaml:"generator"` // flat | hills
	Seed      int64               `yaml:"seed"`
	Layers    []Layer             `yaml:"layers"`
	Blocks    []protocol.BlockDef `yaml:"blocks"`
}

// RoomTuning 房间级限额，可通过 /admin/config 运行时修改
type RoomTuning struct {
	MaxPeers             int `yaml:"max_peers" json:"maxPeers"`
	MaxUpdatesPerTick    int `yaml:"max_updates_per_tick" json:"maxUpdatesPerTick"`
	ChunkRequestsPerTick int `yaml:"chunk_requests_per_tick" json:"chunkRequestsPerTick"`
	SendBuffer           int `yaml:"send_buffer" json:"sendBuffer"`
}

// 默认方块注册表中的 id
const (
	BlockDirt  uint16 = 1
	BlockStone uint16 = 2
	BlockGrass uint16 = 3
)

func DefaultBlocks() []protocol.BlockDef {
	return []protocol.BlockDef{
		{ID: BlockDirt, Name: "Dirt", Color: "#7a5230"},
		{ID: BlockStone, Name: "Stone", Color: "#808080"},
		{ID: BlockGrass, Name: "Grass Block", Color: "#5da130"},
	}
}

// DefaultLayers 平地分层：自下而上 石头 10 层、泥土 2 层、草地 1 层
func DefaultLayers() []Layer {
	return []Layer{
		{Block: BlockStone, Height: 10},
		{Block: BlockDirt, Height: 2},
		{Block: BlockGrass, Height: 1},
	}
}

func DefaultConfig() Config {
	return Config{
		Addr:        ":4000",
		LogFile:     "server.log",
		LogLevel:    "info",
		DBPath:      "data/edits.db",
		DefaultRoom: "main",
		World: WorldConfig{
			WorldParams: protocol.WorldParams{
				ChunkSize:  16,
				MaxHeight:  64,
				MinChunk:   [2]int{-1, -1},
				MaxChunk:   [2]int{1, 1},
				TickRateHz: TicksPerSecond,
			},
			Generator: "flat",
			Layers:    DefaultLayers(),
			Blocks:    DefaultBlocks(),
		},
		Room: RoomTuning{
			MaxPeers:             32,
			MaxUpdatesPerTick:    256,
			ChunkRequestsPerTick: 4,
			SendBuffer:           256,
		},
	}
}

// LoadConfig 在默认值之上读取配置文件；路径为空时直接返回默认值
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if strings.TrimSpace(path) == "" {
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

// Normalize 用默认值补全零值字段
func (c *Config) Normalize() {
	d := DefaultConfig()
	if c.Addr == "" {
		c.Addr = d.Addr
	}
	if c.DefaultRoom == "" {
		c.DefaultRoom = d.DefaultRoom
	}
	w := &c.World
	if w.ChunkSize <= 0 {
		w.ChunkSize = d.World.ChunkSize
	}
	if w.MaxHeight <= 0 {
		w.MaxHeight = d.World.MaxHeight
	}
	if w.TickRateHz <= 0 {
		w.TickRateHz = d.World.TickRateHz
	}
	if w.Generator == "" {
		w.Generator = d.World.Generator
	}
	if len(w.Layers) == 0 {
		w.Layers = d.World.Layers
	}
	if len(w.Blocks) == 0 {
		w.Blocks = d.World.Blocks
	}
	c.Room = c.Room.normalize(d.Room)
}

func (t RoomTuning) normalize(d RoomTuning) RoomTuning {
	if t.MaxPeers <= 0 {
		t.MaxPeers = d.MaxPeers
	}
	if t.MaxUpdatesPerTick <= 0 {
		t.MaxUpdatesPerTick = d.MaxUpdatesPerTick
	}
	if t.ChunkRequestsPerTick <= 0 {
		t.ChunkRequestsPerTick = d.ChunkRequestsPerTick
	}
	if t.SendBuffer <= 0 {
		t.SendBuffer = d.SendBuffer
	}
	return t
}

func (c Config) Validate() error {
	w := c.World
	if w.MinChunk[0] > w.MaxChunk[0] || w.MinChunk[1] > w.MaxChunk[1] {
		return fmt.Errorf("world bounds %v..%v are empty", w.MinChunk, w.MaxChunk)
	}
	switch w.Generator {
	case "flat", "hills":
	default:
		return fmt.Errorf("unknown generator %q", w.Generator)
	}
	total := 0
	for _, l := range w.Layers {
		total += l.Height
	}
	if total >= w.MaxHeight {
		return fmt.Errorf("layers are %d tall, max_height is %d", total, w.MaxHeight)
	}
	return nil
}
