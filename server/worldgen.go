package server

import (
	"fmt"

	"github.com/aquilax/go-perlin"

	"voxelview/protocol"
)

// Layer 分层阶段中的一层
type Layer struct {
	Block  uint16 `yaml:"block"`
	Height int    `yaml:"height"`
}

// Column 生成中的区块，索引方式同 protocol.ColumnIndex
type Column struct {
	Size, Height int
	Voxels       []protocol.Voxel
}

func newColumn(size, height int) *Column {
	return &Column{Size: size, Height: height, Voxels: make([]protocol.Voxel, size*size*height)}
}

func (c *Column) Set(x, y, z int, id uint16) {
	if y < 0 || y >= c.Height {
		return
	}
	c.Voxels[protocol.ColumnIndex(c.Size, x, y, z)] = protocol.PackVoxel(id, protocol.FacePY, 0)
}

func (c *Column) Get(x, y, z int) protocol.Voxel {
	if y < 0 || y >= c.Height {
		return 0
	}
	return c.Voxels[protocol.ColumnIndex(c.Size, x, y, z)]
}

// Stage 填充新分配的区块，按顺序执行
type Stage interface {
	Generate(cx, cz int, col *Column)
}

// Generator 按流水线执行各阶段
type Generator struct {
	stages []Stage
}

func (g *Generator) Generate(cx, cz int, col *Column) {
	for _, s := range g.stages {
		s.Generate(cx, cz, col)
	}
}

// NewGenerator 根据 cfg 中的名称构建流水线
func NewGenerator(cfg WorldConfig) (*Generator, error) {
	switch cfg.Generator {
	case "", "flat":
		return &Generator{stages: []Stage{&SoilingStage{Layers: cfg.Layers}}}, nil
	case "hills":
		return &Generator{stages: []Stage{
			&SoilingStage{Layers: cfg.Layers},
			NewHillsStage(cfg.Seed, cfg.Layers),
		}}, nil
	}
	return nil, fmt.Errorf("unknown generator %q", cfg.Generator)
}

// SoilingStage 从 y=0 向上逐层铺满整个区块
type SoilingStage struct {
	Layers []Layer
}

func (s *SoilingStage) Generate(_, _ int, col *Column) {
	y := 0
	for _, l := range s.Layers {
		for i := 0; i < l.Height; i++ {
			for x := 0; x < col.Size; x++ {
				for z := 0; z < col.Size; z++ {
					col.Set(x, y, z, l.Block)
				}
			}
			y++
		}
	}
}

// HillsStage 用二维 Perlin 噪声抬高地表，增高部分填泥土，顶部为最上层方块
type HillsStage struct {
	noise     *perlin.Perlin
	Scale     float64 // 每个噪声周期对应的世界单位
	Amplitude float64 // 最大增高方块数

	base int
	top  uint16
	fill uint16
}

func NewHillsStage(seed int64, layers []Layer) *HillsStage {
	h := &HillsStage{
		noise:     perlin.NewPerlin(2, 2, 3, seed),
		Scale:     32,
		Amplitude: 8,
		top:       BlockGrass,
		fill:      BlockDirt,
	}
	for _, l := range layers {
		h.base += l.Height
	}
	if n := len(layers); n > 0 {
		h.top = layers[n-1].Block
	}
	if n := len(layers); n > 1 {
		h.fill = layers[n-2].Block
	}
	return h
}

// SurfaceOffset 世界坐标 (x, z) 处的增高，范围 [0, Amplitude]
func (h *HillsStage) SurfaceOffset(x, z int) int {
	n := h.noise.Noise2D(float64(x)/h.Scale, float64(z)/h.Scale)
	v := int((n + 1) / 2 * h.Amplitude)
	return max(0, min(v, int(h.Amplitude)))
}

func (h *HillsStage) Generate(cx, cz int, col *Column) {
	if h.base == 0 {
		return
	}
	for x := 0; x < col.Size; x++ {
		for z := 0; z < col.Size; z++ {
			extra := h.SurfaceOffset(cx*col.Size+x, cz*col.Size+z)
			if extra == 0 {
				continue
			}
			surface := h.base - 1
			for y := surface; y < surface+extra; y++ {
				col.Set(x, y, z, h.fill)
			}
			col.Set(x, surface+extra, z, h.top)
		}
	}
}
