package server

import (
	"errors"

	"voxelview/protocol"
)

var ErrOutOfBounds = errors.New("voxel out of world bounds")

type chunkKey struct{ X, Z int }

// VoxelWorld 房间的权威体素状态，区块首次访问时生成，只由 Tick 协程访问
type VoxelWorld struct {
	params protocol.WorldParams
	gen    *Generator
	chunks map[chunkKey]*Column

	// 编码后的区块缓存，Set 时失效
	encoded map[chunkKey][]byte
}

func NewVoxelWorld(params protocol.WorldParams, gen *Generator) *VoxelWorld {
	return &VoxelWorld{
		params:  params,
		gen:     gen,
		chunks:  make(map[chunkKey]*Column),
		encoded: make(map[chunkKey][]byte),
	}
}

func (w *VoxelWorld) Params() protocol.WorldParams { return w.params }

// Generated 内存中已生成的区块数
func (w *VoxelWorld) Generated() int { return len(w.chunks) }

func (w *VoxelWorld) column(cx, cz int) (*Column, bool) {
	if !w.params.InBounds(cx, cz) {
		return nil, false
	}
	k := chunkKey{cx, cz}
	col, ok := w.chunks[k]
	if !ok {
		col = newColumn(w.params.ChunkSize, w.params.MaxHeight)
		if w.gen != nil {
			w.gen.Generate(cx, cz, col)
		}
		w.chunks[k] = col
	}
	return col, true
}

func (w *VoxelWorld) locate(x, y, z int) (*Column, int, int, error) {
	if y < 0 || y >= w.params.MaxHeight {
		return nil, 0, 0, ErrOutOfBounds
	}
	s := w.params.ChunkSize
	cx, cz := floorDiv(x, s), floorDiv(z, s)
	col, ok := w.column(cx, cz)
	if !ok {
		return nil, 0, 0, ErrOutOfBounds
	}
	return col, x - cx*s, z - cz*s, nil
}

func (w *VoxelWorld) Get(x, y, z int) protocol.Voxel {
	col, lx, lz, err := w.locate(x, y, z)
	if err != nil {
		return 0
	}
	return col.Get(lx, y, lz)
}

// Set 写入一个体素，返回值是否发生变化
func (w *VoxelWorld) Set(x, y, z int, v protocol.Voxel) (bool, error) {
	col, lx, lz, err := w.locate(x, y, z)
	if err != nil {
		return false, err
	}
	i := protocol.ColumnIndex(col.Size, lx, y, lz)
	if col.Voxels[i] == v {
		return false, nil
	}
	col.Voxels[i] = v
	delete(w.encoded, chunkKey{floorDiv(x, col.Size), floorDiv(z, col.Size)})
	return true, nil
}

// Chunk 返回区块 (cx, cz) 的传输格式
func (w *VoxelWorld) Chunk(cx, cz int) (protocol.ChunkData, error) {
	col, ok := w.column(cx, cz)
	if !ok {
		return protocol.ChunkData{}, ErrOutOfBounds
	}
	k := chunkKey{cx, cz}
	b, ok := w.encoded[k]
	if !ok {
		var err error
		b, err = protocol.EncodeVoxels(col.Voxels)
		if err != nil {
			return protocol.ChunkData{}, err
		}
		w.encoded[k] = b
	}
	return protocol.ChunkData{X: cx, Z: cz, Voxels: b}, nil
}

// Surface (x, z) 处最高实心体素之上的第一个空 y
func (w *VoxelWorld) Surface(x, z int) int {
	for y := w.params.MaxHeight - 1; y >= 0; y-- {
		if !w.Get(x, y, z).Empty() {
			return y + 1
		}
	}
	return 0
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
