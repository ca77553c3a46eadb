package client

import (
	"sort"

	"go.uber.org/zap"

	"voxelview/protocol"
)

// VoxelGrid is the voxel storage the interaction code reads and writes.
// Cells in chunks that have not arrived read as empty and report !Ready.
type VoxelGrid interface {
	GetVoxel(x, y, z int) protocol.Voxel
	UpdateVoxel(x, y, z int, id uint16, o Orientation)
	Ready(x, y, z int) bool
	Initialized() bool
}

// Orientation is the placement rotation of an anisotropic block.
type Orientation struct {
	Rotation  protocol.Face
	YRotation uint8
}

// ChunkCoord addresses a chunk column.
type ChunkCoord struct {
	X, Z int
}

// Chunk is one loaded column of voxels.
type Chunk struct {
	Coord  ChunkCoord
	voxels []protocol.Voxel
}

// World is the client-side VoxelGrid. It is only touched from the tick goroutine.
type World struct {
	log *zap.SugaredLogger

	params      protocol.WorldParams
	blocks      map[uint16]protocol.BlockDef
	initialized bool

	chunks    map[ChunkCoord]*Chunk
	requested map[ChunkCoord]struct{}
	toRequest []ChunkCoord
	dirty     map[ChunkCoord]struct{}

	// local mutations waiting for the next flush
	pending []protocol.VoxelUpdate

	// RenderRadius is the chunk radius kept loaded around the player.
	RenderRadius int
	// MaxRequestsPerTick bounds LOAD_REQ fan-out.
	MaxRequestsPerTick int
}

// NewWorld returns an uninitialized world; Initialize must run before it accepts data.
func NewWorld(log *zap.SugaredLogger, renderRadius int) *World {
	if renderRadius <= 0 {
		renderRadius = 5
	}
	return &World{
		log:                log,
		blocks:             make(map[uint16]protocol.BlockDef),
		chunks:             make(map[ChunkCoord]*Chunk),
		requested:          make(map[ChunkCoord]struct{}),
		dirty:              make(map[ChunkCoord]struct{}),
		RenderRadius:       renderRadius,
		MaxRequestsPerTick: 8,
	}
}

// Initialize applies world params and the block registry from INIT.
func (w *World) Initialize(init *protocol.InitMsg) {
	w.params = init.World
	if w.params.ChunkSize <= 0 {
		w.params.ChunkSize = 16
	}
	if w.params.MaxHeight <= 0 {
		w.params.MaxHeight = 64
	}
	for _, b := range init.Blocks {
		w.blocks[b.ID] = b
	}
	w.initialized = true
	w.log.Infow("world initialized",
		"chunk_size", w.params.ChunkSize, "max_height", w.params.MaxHeight,
		"min_chunk", w.params.MinChunk, "max_chunk", w.params.MaxChunk, "blocks", len(w.blocks))
}

func (w *World) Initialized() bool            { return w.initialized }
func (w *World) Params() protocol.WorldParams { return w.params }
func (w *World) LoadedChunks() int            { return len(w.chunks) }

// Block looks up a registry entry.
func (w *World) Block(id uint16) (protocol.BlockDef, bool) {
	b, ok := w.blocks[id]
	return b, ok
}

// ChunkOf returns the column containing world (x, z).
func (w *World) ChunkOf(x, z int) ChunkCoord {
	s := w.params.ChunkSize
	return ChunkCoord{floorDiv(x, s), floorDiv(z, s)}
}

func (w *World) locate(x, y, z int) (*Chunk, int, bool) {
	if !w.initialized || y < 0 || y >= w.params.MaxHeight {
		return nil, 0, false
	}
	cc := w.ChunkOf(x, z)
	ch, ok := w.chunks[cc]
	if !ok {
		return nil, 0, false
	}
	s := w.params.ChunkSize
	return ch, protocol.ColumnIndex(s, x-cc.X*s, y, z-cc.Z*s), true
}

func (w *World) GetVoxel(x, y, z int) protocol.Voxel {
	ch, i, ok := w.locate(x, y, z)
	if !ok {
		return 0
	}
	return ch.voxels[i]
}

// Ready reports whether the cell's content is known. Cells above or below the
// column and cells outside the world bounds are known to be empty.
func (w *World) Ready(x, y, z int) bool {
	if !w.initialized {
		return false
	}
	if y < 0 || y >= w.params.MaxHeight {
		return true
	}
	cc := w.ChunkOf(x, z)
	if !w.params.InBounds(cc.X, cc.Z) {
		return true
	}
	_, ok := w.chunks[cc]
	return ok
}

// Extent is the inclusive cell box that can hold non-empty voxels.
func (w *World) Extent() (lo, hi Coord) {
	s := w.params.ChunkSize
	lo = Coord{w.params.MinChunk[0] * s, 0, w.params.MinChunk[1] * s}
	hi = Coord{(w.params.MaxChunk[0]+1)*s - 1, w.params.MaxHeight - 1, (w.params.MaxChunk[1]+1)*s - 1}
	return lo, hi
}

// UpdateVoxel is the single local mutation entry point: it writes the voxel,
// marks the chunk for re-meshing and queues the change for the next flush.
func (w *World) UpdateVoxel(x, y, z int, id uint16, o Orientation) {
	ch, i, ok := w.locate(x, y, z)
	if !ok {
		w.log.Debugw("update on unloaded cell ignored", "x", x, "y", y, "z", z)
		return
	}
	v := protocol.PackVoxel(id, o.Rotation, o.YRotation)
	if ch.voxels[i] != v {
		ch.voxels[i] = v
		w.dirty[ch.Coord] = struct{}{}
	}
	w.pending = append(w.pending, protocol.VoxelUpdate{X: x, Y: y, Z: z, Voxel: v})
}

// apply writes an inbound voxel without echoing it back to the server.
func (w *World) apply(u protocol.VoxelUpdate) {
	ch, i, ok := w.locate(u.X, u.Y, u.Z)
	if !ok {
		return
	}
	if ch.voxels[i] != u.Voxel {
		ch.voxels[i] = u.Voxel
		w.dirty[ch.Coord] = struct{}{}
	}
}

func (w *World) loadChunk(cd protocol.ChunkData) {
	cc := ChunkCoord{cd.X, cd.Z}
	delete(w.requested, cc)
	if !w.params.InBounds(cc.X, cc.Z) {
		return
	}
	n := w.params.ChunkSize * w.params.ChunkSize * w.params.MaxHeight
	voxels, err := protocol.DecodeVoxels(cd.Voxels, n)
	if err != nil {
		w.log.Warnw("bad chunk payload", "chunk", cc, "err", err)
		return
	}
	w.chunks[cc] = &Chunk{Coord: cc, voxels: voxels}
	w.dirty[cc] = struct{}{}
}

// OnMessage applies inbound world state. Called from Network.Sync.
func (w *World) OnMessage(m protocol.Message) {
	if !w.initialized {
		return
	}
	switch msg := m.(type) {
	case *protocol.LoadMsg:
		for _, cd := range msg.Chunks {
			w.loadChunk(cd)
		}
	case *protocol.UpdateMsg:
		for _, u := range msg.Updates {
			w.apply(u)
		}
	}
}

// Outgoing drains local voxel updates and chunk requests for Network.Flush.
func (w *World) Outgoing() []protocol.Message {
	var out []protocol.Message
	if len(w.pending) > 0 {
		out = append(out, &protocol.UpdateMsg{Updates: w.pending})
		w.pending = nil
	}
	if len(w.toRequest) > 0 {
		req := &protocol.LoadReqMsg{Chunks: make([][2]int, 0, len(w.toRequest))}
		for _, cc := range w.toRequest {
			req.Chunks = append(req.Chunks, [2]int{cc.X, cc.Z})
		}
		out = append(out, req)
		w.toRequest = nil
	}
	return out
}

// Update streams chunks around center: missing in-bounds chunks within
// RenderRadius are requested nearest first, chunks beyond RenderRadius+1 are dropped.
func (w *World) Update(center Vec3) {
	if !w.initialized {
		return
	}
	cell := CoordOf(center)
	c := w.ChunkOf(cell.X, cell.Z)
	r := w.RenderRadius

	for cc := range w.chunks {
		if chebyshev(cc, c) > r+1 {
			delete(w.chunks, cc)
			delete(w.dirty, cc)
		}
	}
	for cc := range w.requested {
		if chebyshev(cc, c) > r+1 {
			delete(w.requested, cc)
		}
	}

	var missing []ChunkCoord
	for dx := -r; dx <= r; dx++ {
		for dz := -r; dz <= r; dz++ {
			cc := ChunkCoord{c.X + dx, c.Z + dz}
			if !w.params.InBounds(cc.X, cc.Z) {
				continue
			}
			if _, ok := w.chunks[cc]; ok {
				continue
			}
			if _, ok := w.requested[cc]; ok {
				continue
			}
			missing = append(missing, cc)
		}
	}
	sort.Slice(missing, func(i, j int) bool {
		return dist2(missing[i], c) < dist2(missing[j], c)
	})
	if len(missing) > w.MaxRequestsPerTick {
		missing = missing[:w.MaxRequestsPerTick]
	}
	for _, cc := range missing {
		w.requested[cc] = struct{}{}
		w.toRequest = append(w.toRequest, cc)
	}
}

// TakeDirty returns and clears the chunks changed since the last call.
func (w *World) TakeDirty() []ChunkCoord {
	if len(w.dirty) == 0 {
		return nil
	}
	out := make([]ChunkCoord, 0, len(w.dirty))
	for cc := range w.dirty {
		out = append(out, cc)
	}
	clear(w.dirty)
	return out
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func chebyshev(a, b ChunkCoord) int {
	return max(abs(a.X-b.X), abs(a.Z-b.Z))
}

func dist2(a, b ChunkCoord) int {
	dx, dz := a.X-b.X, a.Z-b.Z
	return dx*dx + dz*dz
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
