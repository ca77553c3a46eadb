package client

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"voxelview/protocol"
)

var testParams = protocol.WorldParams{
	ChunkSize: 8,
	MaxHeight: 16,
	MinChunk:  [2]int{-1, -1},
	MaxChunk:  [2]int{1, 1},
}

const (
	stone = 2
	grass = 3
)

// flatChunk builds a column filled with stone below ground.
func flatChunk(t *testing.T, p protocol.WorldParams, cx, cz, ground int) protocol.ChunkData {
	t.Helper()
	s := p.ChunkSize
	voxels := make([]protocol.Voxel, s*s*p.MaxHeight)
	for x := 0; x < s; x++ {
		for z := 0; z < s; z++ {
			for y := 0; y < ground; y++ {
				voxels[protocol.ColumnIndex(s, x, y, z)] = protocol.PackVoxel(stone, protocol.FacePY, 0)
			}
		}
	}
	b, err := protocol.EncodeVoxels(voxels)
	require.NoError(t, err)
	return protocol.ChunkData{X: cx, Z: cz, Voxels: b}
}

func allChunks(t *testing.T, p protocol.WorldParams, ground int) *protocol.LoadMsg {
	t.Helper()
	msg := &protocol.LoadMsg{}
	for cx := p.MinChunk[0]; cx <= p.MaxChunk[0]; cx++ {
		for cz := p.MinChunk[1]; cz <= p.MaxChunk[1]; cz++ {
			msg.Chunks = append(msg.Chunks, flatChunk(t, p, cx, cz, ground))
		}
	}
	return msg
}

// loadedWorld returns an initialized world with every chunk loaded.
func loadedWorld(t *testing.T, ground int) *World {
	t.Helper()
	w := NewWorld(zap.NewNop().Sugar(), 1)
	w.Initialize(&protocol.InitMsg{World: testParams, Blocks: []protocol.BlockDef{{ID: stone, Name: "Stone"}}})
	w.OnMessage(allChunks(t, testParams, ground))
	require.Equal(t, 9, w.LoadedChunks())
	w.TakeDirty()
	return w
}

func setVoxel(w *World, c Coord, id uint16) {
	w.apply(protocol.VoxelUpdate{X: c.X, Y: c.Y, Z: c.Z, Voxel: protocol.PackVoxel(id, protocol.FacePY, 0)})
}

func nop() *zap.SugaredLogger { return zap.NewNop().Sugar() }
