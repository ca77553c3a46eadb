package server

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"voxelview/protocol"
)

var testWorld = WorldConfig{
	WorldParams: protocol.WorldParams{
		ChunkSize:  8,
		MaxHeight:  32,
		MinChunk:   [2]int{-1, -1},
		MaxChunk:   [2]int{1, 1},
		TickRateHz: 50,
	},
	Generator: "flat",
	Layers:    DefaultLayers(),
	Blocks:    DefaultBlocks(),
}

func nop() *zap.SugaredLogger { return zap.NewNop().Sugar() }

func newTestRoom(t *testing.T, tuning RoomTuning, store *Store) *Room {
	t.Helper()
	gen, err := NewGenerator(testWorld)
	require.NoError(t, err)
	return NewRoom("test", NewVoxelWorld(testWorld.WorldParams, gen), testWorld.Blocks, tuning, store, nil, nop())
}

// join admits a socketless peer and runs the tick that processes it.
func join(t *testing.T, r *Room, id string) *ClientConn {
	t.Helper()
	conn := NewClientConn(nil, 256, r.Metrics())
	req := JoinRequest{Join: &protocol.JoinMsg{Room: r.ID, PeerID: id, Name: id}, Conn: conn, Resp: make(chan JoinResponse, 1)}
	r.joinChan <- req
	r.Step()
	resp := <-req.Resp
	require.Nil(t, resp.Err)
	require.Equal(t, PeerID(id), resp.PeerID)
	return conn
}

// drain decodes every frame queued on conn.
func drain(t *testing.T, conn *ClientConn) []protocol.Message {
	t.Helper()
	var out []protocol.Message
	for {
		select {
		case b, ok := <-conn.send:
			if !ok {
				return out
			}
			m, err := protocol.Decode(b)
			require.NoError(t, err)
			out = append(out, m)
		default:
			return out
		}
	}
}

func ofType[T protocol.Message](msgs []protocol.Message) []T {
	var out []T
	for _, m := range msgs {
		if v, ok := m.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

func grassAt(x, y, z int) protocol.VoxelUpdate {
	return protocol.VoxelUpdate{X: x, Y: y, Z: z, Voxel: protocol.PackVoxel(BlockGrass, protocol.FacePY, 0)}
}
