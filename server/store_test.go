package server

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxelview/protocol"
)

func TestStoreKeepsLatestEditPerCell(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db", "edits.db")
	s, err := OpenStore(nop(), path)
	require.NoError(t, err)

	s.Save("main", grassAt(1, 20, 1))
	s.Save("main", grassAt(2, 20, 1))
	s.Save("main", protocol.VoxelUpdate{X: 1, Y: 20, Z: 1}) // broken again
	s.Save("other", grassAt(5, 5, 5))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "close is idempotent")
	s.Save("main", grassAt(9, 9, 9)) // after close: ignored

	s, err = OpenStore(nop(), path)
	require.NoError(t, err)
	defer s.Close()

	edits, err := s.Edits(context.Background(), "main")
	require.NoError(t, err)
	assert.Equal(t, []protocol.VoxelUpdate{grassAt(2, 20, 1), {X: 1, Y: 20, Z: 1}}, edits)

	other, err := s.Edits(context.Background(), "other")
	require.NoError(t, err)
	assert.Len(t, other, 1)
}

func TestNilStoreIsNoop(t *testing.T) {
	var s *Store
	s.Save("main", grassAt(0, 0, 0))
	edits, err := s.Edits(context.Background(), "main")
	assert.NoError(t, err)
	assert.Nil(t, edits)
	assert.NoError(t, s.Close())
	assert.Zero(t, s.Dropped())
}

func TestManagerReplaysEdits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "edits.db")
	s, err := OpenStore(nop(), path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cfg := DefaultConfig()
	cfg.World = testWorld
	m, err := NewRoomManager(ctx, cfg, s, nil, nop())
	require.NoError(t, err)

	// persist through a live room
	r := newTestRoom(t, RoomTuning{}, s)
	r.ID = "main"
	join(t, r, "a")
	r.OnInput(Envelope{PeerID: "a", Msg: &protocol.UpdateMsg{Updates: []protocol.VoxelUpdate{
		grassAt(3, 20, 3),
		{X: 3, Y: 12, Z: 3}, // dig the surface
	}}})
	r.Step()
	require.NoError(t, s.Close())

	s, err = OpenStore(nop(), path)
	require.NoError(t, err)
	defer s.Close()
	m.store = s

	fresh := m.GetOrCreateRoom("main")
	assert.Equal(t, BlockGrass, fresh.World().Get(3, 20, 3).ID())
	assert.True(t, fresh.World().Get(3, 12, 3).Empty())
	assert.Equal(t, BlockGrass, fresh.World().Get(4, 12, 4).ID())

	same, ok := m.Get("main")
	require.True(t, ok)
	assert.Same(t, fresh, same)

	cancel()
	<-fresh.Done()
}
