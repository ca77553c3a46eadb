package protocol

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeStampsHeader(t *testing.T) {
	b, err := Encode(&JoinMsg{Room: "main", Name: "alice"})
	require.NoError(t, err)

	base, err := DecodeBase(b)
	require.NoError(t, err)
	assert.Equal(t, TypeJoin, base.Type)
	assert.Equal(t, Version, base.ProtocolVersion)
}

func TestDecodeRoutesByType(t *testing.T) {
	b, err := Encode(&UpdateMsg{Updates: []VoxelUpdate{{X: 1, Y: 2, Z: 3, Voxel: PackVoxel(2, FacePX, 0)}}})
	require.NoError(t, err)

	m, err := Decode(b)
	require.NoError(t, err)
	up, ok := m.(*UpdateMsg)
	require.True(t, ok, "got %T", m)
	require.Len(t, up.Updates, 1)
	assert.Equal(t, uint16(2), up.Updates[0].Voxel.ID())
	assert.Equal(t, FacePX, up.Updates[0].Voxel.Rotation())
}

func TestDecodeRejectsUnknownAndBadVersion(t *testing.T) {
	_, err := Decode([]byte(`{"type":"NOPE"}`))
	assert.True(t, errors.Is(err, ErrUnknownType))

	_, err = Decode([]byte(`{"type":"JOIN","protocol_version":"0.1","room":"x"}`))
	assert.True(t, errors.Is(err, ErrVersion))

	_, err = Decode([]byte(`not json`))
	assert.Error(t, err)
}

func TestPeerPoseWireShape(t *testing.T) {
	b, err := Encode(&PeerMsg{Peers: []PeerPose{{ID: "p1", Position: [3]float64{1, 2, 3}}}})
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(b, &raw))
	assert.Equal(t, "PEER", raw["type"])
	peers := raw["peers"].([]any)
	assert.Equal(t, "p1", peers[0].(map[string]any)["id"])
}

func TestWorldParamsInBounds(t *testing.T) {
	p := WorldParams{MinChunk: [2]int{-1, -1}, MaxChunk: [2]int{1, 1}}
	assert.True(t, p.InBounds(0, 0))
	assert.True(t, p.InBounds(-1, 1))
	assert.False(t, p.InBounds(2, 0))
	assert.False(t, p.InBounds(0, -2))
}
