package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPackVoxel(t *testing.T) {
	v := PackVoxel(3, FaceNZ, 7)
	assert.Equal(t, uint16(3), v.ID())
	assert.Equal(t, FaceNZ, v.Rotation())
	assert.Equal(t, uint8(7), v.YRotation())
	assert.False(t, v.Empty())

	// empty ignores orientation
	assert.Equal(t, Voxel(0), PackVoxel(0, FacePX, 3))
	// y-rotation wraps
	assert.Equal(t, uint8(1), PackVoxel(1, FacePY, YRotSegments+1).YRotation())
}
