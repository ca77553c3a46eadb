package protocol

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVoxelCodecRoundTrip(t *testing.T) {
	const size, height = 4, 8
	voxels := make([]Voxel, size*size*height)
	for x := 0; x < size; x++ {
		for z := 0; z < size; z++ {
			voxels[ColumnIndex(size, x, 0, z)] = PackVoxel(2, FacePY, 0)
			voxels[ColumnIndex(size, x, 1, z)] = PackVoxel(3, FacePY, 0)
		}
	}

	enc, err := EncodeVoxels(voxels)
	require.NoError(t, err)
	assert.Less(t, len(enc), 4*len(voxels))

	dec, err := DecodeVoxels(enc, len(voxels))
	require.NoError(t, err)
	assert.Equal(t, voxels, dec)
}

func TestDecodeVoxelsSizeMismatch(t *testing.T) {
	enc, err := EncodeVoxels(make([]Voxel, 10))
	require.NoError(t, err)

	_, err = DecodeVoxels(enc, 11)
	assert.True(t, errors.Is(err, ErrChunkSize))

	_, err = DecodeVoxels([]byte("garbage"), 1)
	assert.Error(t, err)
}

func TestDecodeVoxelsRejectsOversizedFrame(t *testing.T) {
	// 4 MiB of zeros compresses to a few hundred bytes
	enc, err := EncodeVoxels(make([]Voxel, 1<<20))
	require.NoError(t, err)
	require.Less(t, len(enc), 1<<16)

	_, err = DecodeVoxels(enc, 16)
	assert.ErrorIs(t, err, ErrChunkSize)

	_, err = DecodeVoxels(enc, MaxChunkBytes)
	assert.ErrorIs(t, err, ErrChunkSize)
}
