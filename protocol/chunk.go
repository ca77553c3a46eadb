package protocol

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// MaxChunkBytes caps the decompressed size of one chunk payload.
const MaxChunkBytes = 64 << 20

var (
	codecOnce sync.Once
	codecErr  error
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
)

func codec() error {
	codecOnce.Do(func() {
		encoder, codecErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
		if codecErr != nil {
			return
		}
		decoder, codecErr = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(MaxChunkBytes))
	})
	return codecErr
}

// EncodeVoxels serializes a chunk column as little-endian uint32s and zstd-compresses it.
func EncodeVoxels(voxels []Voxel) ([]byte, error) {
	if err := codec(); err != nil {
		return nil, err
	}
	raw := make([]byte, 4*len(voxels))
	for i, v := range voxels {
		binary.LittleEndian.PutUint32(raw[4*i:], uint32(v))
	}
	return encoder.EncodeAll(raw, make([]byte, 0, len(raw)/8)), nil
}

// DecodeVoxels reverses EncodeVoxels. n is the expected voxel count.
func DecodeVoxels(b []byte, n int) ([]Voxel, error) {
	if err := codec(); err != nil {
		return nil, err
	}
	if n < 0 || 4*n > MaxChunkBytes {
		return nil, fmt.Errorf("%w: %d voxels exceeds limit", ErrChunkSize, n)
	}
	var h zstd.Header
	if err := h.Decode(b); err == nil && h.HasFCS && h.FrameContentSize != uint64(4*n) {
		return nil, fmt.Errorf("%w: frame holds %d bytes, want %d", ErrChunkSize, h.FrameContentSize, 4*n)
	}
	raw, err := decoder.DecodeAll(b, make([]byte, 0, 4*n))
	if err != nil {
		return nil, fmt.Errorf("zstd: %w", err)
	}
	if len(raw) != 4*n {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrChunkSize, len(raw), 4*n)
	}
	out := make([]Voxel, n)
	for i := range out {
		out[i] = Voxel(binary.LittleEndian.Uint32(raw[4*i:]))
	}
	return out, nil
}

// ColumnIndex is the linear index of local (x, y, z) inside a column of the given chunk size.
func ColumnIndex(size, x, y, z int) int {
	return (y*size+z)*size + x
}
