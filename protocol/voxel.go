package protocol

// Voxel packs a block type id with its orientation:
// bits 0-15 type id, bits 16-19 rotation face, bits 20-23 y-rotation segment.
type Voxel uint32

// Face identifies the axis a block is rotated onto.
type Face uint8

const (
	FacePY Face = iota
	FaceNY
	FacePX
	FaceNX
	FacePZ
	FaceNZ
)

// YRotSegments is the number of discrete y-rotations.
const YRotSegments = 16

const (
	idMask   = 0xFFFF
	rotShift = 16
	yShift   = 20
	nibble   = 0xF
)

// PackVoxel builds a voxel value. An id of 0 always packs to the empty voxel.
func PackVoxel(id uint16, rot Face, yRot uint8) Voxel {
	if id == 0 {
		return 0
	}
	return Voxel(uint32(id) | uint32(rot&nibble)<<rotShift | uint32(yRot%YRotSegments)<<yShift)
}

func (v Voxel) ID() uint16       { return uint16(v & idMask) }
func (v Voxel) Rotation() Face   { return Face(v >> rotShift & nibble) }
func (v Voxel) YRotation() uint8 { return uint8(v >> yShift & nibble) }
func (v Voxel) Empty() bool      { return v.ID() == 0 }
