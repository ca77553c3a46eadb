package protocol

import "errors"

var (
	ErrUnknownType = errors.New("unknown message type")
	ErrVersion     = errors.New("unsupported protocol_version")
	ErrChunkSize   = errors.New("chunk payload size mismatch")
)

// Error codes carried by ERROR messages.
const (
	CodeBadRequest  = "E_BAD_REQUEST"
	CodeBadVersion  = "E_PROTO_VERSION"
	CodeRoomFull    = "E_ROOM_FULL"
	CodeOutOfBounds = "E_OUT_OF_BOUNDS"
)
