package protocol

import (
	"encoding/json"
	"fmt"
)

const Version = "1.0"

// Message types.
const (
	TypeJoin    = "JOIN"
	TypeInit    = "INIT"
	TypeLoadReq = "LOAD_REQ"
	TypeLoad    = "LOAD"
	TypeUpdate  = "UPDATE"
	TypePeer    = "PEER"
	TypeLeave   = "LEAVE"
	TypeError   = "ERROR"
)

// Message is implemented by every wire message.
type Message interface {
	MessageType() string
}

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}

// Decode parses a frame into its typed message.
func Decode(b []byte) (Message, error) {
	base, err := DecodeBase(b)
	if err != nil {
		return nil, err
	}
	if base.ProtocolVersion != "" && base.ProtocolVersion != Version {
		return nil, fmt.Errorf("%w: %q", ErrVersion, base.ProtocolVersion)
	}
	var m Message
	switch base.Type {
	case TypeJoin:
		m = &JoinMsg{}
	case TypeInit:
		m = &InitMsg{}
	case TypeLoadReq:
		m = &LoadReqMsg{}
	case TypeLoad:
		m = &LoadMsg{}
	case TypeUpdate:
		m = &UpdateMsg{}
	case TypePeer:
		m = &PeerMsg{}
	case TypeLeave:
		m = &LeaveMsg{}
	case TypeError:
		m = &ErrorMsg{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, base.Type)
	}
	if err := json.Unmarshal(b, m); err != nil {
		return nil, fmt.Errorf("decode %s: %w", base.Type, err)
	}
	return m, nil
}

// Encode stamps type and version and marshals the message.
func Encode(m Message) ([]byte, error) {
	stamp(m)
	return json.Marshal(m)
}
