package protocol

func (b *BaseMessage) header() *BaseMessage { return b }

type stamped interface {
	header() *BaseMessage
}

func stamp(m Message) {
	if s, ok := m.(stamped); ok {
		h := s.header()
		h.Type = m.MessageType()
		h.ProtocolVersion = Version
	}
}

// JOIN (client -> server)
type JoinMsg struct {
	BaseMessage
	Room   string `json:"room"`
	PeerID string `json:"peer_id,omitempty"`
	Name   string `json:"name,omitempty"`
}

// INIT (server -> client): everything needed before the first tick runs.
type InitMsg struct {
	BaseMessage
	PeerID string      `json:"peer_id"`
	Room   string      `json:"room"`
	World  WorldParams `json:"world"`
	Blocks []BlockDef  `json:"blocks"`
	Spawn  [3]float64  `json:"spawn"`
	Peers  []PeerPose  `json:"peers,omitempty"`
}

type WorldParams struct {
	ChunkSize  int    `json:"chunk_size" yaml:"chunk_size"`
	MaxHeight  int    `json:"max_height" yaml:"max_height"`
	MinChunk   [2]int `json:"min_chunk" yaml:"min_chunk"`
	MaxChunk   [2]int `json:"max_chunk" yaml:"max_chunk"`
	TickRateHz int    `json:"tick_rate_hz" yaml:"tick_rate_hz"`
}

// InBounds reports whether chunk (cx, cz) lies inside the world limits.
func (p WorldParams) InBounds(cx, cz int) bool {
	return cx >= p.MinChunk[0] && cx <= p.MaxChunk[0] &&
		cz >= p.MinChunk[1] && cz <= p.MaxChunk[1]
}

// BlockDef is one entry of the block registry.
type BlockDef struct {
	ID    uint16 `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Color string `json:"color,omitempty" yaml:"color,omitempty"`
}

// LOAD_REQ (client -> server)
type LoadReqMsg struct {
	BaseMessage
	Chunks [][2]int `json:"chunks"`
}

// LOAD (server -> client)
type LoadMsg struct {
	BaseMessage
	Chunks []ChunkData `json:"chunks"`
}

// ChunkData carries one column; Voxels is EncodeVoxels output.
type ChunkData struct {
	X      int    `json:"x"`
	Z      int    `json:"z"`
	Voxels []byte `json:"voxels"`
}

// UPDATE (both directions)
type UpdateMsg struct {
	BaseMessage
	Updates []VoxelUpdate `json:"updates"`
}

type VoxelUpdate struct {
	X     int   `json:"x"`
	Y     int   `json:"y"`
	Z     int   `json:"z"`
	Voxel Voxel `json:"voxel"`
}

// PEER (both directions)
type PeerMsg struct {
	BaseMessage
	Peers []PeerPose `json:"peers"`
}

type PeerPose struct {
	ID        string     `json:"id"`
	Name      string     `json:"name,omitempty"`
	Position  [3]float64 `json:"position"`
	Direction [3]float64 `json:"direction"`
}

// LEAVE (server -> client)
type LeaveMsg struct {
	BaseMessage
	PeerID string `json:"peer_id"`
}

// ERROR (server -> client)
type ErrorMsg struct {
	BaseMessage
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

func (*JoinMsg) MessageType() string    { return TypeJoin }
func (*InitMsg) MessageType() string    { return TypeInit }
func (*LoadReqMsg) MessageType() string { return TypeLoadReq }
func (*LoadMsg) MessageType() string    { return TypeLoad }
func (*UpdateMsg) MessageType() string  { return TypeUpdate }
func (*PeerMsg) MessageType() string    { return TypePeer }
func (*LeaveMsg) MessageType() string   { return TypeLeave }
func (*ErrorMsg) MessageType() string   { return TypeError }
