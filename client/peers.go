package client

import (
	"go.uber.org/zap"

	"voxelview/protocol"
)

// PeerStatus is a peer's lifecycle state.
type PeerStatus int

const (
	PeerUnknown PeerStatus = iota
	PeerActive
	PeerRemoved
)

func (s PeerStatus) String() string {
	switch s {
	case PeerActive:
		return "active"
	case PeerRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Avatar is the visual stand-in for a remote peer.
type Avatar interface {
	SetPose(position, direction Vec3)
	Update(dt float64)
}

// AvatarFactory creates avatars for newly seen peers.
type AvatarFactory interface {
	CreateAvatar(id string) Avatar
}

// AvatarFactoryFunc adapts a function to AvatarFactory.
type AvatarFactoryFunc func(id string) Avatar

func (f AvatarFactoryFunc) CreateAvatar(id string) Avatar { return f(id) }

// Peer is a remote player known to this session.
type Peer struct {
	ID        string
	Name      string
	Position  Vec3
	Direction Vec3
	Avatar    Avatar
	Status    PeerStatus
}

// PeerRegistry owns remote peers and their avatars. It only reacts to what
// the network delivers.
type PeerRegistry struct {
	log     *zap.SugaredLogger
	factory AvatarFactory
	self    string

	peers map[string]*Peer
}

func NewPeerRegistry(log *zap.SugaredLogger, factory AvatarFactory) *PeerRegistry {
	if factory == nil {
		factory = AvatarFactoryFunc(func(string) Avatar { return NewLerpAvatar(0.1) })
	}
	return &PeerRegistry{log: log, factory: factory, peers: make(map[string]*Peer)}
}

// SetSelf sets the local peer id, whose echoes are ignored.
func (r *PeerRegistry) SetSelf(id string) { r.self = id }

// ApplyUpdate moves Unknown or Removed peers to Active with a new avatar,
// and forwards the pose of Active peers to their existing avatar.
func (r *PeerRegistry) ApplyUpdate(id string, pose protocol.PeerPose) {
	if id == "" || id == r.self {
		return
	}
	pos, dir := vecFrom(pose.Position), vecFrom(pose.Direction)
	p, ok := r.peers[id]
	if !ok || p.Status != PeerActive {
		p = &Peer{ID: id, Avatar: r.factory.CreateAvatar(id), Status: PeerActive}
		r.peers[id] = p
		r.log.Infow("peer joined", "peer", id, "name", pose.Name)
	}
	if pose.Name != "" {
		p.Name = pose.Name
	}
	p.Position, p.Direction = pos, dir
	p.Avatar.SetPose(pos, dir)
}

// Remove moves an Active peer to Removed and releases its avatar.
func (r *PeerRegistry) Remove(id string) {
	p, ok := r.peers[id]
	if !ok || p.Status != PeerActive {
		return
	}
	p.Status = PeerRemoved
	p.Avatar = nil
	r.log.Infow("peer left", "peer", id)
}

// Update advances every active avatar.
func (r *PeerRegistry) Update(dt float64) {
	for _, p := range r.peers {
		if p.Status == PeerActive {
			p.Avatar.Update(dt)
		}
	}
}

// Status returns the lifecycle state of id.
func (r *PeerRegistry) Status(id string) PeerStatus {
	if p, ok := r.peers[id]; ok {
		return p.Status
	}
	return PeerUnknown
}

// Get returns an active peer.
func (r *PeerRegistry) Get(id string) (*Peer, bool) {
	p, ok := r.peers[id]
	if !ok || p.Status != PeerActive {
		return nil, false
	}
	return p, true
}

// Active counts active peers.
func (r *PeerRegistry) Active() int {
	n := 0
	for _, p := range r.peers {
		if p.Status == PeerActive {
			n++
		}
	}
	return n
}

// OnMessage applies PEER and LEAVE messages. Called from Network.Sync.
func (r *PeerRegistry) OnMessage(m protocol.Message) {
	switch msg := m.(type) {
	case *protocol.PeerMsg:
		for _, pose := range msg.Peers {
			r.ApplyUpdate(pose.ID, pose)
		}
	case *protocol.LeaveMsg:
		r.Remove(msg.PeerID)
	}
}

// LerpAvatar eases from the previous pose to the latest one over Window seconds.
type LerpAvatar struct {
	Window float64

	from, to   Vec3
	Direction  Vec3
	t          float64
	positioned bool
}

func NewLerpAvatar(window float64) *LerpAvatar {
	return &LerpAvatar{Window: window}
}

func (a *LerpAvatar) SetPose(position, direction Vec3) {
	if !a.positioned {
		a.from, a.to = position, position
		a.positioned = true
	} else {
		a.from = a.Position()
		a.to = position
	}
	a.Direction = direction
	a.t = 0
}

func (a *LerpAvatar) Update(dt float64) {
	if a.Window <= 0 {
		a.t = 1
		return
	}
	a.t = min(1, a.t+dt/a.Window)
}

// Position is the interpolated render position.
func (a *LerpAvatar) Position() Vec3 {
	if a.Window <= 0 {
		return a.to
	}
	return a.from.Lerp(a.to, a.t)
}
