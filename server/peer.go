package server

import "voxelview/protocol"

// PeerID 房间内玩家的唯一标识
type PeerID string

// Peer 房间中的玩家；位姿以客户端最后一次上报为准，服务器不模拟移动
type Peer struct {
	ID        PeerID
	Name      string
	Position  [3]float64
	Direction [3]float64

	Conn *ClientConn
}

func (p *Peer) Pose() protocol.PeerPose {
	return protocol.PeerPose{ID: string(p.ID), Name: p.Name, Position: p.Position, Direction: p.Direction}
}

// Send 编码 m 并放入该玩家的发送队列
func (p *Peer) Send(m protocol.Message) {
	if p.Conn == nil {
		return
	}
	b, err := protocol.Encode(m)
	if err != nil {
		return
	}
	p.Conn.Enqueue(b)
}
