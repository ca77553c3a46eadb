package server

import "voxelview/protocol"

// Envelope 带发送者标记的入站消息，由房间在下一个 Tick 处理
type Envelope struct {
	PeerID PeerID
	Msg    protocol.Message
}

// JoinRequest 请求房间接纳一个连接；房间先把 INIT 放入 Conn 队列，再通过 Resp 回复
type JoinRequest struct {
	Join *protocol.JoinMsg
	Conn *ClientConn
	Resp chan JoinResponse
}

// JoinResponse 携带分配的 id，或需要回给客户端的 ERROR
type JoinResponse struct {
	PeerID PeerID
	Err    *protocol.ErrorMsg
}
