package server

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"voxelview/protocol"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	joinWait   = 5 * time.Second
)

// ClientConn WebSocket 的写端：发送队列加一个写协程
type ClientConn struct {
	ws      *websocket.Conn
	send    chan []byte
	once    sync.Once
	metrics *RoomMetrics
}

func NewClientConn(ws *websocket.Conn, buffer int, metrics *RoomMetrics) *ClientConn {
	if buffer <= 0 {
		buffer = 64
	}
	return &ClientConn{ws: ws, send: make(chan []byte, buffer), metrics: metrics}
}

// Enqueue 非阻塞入队，队列满时丢弃
// 只有房间的 Tick 协程会调用 Enqueue 和 Close
func (c *ClientConn) Enqueue(b []byte) {
	select {
	case c.send <- b:
	default:
		if c.metrics != nil {
			c.metrics.IncSendDropped()
		}
	}
}

// Close 结束写协程，队列发送完毕后关闭连接
func (c *ClientConn) Close() {
	c.once.Do(func() { close(c.send) })
}

func (c *ClientConn) writePump() {
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ping.Stop()
		_ = c.ws.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ping.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump 持续读取并解码为房间输入，连接出错后请求房间移除该玩家
func (c *ClientConn) readPump(room *Room, id PeerID, log *zap.SugaredLogger) {
	defer room.RequestLeave(id)
	c.ws.SetReadLimit(1 << 20)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error { return c.ws.SetReadDeadline(time.Now().Add(pongWait)) })

	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
		m, err := protocol.Decode(payload)
		if err != nil {
			log.Debugw("bad frame", "peer", id, "err", err)
			continue
		}
		room.OnInput(Envelope{PeerID: id, Msg: m})
	}
}

// WSHandler 在 /ws 接受客户端连接，第一帧必须是 JOIN
type WSHandler struct {
	rooms    *RoomManager
	log      *zap.SugaredLogger
	upgrader websocket.Upgrader
}

func NewWSHandler(rooms *RoomManager, log *zap.SugaredLogger) *WSHandler {
	return &WSHandler{
		rooms: rooms,
		log:   log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debugw("upgrade", "err", err)
		return
	}

	join, ok := h.handshake(ws)
	if !ok {
		_ = ws.Close()
		return
	}
	roomID := join.Room
	if roomID == "" {
		roomID = h.rooms.DefaultRoom()
	}
	room := h.rooms.GetOrCreateRoom(roomID)

	conn := NewClientConn(ws, room.Tuning().SendBuffer, room.Metrics())
	resp, err := room.Join(r.Context(), join, conn)
	if err != nil {
		_ = ws.Close()
		return
	}
	if resp.Err != nil {
		h.log.Infow("join rejected", "room", roomID, "code", resp.Err.Code)
		_ = writeMessage(ws, resp.Err)
		closeWith(ws, websocket.ClosePolicyViolation, resp.Err.Code)
		_ = ws.Close()
		return
	}

	go conn.writePump()
	conn.readPump(room, resp.PeerID, h.log)
}

func (h *WSHandler) handshake(ws *websocket.Conn) (*protocol.JoinMsg, bool) {
	_ = ws.SetReadDeadline(time.Now().Add(joinWait))
	_, payload, err := ws.ReadMessage()
	if err != nil {
		return nil, false
	}
	m, err := protocol.Decode(payload)
	if errors.Is(err, protocol.ErrVersion) {
		_ = writeMessage(ws, &protocol.ErrorMsg{Code: protocol.CodeBadVersion, Message: err.Error()})
		closeWith(ws, websocket.ClosePolicyViolation, "bad protocol_version")
		return nil, false
	}
	join, ok := m.(*protocol.JoinMsg)
	if err != nil || !ok {
		closeWith(ws, websocket.ClosePolicyViolation, "expected JOIN")
		return nil, false
	}
	return join, true
}

func writeMessage(ws *websocket.Conn, m protocol.Message) error {
	b, err := protocol.Encode(m)
	if err != nil {
		return err
	}
	_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
	return ws.WriteMessage(websocket.TextMessage, b)
}

func closeWith(ws *websocket.Conn, code int, reason string) {
	_ = ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
}
