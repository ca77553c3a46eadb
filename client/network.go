package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"voxelview/protocol"
)

var (
	ErrJoinRejected = errors.New("join rejected")
	ErrNotConnected = errors.New("not connected")
	ErrDisconnected = errors.New("connection lost")
)

// Component receives inbound messages during Sync.
type Component interface {
	OnMessage(m protocol.Message)
}

// Outbound is implemented by components that produce messages for Flush.
type Outbound interface {
	Outgoing() []protocol.Message
}

// Transport is what the main loop needs from the network layer.
// Sync and Flush never block the tick.
type Transport interface {
	Connect(ctx context.Context, endpoint string) error
	Join(ctx context.Context, room string) (*protocol.InitMsg, error)
	Sync()
	Flush()
	Register(c Component)
}

// NetworkOptions configures Network.
type NetworkOptions struct {
	PeerID         string
	Name           string
	InboundBuffer  int
	OutboundBuffer int
	WriteTimeout   time.Duration
	// JoinTimeout bounds the wait for INIT after JOIN is sent.
	JoinTimeout time.Duration
	// ReadTimeout closes a silent connection; server pings refresh it.
	ReadTimeout time.Duration
	Dialer      *websocket.Dialer
}

// Network is a websocket Transport. A read pump and a write pump own the
// socket; the tick talks to them only through buffered channels.
type Network struct {
	log     *zap.SugaredLogger
	opts    NetworkOptions
	metrics *LoopMetrics

	conn      *websocket.Conn
	inbound   chan protocol.Message
	send      chan []byte
	joinResp  chan protocol.Message
	joined    atomic.Bool
	connected atomic.Bool
	done      chan struct{}
	once      sync.Once

	components []Component
	queued     []protocol.Message
}

func NewNetwork(log *zap.SugaredLogger, opts NetworkOptions, metrics *LoopMetrics) *Network {
	if opts.InboundBuffer <= 0 {
		opts.InboundBuffer = 4096
	}
	if opts.OutboundBuffer <= 0 {
		opts.OutboundBuffer = 256
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	if opts.JoinTimeout <= 0 {
		opts.JoinTimeout = 10 * time.Second
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 75 * time.Second
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	return &Network{
		log:      log,
		opts:     opts,
		metrics:  metrics,
		inbound:  make(chan protocol.Message, opts.InboundBuffer),
		send:     make(chan []byte, opts.OutboundBuffer),
		joinResp: make(chan protocol.Message, 1),
		done:     make(chan struct{}),
	}
}

// WebsocketURL turns an http(s) or bare host endpoint into a ws(s) URL with a /ws path.
func WebsocketURL(endpoint string) (string, error) {
	if !strings.Contains(endpoint, "://") {
		endpoint = "ws://" + endpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/ws"
	}
	return u.String(), nil
}

// Connect dials the server and starts the pumps.
func (n *Network) Connect(ctx context.Context, endpoint string) error {
	wsURL, err := WebsocketURL(endpoint)
	if err != nil {
		return fmt.Errorf("endpoint: %w", err)
	}
	conn, _, err := n.opts.Dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", wsURL, err)
	}
	n.conn = conn
	n.connected.Store(true)
	n.log.Infow("connected", "url", wsURL)

	go n.writePump()
	go n.readPump()
	return nil
}

// Join asks for a room and waits for INIT. No answer within JoinTimeout
// rejects the join and drops the connection.
func (n *Network) Join(ctx context.Context, room string) (*protocol.InitMsg, error) {
	if !n.connected.Load() {
		return nil, ErrNotConnected
	}
	ctx, cancel := context.WithTimeout(ctx, n.opts.JoinTimeout)
	defer cancel()
	b, err := protocol.Encode(&protocol.JoinMsg{Room: room, PeerID: n.opts.PeerID, Name: n.opts.Name})
	if err != nil {
		return nil, err
	}
	select {
	case n.send <- b:
	case <-n.done:
		return nil, ErrDisconnected
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case m := <-n.joinResp:
		switch msg := m.(type) {
		case *protocol.InitMsg:
			n.joined.Store(true)
			n.log.Infow("joined", "room", msg.Room, "peer", msg.PeerID)
			return msg, nil
		case *protocol.ErrorMsg:
			return nil, fmt.Errorf("%w: %s %s", ErrJoinRejected, msg.Code, msg.Message)
		}
		return nil, fmt.Errorf("%w: unexpected %s", ErrJoinRejected, m.MessageType())
	case <-n.done:
		return nil, ErrDisconnected
	case <-ctx.Done():
		n.shutdown()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: no INIT within %v", ErrJoinRejected, n.opts.JoinTimeout)
		}
		return nil, ctx.Err()
	}
}

// Register subscribes a component to inbound messages and, if it implements
// Outbound, to Flush.
func (n *Network) Register(c Component) {
	n.components = append(n.components, c)
}

// Send queues a message for the next Flush.
func (n *Network) Send(m protocol.Message) {
	n.queued = append(n.queued, m)
}

// Sync applies every buffered inbound message to the registered components, in arrival order.
func (n *Network) Sync() {
	for {
		select {
		case m := <-n.inbound:
			if e, ok := m.(*protocol.ErrorMsg); ok {
				n.log.Warnw("server error", "code", e.Code, "msg", e.Message)
			}
			for _, c := range n.components {
				c.OnMessage(m)
			}
			n.metrics.Inbound(m.MessageType())
		default:
			return
		}
	}
}

// Flush serializes queued and component-produced messages onto the send
// queue. A full queue drops the frame rather than stall the tick.
func (n *Network) Flush() {
	out := n.queued
	n.queued = nil
	for _, c := range n.components {
		if o, ok := c.(Outbound); ok {
			out = append(out, o.Outgoing()...)
		}
	}
	if !n.connected.Load() || n.closed() {
		return
	}
	for _, m := range out {
		b, err := protocol.Encode(m)
		if err != nil {
			n.log.Errorw("encode", "type", m.MessageType(), "err", err)
			continue
		}
		select {
		case n.send <- b:
			n.metrics.Outbound(m.MessageType())
		default:
			n.metrics.OutboundDropped()
			n.log.Warnw("send queue full, dropping", "type", m.MessageType())
		}
	}
}

// Done is closed when the connection ends.
func (n *Network) Done() <-chan struct{} { return n.done }

// Close tears the connection down; the pumps exit on their own.
func (n *Network) Close() {
	n.shutdown()
}

func (n *Network) closed() bool {
	select {
	case <-n.done:
		return true
	default:
		return false
	}
}

func (n *Network) shutdown() {
	n.once.Do(func() {
		close(n.done)
		if n.conn != nil {
			_ = n.conn.Close()
		}
	})
}

func (n *Network) writePump() {
	defer n.shutdown()
	for {
		select {
		case <-n.done:
			return
		case b := <-n.send:
			_ = n.conn.SetWriteDeadline(time.Now().Add(n.opts.WriteTimeout))
			if err := n.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				n.log.Debugw("write failed", "err", err)
				return
			}
		}
	}
}

func (n *Network) readPump() {
	defer n.shutdown()
	n.conn.SetReadLimit(8 << 20)
	_ = n.conn.SetReadDeadline(time.Now().Add(n.opts.ReadTimeout))
	n.conn.SetPingHandler(func(data string) error {
		_ = n.conn.SetReadDeadline(time.Now().Add(n.opts.ReadTimeout))
		err := n.conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(n.opts.WriteTimeout))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})
	for {
		_, payload, err := n.conn.ReadMessage()
		if err != nil {
			if !n.closed() {
				n.log.Infow("connection closed", "err", err)
			}
			return
		}
		_ = n.conn.SetReadDeadline(time.Now().Add(n.opts.ReadTimeout))
		m, err := protocol.Decode(payload)
		if err != nil {
			n.log.Debugw("bad frame", "err", err)
			continue
		}
		if !n.joined.Load() {
			switch m.(type) {
			case *protocol.InitMsg, *protocol.ErrorMsg:
				select {
				case n.joinResp <- m:
				default:
				}
				continue
			}
		}
		// block rather than drop: the socket applies backpressure to the server
		select {
		case n.inbound <- m:
		case <-n.done:
			return
		}
	}
}
