package server

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxelview/protocol"
)

func newTestServer(t *testing.T) (*RoomManager, string) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	cfg := DefaultConfig()
	cfg.World = testWorld
	m, err := NewRoomManager(ctx, cfg, nil, NewCollectors(nil), nop())
	require.NoError(t, err)
	srv := httptest.NewServer(NewWSHandler(m, nop()))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return m, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, m protocol.Message) {
	t.Helper()
	b, err := protocol.Encode(m)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, b))
}

// next reads frames until one of type T arrives.
func next[T protocol.Message](t *testing.T, conn *websocket.Conn) T {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		_, b, err := conn.ReadMessage()
		require.NoError(t, err)
		m, err := protocol.Decode(b)
		require.NoError(t, err)
		if v, ok := m.(T); ok {
			return v
		}
	}
}

func TestWebsocketSession(t *testing.T) {
	m, url := newTestServer(t)

	a := dial(t, url)
	send(t, a, &protocol.JoinMsg{Room: "r1", PeerID: "a"})
	initA := next[*protocol.InitMsg](t, a)
	assert.Equal(t, "a", initA.PeerID)
	assert.Equal(t, "r1", initA.Room)

	b := dial(t, url)
	send(t, b, &protocol.JoinMsg{Room: "r1", PeerID: "b"})
	initB := next[*protocol.InitMsg](t, b)
	require.Len(t, initB.Peers, 1)

	send(t, a, &protocol.LoadReqMsg{Chunks: [][2]int{{0, 0}}})
	load := next[*protocol.LoadMsg](t, a)
	require.Len(t, load.Chunks, 1)

	send(t, a, &protocol.UpdateMsg{Updates: []protocol.VoxelUpdate{grassAt(2, 25, 2)}})
	up := next[*protocol.UpdateMsg](t, b)
	assert.Equal(t, []protocol.VoxelUpdate{grassAt(2, 25, 2)}, up.Updates)

	require.NoError(t, a.Close())
	leave := next[*protocol.LeaveMsg](t, b)
	assert.Equal(t, "a", leave.PeerID)

	room, ok := m.Get("r1")
	require.True(t, ok)
	assert.Eventually(t, func() bool {
		return room.Metrics().Snapshot()["peers"] == int64(1)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHandshakeRejectsNonJoin(t *testing.T) {
	_, url := newTestServer(t)
	conn := dial(t, url)
	send(t, conn, &protocol.LoadReqMsg{})

	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, _, err := conn.ReadMessage()
	var ce *websocket.CloseError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, websocket.ClosePolicyViolation, ce.Code)
	assert.Equal(t, "expected JOIN", ce.Text)
}

func TestHandshakeRejectsBadVersion(t *testing.T) {
	_, url := newTestServer(t)
	conn := dial(t, url)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"JOIN","protocol_version":"0.1","room":"main"}`)))

	e := next[*protocol.ErrorMsg](t, conn)
	assert.Equal(t, protocol.CodeBadVersion, e.Code)
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation), "got %v", err)
}

func TestJoinRejectedWhenFull(t *testing.T) {
	m, url := newTestServer(t)
	m.GetOrCreateRoom("main").SetTuning(RoomTuning{MaxPeers: 1})

	a := dial(t, url)
	send(t, a, &protocol.JoinMsg{})
	next[*protocol.InitMsg](t, a)

	b := dial(t, url)
	send(t, b, &protocol.JoinMsg{})
	e := next[*protocol.ErrorMsg](t, b)
	assert.Equal(t, protocol.CodeRoomFull, e.Code)
}
