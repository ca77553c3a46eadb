package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxelview/protocol"
)

// fakeTransport is an in-memory Transport that records the loop's calls.
type fakeTransport struct {
	calls *[]string

	connectErr error
	joinErr    error
	init       *protocol.InitMsg

	components []Component
	inbound    []protocol.Message
	flushed    []protocol.Message
}

func (f *fakeTransport) Connect(context.Context, string) error {
	*f.calls = append(*f.calls, "connect")
	return f.connectErr
}

func (f *fakeTransport) Join(context.Context, string) (*protocol.InitMsg, error) {
	*f.calls = append(*f.calls, "join")
	if f.joinErr != nil {
		return nil, f.joinErr
	}
	return f.init, nil
}

func (f *fakeTransport) Register(c Component) { f.components = append(f.components, c) }

func (f *fakeTransport) Sync() {
	*f.calls = append(*f.calls, "sync")
	for _, m := range f.inbound {
		for _, c := range f.components {
			c.OnMessage(m)
		}
	}
	f.inbound = nil
}

func (f *fakeTransport) Flush() {
	*f.calls = append(*f.calls, "flush")
	for _, c := range f.components {
		if o, ok := c.(Outbound); ok {
			f.flushed = append(f.flushed, o.Outgoing()...)
		}
	}
}

func (f *fakeTransport) updates() []protocol.VoxelUpdate {
	var out []protocol.VoxelUpdate
	for _, m := range f.flushed {
		if u, ok := m.(*protocol.UpdateMsg); ok {
			out = append(out, u.Updates...)
		}
	}
	return out
}

type fakeRenderer struct {
	calls  *[]string
	frames []Frame
}

func (r *fakeRenderer) Render(f Frame) {
	*r.calls = append(*r.calls, "render")
	r.frames = append(r.frames, f)
}

type harness struct {
	app       *App
	transport *fakeTransport
	renderer  *fakeRenderer
	calls     *[]string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	calls := &[]string{}
	tr := &fakeTransport{calls: calls, init: &protocol.InitMsg{
		PeerID: "me",
		Room:   "main",
		World:  testParams,
		Blocks: []protocol.BlockDef{{ID: stone, Name: "Stone"}, {ID: grass, Name: "Grass"}},
		Spawn:  [3]float64{4.5, 4, 4.5},
		Peers:  []protocol.PeerPose{{ID: "other", Position: [3]float64{1, 4, 1}}},
	}}
	r := &fakeRenderer{calls: calls}
	cfg := DefaultConfig()
	cfg.RenderRadius = 1
	app := NewApp(nop(), cfg, Deps{Transport: tr, Renderer: r})
	return &harness{app: app, transport: tr, renderer: r, calls: calls}
}

// start drives connect and join and runs the tick that finishes initialization.
func (h *harness) start(t *testing.T) {
	t.Helper()
	errs := h.app.Start(context.Background())
	select {
	case err := <-errs:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("start did not finish")
	}
	require.Equal(t, Initializing, h.app.State())
	h.app.Tick(frameDT)
	require.Equal(t, Running, h.app.State())
}

// load delivers every chunk through the next Sync.
func (h *harness) load(t *testing.T) {
	t.Helper()
	h.transport.inbound = append(h.transport.inbound, allChunks(t, testParams, 4))
	h.app.Tick(frameDT)
	require.Equal(t, 9, h.app.World.LoadedChunks())
}

const frameDT = 1.0 / 60

func TestTickBeforeInitTouchesNothing(t *testing.T) {
	h := newHarness(t)
	h.app.Inputs.Push(Event{Kind: Click, Button: ButtonLeft})
	h.app.Inputs.Push(Event{Kind: KeyDown, Key: "g"})

	h.app.Tick(frameDT)
	h.app.Tick(frameDT)

	assert.Equal(t, []string{"render", "render"}, *h.calls)
	assert.False(t, h.app.IsInitialized())
	assert.False(t, h.app.Controls.State().Ghost, "input is discarded before running")
	assert.Equal(t, 0, h.app.World.LoadedChunks())
	require.Len(t, h.renderer.frames, 2)
	assert.Equal(t, Disconnected, h.renderer.frames[1].State)
}

func TestStartReachesRunning(t *testing.T) {
	h := newHarness(t)
	h.start(t)

	assert.True(t, h.app.IsInitialized())
	assert.Equal(t, Vec3{4.5, 4, 4.5}, h.app.Controls.State().Position)
	assert.Equal(t, PeerActive, h.app.Peers.Status("other"))
	assert.Equal(t, []string{"connect", "join", "sync", "render", "flush"}, *h.calls)
}

func TestStartConnectFailure(t *testing.T) {
	h := newHarness(t)
	boom := errors.New("refused")
	h.transport.connectErr = boom

	err := <-h.app.Start(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, Disconnected, h.app.State())

	h.app.Tick(frameDT)
	assert.Equal(t, []string{"connect", "render"}, *h.calls)
}

func TestStartJoinRejected(t *testing.T) {
	h := newHarness(t)
	h.transport.joinErr = ErrJoinRejected

	err := <-h.app.Start(context.Background())
	assert.ErrorIs(t, err, ErrJoinRejected)
	assert.Equal(t, Disconnected, h.app.State())
}

func TestTickOrder(t *testing.T) {
	h := newHarness(t)
	h.start(t)
	*h.calls = nil

	h.app.Tick(frameDT)
	assert.Equal(t, []string{"sync", "render", "flush"}, *h.calls)
}

func TestRunningRequestsChunksAndReportsPose(t *testing.T) {
	h := newHarness(t)
	h.start(t)

	var reqs, poses int
	for _, m := range h.transport.flushed {
		switch msg := m.(type) {
		case *protocol.LoadReqMsg:
			reqs++
			assert.Len(t, msg.Chunks, 8, "nine chunks in range, capped per tick")
		case *protocol.PeerMsg:
			poses++
			assert.Equal(t, "me", msg.Peers[0].ID)
		}
	}
	assert.Equal(t, 1, reqs)
	assert.Equal(t, 1, poses)

	// standing still does not repeat the pose
	h.load(t)
	h.transport.flushed = nil
	h.app.Tick(frameDT)
	for _, m := range h.transport.flushed {
		assert.NotEqual(t, protocol.TypePeer, m.MessageType())
	}
}

func TestSameTickBreakSeesInboundBlock(t *testing.T) {
	h := newHarness(t)
	h.start(t)
	h.load(t)
	h.transport.flushed = nil

	// a remote player places grass in front of us; we click in the same frame
	h.transport.inbound = append(h.transport.inbound, &protocol.UpdateMsg{Updates: []protocol.VoxelUpdate{
		{X: 4, Y: 5, Z: 1, Voxel: protocol.PackVoxel(grass, protocol.FacePY, 0)},
	}})
	h.app.Inputs.Push(Event{Kind: Click, Button: ButtonLeft})
	h.app.Tick(frameDT)

	assert.True(t, h.app.World.GetVoxel(4, 5, 1).Empty())
	// the frame's target is recast after the break
	if target := h.app.Target(); target.Hit() {
		assert.NotEqual(t, Coord{4, 5, 1}, *target.Target)
	}

	ups := h.transport.updates()
	require.Len(t, ups, 1)
	assert.Equal(t, protocol.VoxelUpdate{X: 4, Y: 5, Z: 1}, ups[0])
}

func TestPlaceAndPick(t *testing.T) {
	h := newHarness(t)
	h.start(t)
	h.load(t)
	// look straight down at the ground
	h.app.Inputs.Push(Event{Kind: Look, DY: -2})
	h.app.Tick(frameDT)
	h.app.Tick(frameDT)

	target := h.app.Target()
	require.True(t, target.Hit())
	assert.Equal(t, Coord{4, 3, 4}, *target.Target)

	h.app.Inputs.Push(Event{Kind: Click, Button: ButtonMiddle})
	h.app.Tick(frameDT)
	assert.Equal(t, uint16(stone), h.app.Interactor.Held)
}

func TestLoopMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewLoopMetrics(reg)
	calls := &[]string{}
	app := NewApp(nop(), DefaultConfig(), Deps{
		Transport: &fakeTransport{calls: calls},
		Renderer:  &fakeRenderer{calls: calls},
		Metrics:   m,
	})
	app.Tick(frameDT)
	app.Tick(frameDT)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Ticks))
	assert.Equal(t, float64(Disconnected), testutil.ToFloat64(m.State))

	// nil metrics are a no-op
	var none *LoopMetrics
	none.Inbound(protocol.TypeUpdate)
	none.OutboundDropped()
}
