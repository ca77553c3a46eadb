package client

import (
	"context"
	"time"

	"go.uber.org/zap"

	"voxelview/protocol"
)

// Deps are the collaborators App does not build itself. Nil fields get defaults
// except Transport, which is required.
type Deps struct {
	Transport Transport
	Renderer  Renderer
	Avatars   AvatarFactory
	Resolver  Resolver
	Metrics   *LoopMetrics
}

// App is the viewer's main loop. Tick runs every frame; everything that
// touches the world waits until the session reaches Running.
type App struct {
	log       *zap.SugaredLogger
	cfg       Config
	status    connStatus
	transport Transport
	renderer  Renderer
	metrics   *LoopMetrics

	World       *World
	Inputs      *Inputs
	Controls    *Controls
	Targeter    *Targeter
	Interactor  *Interactor
	Perspective *Perspective
	Peers       *PeerRegistry
	Sky         *Sky
	Clouds      *Clouds

	self   *selfReporter
	initCh chan *protocol.InitMsg
	tick   uint64
	target InteractionTarget
}

func NewApp(log *zap.SugaredLogger, cfg Config, deps Deps) *App {
	world := NewWorld(log.Named("world"), cfg.RenderRadius)
	inputs := NewInputs()
	controls := NewControls(log.Named("controls"), inputs, world, deps.Resolver, cfg.Controls)
	targeter := NewTargeter(world, cfg.Reach)
	targeter.InverseDirection = cfg.InverseDirection

	renderer := deps.Renderer
	if renderer == nil {
		renderer = NewLogRenderer(log.Named("render"), uint64(max(cfg.FPS, 1)))
	}

	a := &App{
		log:         log,
		cfg:         cfg,
		transport:   deps.Transport,
		renderer:    renderer,
		metrics:     deps.Metrics,
		World:       world,
		Inputs:      inputs,
		Controls:    controls,
		Targeter:    targeter,
		Interactor:  NewInteractor(log.Named("interact"), world, targeter),
		Perspective: NewPerspective(controls, world),
		Peers:       NewPeerRegistry(log.Named("peers"), deps.Avatars),
		Sky:         &Sky{},
		Clouds:      NewClouds(),
		initCh:      make(chan *protocol.InitMsg, 1),
	}
	a.self = &selfReporter{controls: controls, name: cfg.Name}

	inputs.Click(ButtonLeft, a.Interactor.Break)
	inputs.Click(ButtonRight, a.Interactor.Place)
	inputs.Click(ButtonMiddle, a.Interactor.Pick)
	inputs.Bind(cfg.Keys.Ghost, controls.ToggleGhost)
	inputs.Bind(cfg.Keys.Fly, controls.ToggleFly)
	inputs.Bind(cfg.Keys.Perspective, a.Perspective.Toggle)

	a.transport.Register(world)
	a.transport.Register(a.Peers)
	a.transport.Register(a.self)
	return a
}

// State is the current connection state.
func (a *App) State() ConnState { return a.status.Load() }

// IsInitialized gates every world-dependent stage of the tick.
func (a *App) IsInitialized() bool {
	return a.status.Load() == Running && a.World.Initialized()
}

// Target is the interaction target computed in the last running tick.
func (a *App) Target() InteractionTarget { return a.target }

// Start runs connect and join in the background. The returned channel yields
// nil once the session is joined, or the error that ended it; a later
// disconnect delivers ErrDisconnected. It never blocks the frame loop.
func (a *App) Start(ctx context.Context) <-chan error {
	errs := make(chan error, 2)
	go func() {
		a.status.Store(Connecting)
		if err := a.transport.Connect(ctx, a.cfg.Endpoint); err != nil {
			a.fail("connect", err)
			errs <- err
			return
		}
		a.status.Transition(Connecting, Joining)

		init, err := a.transport.Join(ctx, a.cfg.Room)
		if err != nil {
			a.fail("join", err)
			errs <- err
			return
		}
		if !a.status.Transition(Joining, Initializing) {
			return
		}
		a.initCh <- init
		errs <- nil

		d, ok := a.transport.(interface{ Done() <-chan struct{} })
		if !ok {
			return
		}
		select {
		case <-d.Done():
			a.fail("session", ErrDisconnected)
			errs <- ErrDisconnected
		case <-ctx.Done():
		}
	}()
	return errs
}

func (a *App) fail(stage string, err error) {
	a.status.Store(Disconnected)
	a.log.Warnw("session failed", "stage", stage, "err", err)
}

// initialize finishes INITIALIZING on the tick goroutine: world params and
// block registry, spawn point, peers already in the room.
func (a *App) initialize(init *protocol.InitMsg) {
	a.World.Initialize(init)
	a.Peers.SetSelf(init.PeerID)
	a.self.id = init.PeerID
	a.Controls.Teleport(vecFrom(init.Spawn))
	for _, p := range init.Peers {
		a.Peers.ApplyUpdate(p.ID, p)
	}
	if a.status.Transition(Initializing, Running) {
		a.log.Infow("running", "peer", init.PeerID, "room", init.Room)
	}
}

// Tick runs one frame. Order once running: sync, interaction, locomotion,
// world streaming, perspective, peers, effects, render, flush.
func (a *App) Tick(dt float64) {
	start := time.Now()
	a.tick++

	if a.status.Load() == Initializing {
		select {
		case init := <-a.initCh:
			a.initialize(init)
		default:
		}
	}

	var dirty []ChunkCoord
	running := a.IsInitialized()
	if running {
		a.transport.Sync()

		a.Targeter.Update(a.Controls.Eye())
		a.Inputs.Dispatch()
		a.target = a.Targeter.Target()

		a.Controls.Update(dt)
		center := a.Controls.State().Position
		a.World.Update(center)

		a.Perspective.Update()
		a.Peers.Update(dt)
		a.Sky.Update(center, dt)
		a.Clouds.Update(center, dt)
		dirty = a.World.TakeDirty()
	} else {
		a.Inputs.Discard()
	}

	a.renderer.Render(Frame{
		Tick:        a.tick,
		State:       a.status.Load(),
		Camera:      a.Perspective.Camera(),
		Target:      a.target,
		Player:      a.Controls.State(),
		Peers:       a.Peers.Active(),
		Chunks:      a.World.LoadedChunks(),
		DirtyChunks: dirty,
	})

	if running {
		a.transport.Flush()
	}
	a.metrics.observeTick(time.Since(start).Seconds(), a.status.Load(), a.Peers.Active(), a.World.LoadedChunks())
}

// Run schedules Tick at cfg.FPS until ctx is cancelled. Cancellation only
// takes effect between ticks.
func (a *App) Run(ctx context.Context) {
	interval := time.Second / time.Duration(max(a.cfg.FPS, 1))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			dt := min(now.Sub(last).Seconds(), 0.1)
			last = now
			a.Tick(dt)
		}
	}
}

// selfReporter publishes the local pose on flush when it changed.
type selfReporter struct {
	controls *Controls
	id       string
	name     string

	sent    bool
	lastPos Vec3
	lastDir Vec3
}

const poseEpsilon = 1e-3

func (s *selfReporter) OnMessage(protocol.Message) {}

func (s *selfReporter) Outgoing() []protocol.Message {
	if s.id == "" {
		return nil
	}
	pos := s.controls.State().Position
	dir := s.controls.Eye().Direction
	if s.sent && pos.Sub(s.lastPos).Len() < poseEpsilon && dir.Sub(s.lastDir).Len() < poseEpsilon {
		return nil
	}
	s.sent, s.lastPos, s.lastDir = true, pos, dir
	return []protocol.Message{&protocol.PeerMsg{Peers: []protocol.PeerPose{{
		ID:        s.id,
		Name:      s.name,
		Position:  pos.Array(),
		Direction: dir.Array(),
	}}}}
}
