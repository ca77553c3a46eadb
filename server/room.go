package server

import (
	"context"
	"errors"
	"sort"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"voxelview/protocol"
)

var ErrRoomClosed = errors.New("room closed")

// Room 房间世界：权威体素状态维护在内存，单线程 Tick 推进，连接通过 channel 与之交互
type Room struct {
	ID string

	log     *zap.SugaredLogger
	world   *VoxelWorld
	blocks  []protocol.BlockDef
	store   *Store
	metrics *RoomMetrics
	tuning  atomic.Pointer[RoomTuning]
	tickSeq atomic.Uint64

	Peers     map[PeerID]*Peer
	joinChan  chan JoinRequest
	inputChan chan Envelope
	leaveChan chan PeerID

	// 本 Tick 累积的变更，由 BroadcastDelta 发出
	updatesThisTick int
	pendingUpdates  []originUpdate
	pendingPoses    []protocol.PeerPose
	pendingLeaves   []PeerID

	// 各玩家已请求但尚未发送的区块
	chunkQueue map[PeerID][][2]int

	tickerStarted atomic.Bool
	done          chan struct{}
}

type originUpdate struct {
	origin PeerID
	u      protocol.VoxelUpdate
}

// NewRoom 基于 world 创建房间
func NewRoom(id string, world *VoxelWorld, blocks []protocol.BlockDef, tuning RoomTuning, store *Store, metrics *RoomMetrics, log *zap.SugaredLogger) *Room {
	if metrics == nil {
		metrics = NewRoomMetrics(id, nil)
	}
	r := &Room{
		ID:         id,
		log:        log,
		world:      world,
		blocks:     blocks,
		store:      store,
		metrics:    metrics,
		Peers:      make(map[PeerID]*Peer),
		joinChan:   make(chan JoinRequest, 16),
		inputChan:  make(chan Envelope, 1024), // 足够缓冲，避免网络读阻塞影响 Tick
		leaveChan:  make(chan PeerID, 64),
		chunkQueue: make(map[PeerID][][2]int),
		done:       make(chan struct{}),
	}
	t := tuning.normalize(DefaultConfig().Room)
	r.tuning.Store(&t)
	return r
}

func (r *Room) World() *VoxelWorld    { return r.world }
func (r *Room) Metrics() *RoomMetrics { return r.metrics }
func (r *Room) TickSeq() uint64       { return r.tickSeq.Load() }

// Tuning 返回当前限额
func (r *Room) Tuning() RoomTuning { return *r.tuning.Load() }

// SetTuning 替换限额，下一个 Tick 生效
func (r *Room) SetTuning(t RoomTuning) {
	t = t.normalize(r.Tuning())
	r.tuning.Store(&t)
}

// Replay 回放持久化的编辑，需在 Tick 启动前调用
func (r *Room) Replay(edits []protocol.VoxelUpdate) int {
	n := 0
	for _, u := range edits {
		if _, err := r.world.Set(u.X, u.Y, u.Z, u.Voxel); err == nil {
			n++
		}
	}
	return n
}

// Join 把连接交给 Tick 处理并等待结果
func (r *Room) Join(ctx context.Context, join *protocol.JoinMsg, conn *ClientConn) (JoinResponse, error) {
	req := JoinRequest{Join: join, Conn: conn, Resp: make(chan JoinResponse, 1)}
	select {
	case r.joinChan <- req:
	case <-r.done:
		return JoinResponse{}, ErrRoomClosed
	case <-ctx.Done():
		return JoinResponse{}, ctx.Err()
	}
	select {
	case resp := <-req.Resp:
		return resp, nil
	case <-r.done:
		return JoinResponse{}, ErrRoomClosed
	case <-ctx.Done():
		// Tick 仍可能接纳该连接，确保随后移除
		go func() {
			select {
			case resp := <-req.Resp:
				if resp.Err == nil {
					r.RequestLeave(resp.PeerID)
				}
			case <-r.done:
			}
		}()
		return JoinResponse{}, ctx.Err()
	}
}

// OnInput 非阻塞投递到下一个 Tick，队列满时丢弃
func (r *Room) OnInput(env Envelope) {
	select {
	case r.inputChan <- env:
	default:
		r.metrics.IncChanFullDiscarded()
	}
}

// RequestLeave 在 Tick 协程中移除玩家
func (r *Room) RequestLeave(pid PeerID) {
	// 阻塞而不丢弃，离开事件不能丢
	select {
	case r.leaveChan <- pid:
	case <-r.done:
	}
}

// BeginTick 重置本 Tick 的计数
func (r *Room) BeginTick() {
	r.updatesThisTick = 0
}

// ProcessInputs 消费自上个 Tick 以来排队的加入、离开与消息
func (r *Room) ProcessInputs() {
	for {
		select {
		case req := <-r.joinChan:
			req.Resp <- r.admit(req)
		case pid := <-r.leaveChan:
			r.LeavePeer(pid)
		case env := <-r.inputChan:
			if p, ok := r.Peers[env.PeerID]; ok {
				r.metrics.IncAccepted()
				r.handle(p, env.Msg)
			}
		default:
			return
		}
	}
}

func (r *Room) admit(req JoinRequest) JoinResponse {
	t := r.Tuning()
	if len(r.Peers) >= t.MaxPeers {
		return JoinResponse{Err: &protocol.ErrorMsg{Code: protocol.CodeRoomFull, Message: "room is full"}}
	}
	id := PeerID(req.Join.PeerID)
	if _, taken := r.Peers[id]; id == "" || taken {
		id = PeerID(uuid.NewString())
	}
	name := req.Join.Name
	if name == "" {
		name = string(id)
	}

	spawn := r.spawnPoint()
	p := &Peer{ID: id, Name: name, Position: spawn, Direction: [3]float64{0, 0, -1}, Conn: req.Conn}

	others := make([]protocol.PeerPose, 0, len(r.Peers))
	for _, o := range r.sortedPeers() {
		others = append(others, o.Pose())
	}
	// INIT 必须先于任何广播发给该玩家
	p.Send(&protocol.InitMsg{
		PeerID: string(id),
		Room:   r.ID,
		World:  r.world.Params(),
		Blocks: r.blocks,
		Spawn:  spawn,
		Peers:  others,
	})
	r.Peers[id] = p
	r.pendingPoses = append(r.pendingPoses, p.Pose())
	r.metrics.SetPeers(len(r.Peers))
	r.log.Infow("peer joined", "room", r.ID, "peer", id, "name", name, "peers", len(r.Peers))
	return JoinResponse{PeerID: id}
}

// spawnPoint 离原点最近区块的中心，位于地表之上
func (r *Room) spawnPoint() [3]float64 {
	params := r.world.Params()
	cx := max(params.MinChunk[0], min(0, params.MaxChunk[0]))
	cz := max(params.MinChunk[1], min(0, params.MaxChunk[1]))
	half := params.ChunkSize / 2
	x, z := cx*params.ChunkSize+half, cz*params.ChunkSize+half
	return [3]float64{float64(x) + 0.5, float64(r.world.Surface(x, z)), float64(z) + 0.5}
}

// LeavePeer 移除玩家并通知其他人
func (r *Room) LeavePeer(id PeerID) {
	p, ok := r.Peers[id]
	if !ok {
		return
	}
	if p.Conn != nil {
		p.Conn.Close()
	}
	delete(r.Peers, id)
	delete(r.chunkQueue, id)
	r.pendingLeaves = append(r.pendingLeaves, id)
	r.metrics.SetPeers(len(r.Peers))
	r.log.Infow("peer left", "room", r.ID, "peer", id, "peers", len(r.Peers))
}

func (r *Room) handle(p *Peer, m protocol.Message) {
	switch msg := m.(type) {
	case *protocol.LoadReqMsg:
		params := r.world.Params()
		for _, c := range msg.Chunks {
			if params.InBounds(c[0], c[1]) {
				r.chunkQueue[p.ID] = append(r.chunkQueue[p.ID], c)
			}
		}
	case *protocol.UpdateMsg:
		r.applyUpdates(p, msg.Updates)
	case *protocol.PeerMsg:
		for _, pose := range msg.Peers {
			if pose.ID != "" && PeerID(pose.ID) != p.ID {
				continue
			}
			p.Position, p.Direction = pose.Position, pose.Direction
			r.pendingPoses = append(r.pendingPoses, p.Pose())
			break
		}
	default:
		r.log.Debugw("ignored message", "room", r.ID, "peer", p.ID, "type", m.MessageType())
	}
}

func (r *Room) applyUpdates(p *Peer, updates []protocol.VoxelUpdate) {
	limit := r.Tuning().MaxUpdatesPerTick
	rejected := 0
	for _, u := range updates {
		if r.updatesThisTick >= limit {
			r.metrics.IncRateLimited()
			continue
		}
		r.updatesThisTick++
		changed, err := r.world.Set(u.X, u.Y, u.Z, u.Voxel)
		if err != nil {
			r.metrics.IncRejected()
			rejected++
			continue
		}
		if !changed {
			r.metrics.IncUnchanged()
			continue
		}
		r.metrics.IncApplied()
		r.store.Save(r.ID, u)
		r.pendingUpdates = append(r.pendingUpdates, originUpdate{origin: p.ID, u: u})
	}
	if rejected > 0 {
		p.Send(&protocol.ErrorMsg{Code: protocol.CodeOutOfBounds, Message: "voxel update outside the world"})
	}
}

// UpdateWorld 发送排队的区块请求，每个玩家每 Tick 有上限
func (r *Room) UpdateWorld() {
	per := r.Tuning().ChunkRequestsPerTick
	for id, queue := range r.chunkQueue {
		p, ok := r.Peers[id]
		if !ok {
			delete(r.chunkQueue, id)
			continue
		}
		n := min(per, len(queue))
		msg := &protocol.LoadMsg{Chunks: make([]protocol.ChunkData, 0, n)}
		for _, c := range queue[:n] {
			cd, err := r.world.Chunk(c[0], c[1])
			if err != nil {
				r.log.Warnw("encode chunk", "room", r.ID, "chunk", c, "err", err)
				continue
			}
			msg.Chunks = append(msg.Chunks, cd)
		}
		if rest := queue[n:]; len(rest) > 0 {
			r.chunkQueue[id] = rest
		} else {
			delete(r.chunkQueue, id)
		}
		if len(msg.Chunks) > 0 {
			p.Send(msg)
			r.metrics.AddChunksSent(len(msg.Chunks))
		}
	}
}

// BroadcastDelta 广播本 Tick 的体素变更、位姿与离开事件，不回显给发起者
func (r *Room) BroadcastDelta() {
	for _, p := range r.Peers {
		var ups []protocol.VoxelUpdate
		for _, ou := range r.pendingUpdates {
			if ou.origin != p.ID {
				ups = append(ups, ou.u)
			}
		}
		if len(ups) > 0 {
			p.Send(&protocol.UpdateMsg{Updates: ups})
		}

		var poses []protocol.PeerPose
		for _, pose := range r.pendingPoses {
			if PeerID(pose.ID) != p.ID {
				poses = append(poses, pose)
			}
		}
		if len(poses) > 0 {
			p.Send(&protocol.PeerMsg{Peers: poses})
		}

		for _, id := range r.pendingLeaves {
			p.Send(&protocol.LeaveMsg{PeerID: string(id)})
		}
	}
	r.pendingUpdates = r.pendingUpdates[:0]
	r.pendingPoses = r.pendingPoses[:0]
	r.pendingLeaves = r.pendingLeaves[:0]
}

// Close 断开所有玩家，需在 Tick 停止后调用
func (r *Room) Close() {
	for id := range r.Peers {
		r.LeavePeer(id)
	}
}

func (r *Room) sortedPeers() []*Peer {
	out := make([]*Peer, 0, len(r.Peers))
	for _, p := range r.Peers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
