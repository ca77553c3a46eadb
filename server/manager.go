package server

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// RoomManager 管理本进程内的所有房间
type RoomManager struct {
	mu    sync.RWMutex
	rooms map[string]*Room

	ctx        context.Context
	cfg        Config
	gen        *Generator
	store      *Store
	collectors *Collectors
	log        *zap.SugaredLogger
}

// NewRoomManager 根据 cfg 构建地形生成器；ctx 结束时房间随之停止
func NewRoomManager(ctx context.Context, cfg Config, store *Store, collectors *Collectors, log *zap.SugaredLogger) (*RoomManager, error) {
	gen, err := NewGenerator(cfg.World)
	if err != nil {
		return nil, err
	}
	return &RoomManager{
		rooms:      make(map[string]*Room),
		ctx:        ctx,
		cfg:        cfg,
		gen:        gen,
		store:      store,
		collectors: collectors,
		log:        log,
	}, nil
}

func (m *RoomManager) DefaultRoom() string { return m.cfg.DefaultRoom }

// Get 获取已存在的房间
func (m *RoomManager) Get(id string) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[id]
	return r, ok
}

// GetOrCreateRoom 获取房间；不存在则创建，回放持久化的编辑并启动 Tick
func (m *RoomManager) GetOrCreateRoom(id string) *Room {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[id]
	if ok {
		return r
	}
	world := NewVoxelWorld(m.cfg.World.WorldParams, m.gen)
	r = NewRoom(id, world, m.cfg.World.Blocks, m.cfg.Room, m.store,
		NewRoomMetrics(id, m.collectors), m.log.Named("room"))

	ctx, cancel := context.WithTimeout(m.ctx, 10*time.Second)
	edits, err := m.store.Edits(ctx, id)
	cancel()
	if err != nil {
		m.log.Errorw("load edits", "room", id, "err", err)
	}
	if n := r.Replay(edits); n > 0 {
		m.log.Infow("replayed edits", "room", id, "edits", n)
	}

	m.rooms[id] = r
	r.StartTicker(m.ctx)
	return r
}

// Rooms 按 id 排序列出房间
func (m *RoomManager) Rooms() []*Room {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
