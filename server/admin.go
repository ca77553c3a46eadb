package server

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// Admin 提供运行时调参与统计接口
type Admin struct {
	rooms *RoomManager
	proc  *ProcessStats
	log   *zap.SugaredLogger
}

func NewAdmin(rooms *RoomManager, log *zap.SugaredLogger) *Admin {
	return &Admin{rooms: rooms, proc: NewProcessStats(), log: log}
}

func (a *Admin) room(r *http.Request) *Room {
	id := r.URL.Query().Get("room")
	if id == "" {
		id = a.rooms.DefaultRoom()
	}
	return a.rooms.GetOrCreateRoom(id)
}

// HandleConfig 查询或热更新房间限额
// GET /admin/config?room=main 返回当前配置
// POST /admin/config?room=main 携带部分 JSON 字段进行更新
func (a *Admin) HandleConfig(w http.ResponseWriter, r *http.Request) {
	room := a.room(r)

	type cfg struct {
		MaxPeers             *int `json:"maxPeers,omitempty"`
		MaxUpdatesPerTick    *int `json:"maxUpdatesPerTick,omitempty"`
		ChunkRequestsPerTick *int `json:"chunkRequestsPerTick,omitempty"`
		SendBuffer           *int `json:"sendBuffer,omitempty"`
	}

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, room.Tuning())
	case http.MethodPost:
		var body cfg
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		t := room.Tuning()
		if body.MaxPeers != nil {
			t.MaxPeers = *body.MaxPeers
		}
		if body.MaxUpdatesPerTick != nil {
			t.MaxUpdatesPerTick = *body.MaxUpdatesPerTick
		}
		if body.ChunkRequestsPerTick != nil {
			t.ChunkRequestsPerTick = *body.ChunkRequestsPerTick
		}
		if body.SendBuffer != nil {
			t.SendBuffer = *body.SendBuffer
		}
		room.SetTuning(t)
		t = room.Tuning()
		a.log.Infow("config updated", "room", room.ID, "max_peers", t.MaxPeers,
			"max_updates_per_tick", t.MaxUpdatesPerTick, "chunk_requests_per_tick", t.ChunkRequestsPerTick,
			"send_buffer", t.SendBuffer)
		writeJSON(w, map[string]any{"ok": true, "config": t})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleStats 返回各房间 Tick 计数、指标快照以及进程资源占用
// GET /admin/stats
func (a *Admin) HandleStats(w http.ResponseWriter, _ *http.Request) {
	rooms := a.rooms.Rooms()
	out := make([]map[string]any, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, map[string]any{
			"room":    room.ID,
			"tick":    room.TickSeq(),
			"metrics": room.Metrics().Snapshot(),
		})
	}
	writeJSON(w, map[string]any{"rooms": out, "process": a.proc.Snapshot()})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
