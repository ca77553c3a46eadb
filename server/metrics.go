package server

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Collectors 所有房间共用的 Prometheus 指标，以房间 id 作为标签
type Collectors struct {
	Ticks       *prometheus.CounterVec
	TickSeconds *prometheus.HistogramVec
	Peers       *prometheus.GaugeVec
	Updates     *prometheus.CounterVec
	ChunksSent  *prometheus.CounterVec
	Dropped     *prometheus.CounterVec
}

// NewCollectors 创建指标；reg 非空时注册到 reg
func NewCollectors(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		Ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voxelview",
			Name:      "room_ticks_total",
			Help:      "Ticks run per room.",
		}, []string{"room"}),
		TickSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "voxelview",
			Name:      "room_tick_seconds",
			Help:      "Wall time of one room tick.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05},
		}, []string{"room"}),
		Peers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "voxelview",
			Name:      "room_peers",
			Help:      "Connected peers per room.",
		}, []string{"room"}),
		Updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voxelview",
			Name:      "voxel_updates_total",
			Help:      "Voxel updates by outcome (applied, unchanged, rejected, rate_limited).",
		}, []string{"room", "result"}),
		ChunksSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voxelview",
			Name:      "chunks_sent_total",
			Help:      "Chunk columns sent in LOAD messages.",
		}, []string{"room"}),
		Dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voxelview",
			Name:      "messages_dropped_total",
			Help:      "Messages dropped because a queue was full (queue=input|send).",
		}, []string{"room", "queue"}),
	}
	if reg != nil {
		reg.MustRegister(c.Ticks, c.TickSeconds, c.Peers, c.Updates, c.ChunksSent, c.Dropped)
	}
	return c
}

// RoomMetrics 房间计数器，供 /admin/stats 输出，同时同步到 Prometheus（如已配置）
type RoomMetrics struct {
	room string
	prom *Collectors

	TickCount         int64
	InputsAccepted    int64
	UpdatesApplied    int64
	UpdatesRejected   int64
	RateLimited       int64
	ChunksSent        int64
	ChanFullDiscarded int64
	SendDropped       int64
	Peers             int64
	TotalTickNs       int64
}

func NewRoomMetrics(room string, prom *Collectors) *RoomMetrics {
	return &RoomMetrics{room: room, prom: prom}
}

func (m *RoomMetrics) IncAccepted() { atomic.AddInt64(&m.InputsAccepted, 1) }

func (m *RoomMetrics) IncApplied() {
	atomic.AddInt64(&m.UpdatesApplied, 1)
	m.update("applied")
}

func (m *RoomMetrics) IncUnchanged() { m.update("unchanged") }

func (m *RoomMetrics) IncRejected() {
	atomic.AddInt64(&m.UpdatesRejected, 1)
	m.update("rejected")
}

func (m *RoomMetrics) IncRateLimited() {
	atomic.AddInt64(&m.RateLimited, 1)
	m.update("rate_limited")
}

func (m *RoomMetrics) AddChunksSent(n int) {
	atomic.AddInt64(&m.ChunksSent, int64(n))
	if m.prom != nil {
		m.prom.ChunksSent.WithLabelValues(m.room).Add(float64(n))
	}
}

func (m *RoomMetrics) IncChanFullDiscarded() {
	atomic.AddInt64(&m.ChanFullDiscarded, 1)
	if m.prom != nil {
		m.prom.Dropped.WithLabelValues(m.room, "input").Inc()
	}
}

func (m *RoomMetrics) IncSendDropped() {
	atomic.AddInt64(&m.SendDropped, 1)
	if m.prom != nil {
		m.prom.Dropped.WithLabelValues(m.room, "send").Inc()
	}
}

func (m *RoomMetrics) SetPeers(n int) {
	atomic.StoreInt64(&m.Peers, int64(n))
	if m.prom != nil {
		m.prom.Peers.WithLabelValues(m.room).Set(float64(n))
	}
}

func (m *RoomMetrics) AddTick(ns int64) {
	atomic.AddInt64(&m.TickCount, 1)
	atomic.AddInt64(&m.TotalTickNs, ns)
	if m.prom != nil {
		m.prom.Ticks.WithLabelValues(m.room).Inc()
		m.prom.TickSeconds.WithLabelValues(m.room).Observe(float64(ns) / 1e9)
	}
}

func (m *RoomMetrics) update(result string) {
	if m.prom != nil {
		m.prom.Updates.WithLabelValues(m.room, result).Inc()
	}
}

// Snapshot 返回只读快照，便于 HTTP 输出
func (m *RoomMetrics) Snapshot() map[string]any {
	tick := atomic.LoadInt64(&m.TickCount)
	total := atomic.LoadInt64(&m.TotalTickNs)
	var avgMs float64
	if tick > 0 {
		avgMs = float64(total) / float64(tick) / 1e6
	}
	return map[string]any{
		"tick_count":          tick,
		"peers":               atomic.LoadInt64(&m.Peers),
		"inputs_accepted":     atomic.LoadInt64(&m.InputsAccepted),
		"updates_applied":     atomic.LoadInt64(&m.UpdatesApplied),
		"updates_rejected":    atomic.LoadInt64(&m.UpdatesRejected),
		"rate_limited":        atomic.LoadInt64(&m.RateLimited),
		"chunks_sent":         atomic.LoadInt64(&m.ChunksSent),
		"chan_full_discarded": atomic.LoadInt64(&m.ChanFullDiscarded),
		"send_dropped":        atomic.LoadInt64(&m.SendDropped),
		"avg_tick_ms":         avgMs,
	}
}
