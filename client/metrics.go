package client

import "github.com/prometheus/client_golang/prometheus"

// LoopMetrics instruments the tick loop. A nil *LoopMetrics is a no-op.
type LoopMetrics struct {
	Ticks        prometheus.Counter
	TickSeconds  prometheus.Histogram
	InboundMsgs  *prometheus.CounterVec
	OutboundMsgs *prometheus.CounterVec
	Dropped      prometheus.Counter
	State        prometheus.Gauge
	Peers        prometheus.Gauge
	Chunks       prometheus.Gauge
}

// NewLoopMetrics creates the collectors and registers them on reg when reg is non-nil.
func NewLoopMetrics(reg prometheus.Registerer) *LoopMetrics {
	m := &LoopMetrics{
		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "viewer_ticks_total",
			Help: "Frames run by the main loop",
		}),
		TickSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "viewer_tick_seconds",
			Help:    "Wall time spent in one tick",
			Buckets: []float64{0.0005, 0.001, 0.002, 0.004, 0.008, 0.016, 0.033, 0.066},
		}),
		InboundMsgs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "viewer_inbound_messages_total",
			Help: "Messages applied during sync",
		}, []string{"type"}),
		OutboundMsgs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "viewer_outbound_messages_total",
			Help: "Messages enqueued during flush",
		}, []string{"type"}),
		Dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "viewer_outbound_dropped_total",
			Help: "Outbound messages dropped on a full send queue",
		}),
		State: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "viewer_connection_state",
			Help: "0 disconnected, 1 connecting, 2 joining, 3 initializing, 4 running",
		}),
		Peers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "viewer_peers",
			Help: "Active remote peers",
		}),
		Chunks: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "viewer_loaded_chunks",
			Help: "Chunk columns currently loaded",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Ticks, m.TickSeconds, m.InboundMsgs, m.OutboundMsgs,
			m.Dropped, m.State, m.Peers, m.Chunks)
	}
	return m
}

func (m *LoopMetrics) Inbound(msgType string) {
	if m != nil {
		m.InboundMsgs.WithLabelValues(msgType).Inc()
	}
}

func (m *LoopMetrics) Outbound(msgType string) {
	if m != nil {
		m.OutboundMsgs.WithLabelValues(msgType).Inc()
	}
}

func (m *LoopMetrics) OutboundDropped() {
	if m != nil {
		m.Dropped.Inc()
	}
}

func (m *LoopMetrics) observeTick(seconds float64, state ConnState, peers, chunks int) {
	if m == nil {
		return
	}
	m.Ticks.Inc()
	m.TickSeconds.Observe(seconds)
	m.State.Set(float64(state))
	m.Peers.Set(float64(peers))
	m.Chunks.Set(float64(chunks))
}
