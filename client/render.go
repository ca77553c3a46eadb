package client

import "go.uber.org/zap"

// Frame is what the loop hands to the renderer each tick.
type Frame struct {
	Tick        uint64
	State       ConnState
	Camera      Transform
	Target      InteractionTarget
	Player      PlayerState
	Peers       int
	Chunks      int
	DirtyChunks []ChunkCoord
}

// Renderer draws a frame. It must not block.
type Renderer interface {
	Render(f Frame)
}

// LogRenderer is a headless renderer that logs a summary every Every frames.
type LogRenderer struct {
	log   *zap.SugaredLogger
	Every uint64

	Frames   uint64
	Remeshed int
}

func NewLogRenderer(log *zap.SugaredLogger, every uint64) *LogRenderer {
	if every == 0 {
		every = 60
	}
	return &LogRenderer{log: log, Every: every}
}

func (r *LogRenderer) Render(f Frame) {
	r.Frames++
	r.Remeshed += len(f.DirtyChunks)
	if f.Tick%r.Every != 0 {
		return
	}
	fields := []any{
		"tick", f.Tick, "state", f.State.String(),
		"pos", f.Player.Position, "mode", f.Player.Mode().String(),
		"peers", f.Peers, "chunks", f.Chunks, "remeshed", r.Remeshed,
	}
	if f.Target.Target != nil {
		fields = append(fields, "target", *f.Target.Target)
	}
	r.log.Debugw("frame", fields...)
}
